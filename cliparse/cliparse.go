package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
)

// Defaults for pool limits
const (
	DefaultMinEntryFee       = "500000000000000" // 0.0005 ETH in wei
	DefaultMinDuration       = 5 * time.Minute
	DefaultMaxDuration       = 30 * 24 * time.Hour
	DefaultMaxProtocolFeeBps = 2000
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	TreasuryOwner common.Address

	// Coprocessor wiring. DevCoprocessor replaces all four external settings.
	DevCoprocessor   bool
	OracleSigner     common.Address
	ProofSigners     []common.Address
	FHEPublicKeyFile string
	RelayerURL       string

	MinEntryFee       *uint256.Int
	MinDuration       time.Duration
	MaxDuration       time.Duration
	MaxProtocolFeeBps uint16
}

// LoadEnv reads an optional .env file into the environment. Variables that
// are already set win.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ParseFlags validates flags and falls back to environment variables
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var (
		treasuryOwner, oracleSigner, proofSigners  string
		minEntryFee, minDuration, maxDuration, bps string
	)

	fs := flag.NewFlagSet("astro-strike", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	fs.StringVar(&treasuryOwner, "treasury-owner", "", "Account allowed to withdraw the treasury")
	fs.BoolVar(&cfg.DevCoprocessor, "dev-coprocessor", false, "Run the in-process coprocessor")
	fs.StringVar(&oracleSigner, "oracle-signer", "", "Address that signs settlement callbacks")
	fs.StringVar(&proofSigners, "proof-signers", "", "Comma-separated addresses trusted to attest input proofs")
	fs.StringVar(&cfg.FHEPublicKeyFile, "fhe-public-key-file", "", "Path to the serialized BFV public key")
	fs.StringVar(&cfg.RelayerURL, "relayer-url", "", "Coprocessor relayer base URL")

	fs.StringVar(&minEntryFee, "min-entry-fee", "", "Minimum entry fee in wei")
	fs.StringVar(&minDuration, "min-duration", "", "Minimum pool duration in seconds")
	fs.StringVar(&maxDuration, "max-duration", "", "Maximum pool duration in seconds")
	fs.StringVar(&bps, "max-protocol-fee-bps", "", "Maximum protocol fee in basis points")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	owner, err := parseAddress(envOr(treasuryOwner, "TREASURY_OWNER"), "TREASURY_OWNER")
	if err != nil {
		return Config{}, err
	}
	if owner == (common.Address{}) {
		return Config{}, errors.New("TREASURY_OWNER required")
	}
	cfg.TreasuryOwner = owner

	if !cfg.DevCoprocessor {
		cfg.DevCoprocessor = os.Getenv("DEV_COPROCESSOR") == "true" || os.Getenv("DEV_COPROCESSOR") == "1"
	}
	if cfg.OracleSigner, err = parseAddress(envOr(oracleSigner, "ORACLE_SIGNER"), "ORACLE_SIGNER"); err != nil {
		return Config{}, err
	}
	if cfg.ProofSigners, err = parseAddressList(envOr(proofSigners, "PROOF_SIGNERS")); err != nil {
		return Config{}, err
	}
	cfg.FHEPublicKeyFile = envOr(cfg.FHEPublicKeyFile, "FHE_PUBLIC_KEY_FILE")
	cfg.RelayerURL = envOr(cfg.RelayerURL, "RELAYER_URL")

	if !cfg.DevCoprocessor {
		switch {
		case cfg.OracleSigner == (common.Address{}):
			return Config{}, errors.New("ORACLE_SIGNER required without DEV_COPROCESSOR")
		case len(cfg.ProofSigners) == 0:
			return Config{}, errors.New("PROOF_SIGNERS required without DEV_COPROCESSOR")
		case cfg.FHEPublicKeyFile == "":
			return Config{}, errors.New("FHE_PUBLIC_KEY_FILE required without DEV_COPROCESSOR")
		case cfg.RelayerURL == "":
			return Config{}, errors.New("RELAYER_URL required without DEV_COPROCESSOR")
		}
	}

	// Pool limits
	cfg.MinEntryFee, err = uint256.FromDecimal(envOrDefault(minEntryFee, "MIN_ENTRY_FEE", DefaultMinEntryFee))
	if err != nil {
		return Config{}, errors.New("invalid MIN_ENTRY_FEE")
	}
	if cfg.MinDuration, err = parseSeconds(envOr(minDuration, "MIN_DURATION"), DefaultMinDuration, "MIN_DURATION"); err != nil {
		return Config{}, err
	}
	if cfg.MaxDuration, err = parseSeconds(envOr(maxDuration, "MAX_DURATION"), DefaultMaxDuration, "MAX_DURATION"); err != nil {
		return Config{}, err
	}
	if cfg.MinDuration > cfg.MaxDuration {
		return Config{}, errors.New("MIN_DURATION exceeds MAX_DURATION")
	}

	cfg.MaxProtocolFeeBps = DefaultMaxProtocolFeeBps
	if s := envOr(bps, "MAX_PROTOCOL_FEE_BPS"); s != "" {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil || v > 10000 {
			return Config{}, errors.New("invalid MAX_PROTOCOL_FEE_BPS")
		}
		cfg.MaxProtocolFeeBps = uint16(v)
	}

	return cfg, nil
}

func envOr(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func envOrDefault(v, key, def string) string {
	if v = envOr(v, key); v != "" {
		return v
	}
	return def
}

func parseAddress(s, name string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAddressList(s string) ([]common.Address, error) {
	var out []common.Address
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := parseAddress(part, "PROOF_SIGNERS")
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseSeconds(s string, def time.Duration, name string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return time.Duration(n) * time.Second, nil
}

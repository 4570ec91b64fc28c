// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	ownerAddr  = "0x00000000000000000000000000000000000000aa"
	oracleAddr = "0x00000000000000000000000000000000000000bb"
	proofAddr  = "0x00000000000000000000000000000000000000cc"
)

func setDevEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("TREASURY_OWNER", ownerAddr)
	t.Setenv("DEV_COPROCESSOR", "true")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setDevEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if !cfg.DevCoprocessor {
		t.Error("expected dev coprocessor from env")
	}
	if !strings.EqualFold(cfg.TreasuryOwner.Hex(), ownerAddr) {
		t.Errorf("unexpected treasury owner %s", cfg.TreasuryOwner.Hex())
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setDevEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:other.db"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "file:other.db" {
		t.Errorf("expected CLI database URL, got %s", cfg.DatabaseURL)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	setDevEnv(t)

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3318 {
		t.Errorf("expected default port 3318, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.DatabaseType)
	}
	if cfg.MinEntryFee.Dec() != DefaultMinEntryFee {
		t.Errorf("expected min entry fee %s, got %s", DefaultMinEntryFee, cfg.MinEntryFee.Dec())
	}
	if cfg.MinDuration != 300*time.Second {
		t.Errorf("expected 300s, got %s", cfg.MinDuration)
	}
	if cfg.MaxDuration != 2592000*time.Second {
		t.Errorf("expected 2592000s, got %s", cfg.MaxDuration)
	}
	if cfg.MaxProtocolFeeBps != 2000 {
		t.Errorf("expected 2000 bps, got %d", cfg.MaxProtocolFeeBps)
	}
}

func TestParseFlags_ExternalCoprocessor(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("TREASURY_OWNER", ownerAddr)
	t.Setenv("ORACLE_SIGNER", oracleAddr)
	t.Setenv("PROOF_SIGNERS", proofAddr+", "+oracleAddr)
	t.Setenv("FHE_PUBLIC_KEY_FILE", "/etc/astro/fhe.pk")
	t.Setenv("RELAYER_URL", "http://relayer.local")

	cfg, err := ParseFlags([]string{"--min-duration", "60"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DevCoprocessor {
		t.Error("dev coprocessor should be off")
	}
	if len(cfg.ProofSigners) != 2 {
		t.Fatalf("expected 2 proof signers, got %d", len(cfg.ProofSigners))
	}
	if cfg.MinDuration != time.Minute {
		t.Errorf("expected 60s, got %s", cfg.MinDuration)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
		want string
	}{
		{
			name: "missing database url",
			env:  map[string]string{"TREASURY_OWNER": ownerAddr, "DEV_COPROCESSOR": "1"},
			want: "database URL required",
		},
		{
			name: "missing treasury owner",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "DEV_COPROCESSOR": "1"},
			want: "TREASURY_OWNER required",
		},
		{
			name: "bad treasury owner",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "TREASURY_OWNER": "alice", "DEV_COPROCESSOR": "1"},
			want: "invalid TREASURY_OWNER",
		},
		{
			name: "external coprocessor incomplete",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "TREASURY_OWNER": ownerAddr, "ORACLE_SIGNER": oracleAddr},
			want: "PROOF_SIGNERS required",
		},
		{
			name: "unsupported database type",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "TREASURY_OWNER": ownerAddr, "DEV_COPROCESSOR": "1"},
			args: []string{"-t", "mysql"},
			want: "unsupported database type",
		},
		{
			name: "fee bps above 100 percent",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "TREASURY_OWNER": ownerAddr, "DEV_COPROCESSOR": "1"},
			args: []string{"--max-protocol-fee-bps", "20000"},
			want: "invalid MAX_PROTOCOL_FEE_BPS",
		},
		{
			name: "min above max duration",
			env:  map[string]string{"DATABASE_URL": "file:x.db", "TREASURY_OWNER": ownerAddr, "DEV_COPROCESSOR": "1"},
			args: []string{"--min-duration", "100", "--max-duration", "50"},
			want: "MIN_DURATION exceeds MAX_DURATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"DATABASE_URL", "TREASURY_OWNER", "DEV_COPROCESSOR", "ORACLE_SIGNER",
				"PROOF_SIGNERS", "FHE_PUBLIC_KEY_FILE", "RELAYER_URL", "DATABASE_TYPE", "PORT"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := ParseFlags(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	const fresh = "ASTRO_STRIKE_DOTENV_TEST"
	t.Cleanup(func() { os.Unsetenv(fresh) })
	t.Setenv("RELAYER_URL", "http://from-env")

	path := filepath.Join(t.TempDir(), ".env")
	contents := fresh + "=loaded\nRELAYER_URL=http://from-dotenv\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(fresh); got != "loaded" {
		t.Errorf("expected value from .env, got %q", got)
	}
	// Variables already set are not overridden
	if got := os.Getenv("RELAYER_URL"); got != "http://from-env" {
		t.Errorf("expected existing value to win, got %q", got)
	}

	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

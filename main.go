package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/astro-strike/ciphertext"
	"github.com/danielhkuo/astro-strike/cliparse"
	"github.com/danielhkuo/astro-strike/db"
	"github.com/danielhkuo/astro-strike/engine"
	"github.com/danielhkuo/astro-strike/fhe"
	"github.com/danielhkuo/astro-strike/middleware"
	"github.com/danielhkuo/astro-strike/oracle"
	"github.com/danielhkuo/astro-strike/payout"
	"github.com/danielhkuo/astro-strike/proof"
	"github.com/danielhkuo/astro-strike/registry"
	"github.com/danielhkuo/astro-strike/router"
	"github.com/ethereum/go-ethereum/common"
)

func main() {
	if err := cliparse.LoadEnv(".env"); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	dbConn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(dbConn)

	var (
		coproc       oracle.Coprocessor
		eval         ciphertext.Evaluator
		oracleSigner = cfg.OracleSigner
		proofSigners = cfg.ProofSigners
		local        *fhe.Local
	)
	if cfg.DevCoprocessor {
		local, err = fhe.GenerateLocal()
		if err != nil {
			slog.Error("coprocessor key generation failed", "error", err)
			os.Exit(1)
		}
		coproc = local
		eval = local.Evaluator()
		oracleSigner = local.Address()
		proofSigners = []common.Address{local.Address()}
		slog.Warn("running in-process coprocessor; not for production",
			"signer", local.Address().Hex())
	} else {
		data, err := os.ReadFile(cfg.FHEPublicKeyFile)
		if err != nil {
			slog.Error("failed to read FHE public key", "path", cfg.FHEPublicKeyFile, "error", err)
			os.Exit(1)
		}
		pk, err := fhe.ParsePublicKey(data)
		if err != nil {
			slog.Error("invalid FHE public key", "error", err)
			os.Exit(1)
		}
		coproc = oracle.NewHTTPRelayer(cfg.RelayerURL)
		eval = fhe.NewEvaluator(pk)
		slog.Info("using coprocessor relayer", "url", cfg.RelayerURL, "oracle_signer", oracleSigner.Hex())
	}

	verifier, err := proof.NewVerifier(proofSigners)
	if err != nil {
		slog.Error("proof verifier setup failed", "error", err)
		os.Exit(1)
	}

	eng := engine.New(engine.Deps{
		Registry: reg,
		Store:    ciphertext.NewStore(eval),
		Verifier: verifier,
		Oracle:   oracle.NewAdapter(coproc, oracleSigner),
		Payer:    payout.NewLedger(reg),
	}, engine.Config{
		Limits: engine.Limits{
			MinEntryFee: cfg.MinEntryFee,
			MinDuration: cfg.MinDuration,
			MaxDuration: cfg.MaxDuration,
			MaxFeeBps:   cfg.MaxProtocolFeeBps,
		},
		TreasuryOwner: cfg.TreasuryOwner,
	})

	if local != nil {
		go local.Run(ctx, eng.Deliver)
	}

	pending, err := eng.PendingSettlements(ctx)
	if err != nil {
		slog.Error("failed to list pending settlements", "error", err)
	} else if len(pending) > 0 {
		slog.Warn("settlements awaiting the coprocessor", "count", len(pending))
	}

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(router.NewRouter(eng)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

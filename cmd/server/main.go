package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spleety/spleety/internal/config"
	"github.com/spleety/spleety/internal/keys"
	"github.com/spleety/spleety/internal/ledger"
	"github.com/spleety/spleety/internal/ledger/sqlite"
	"github.com/spleety/spleety/internal/oracle"
	"github.com/spleety/spleety/internal/program"
	"github.com/spleety/spleety/internal/scanner"
	"github.com/spleety/spleety/internal/server"
	"github.com/spleety/spleety/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var l *ledger.Ledger
	if cfg.DBPath != "" {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open ledger store", "error", err)
			os.Exit(1)
		}
		l, err = ledger.NewWithStore(ctx, cfg.RentPerByte, store)
		if err != nil {
			slog.Error("failed to load ledger", "error", err)
			os.Exit(1)
		}
		slog.Info("ledger loaded", "database", cfg.DBPath)
	} else {
		l = ledger.New(cfg.RentPerByte)
		slog.Info("ledger running in memory")
	}
	defer l.Close()

	deriver := keys.NewDeriver(cfg.ProgramID, cfg.OracleProgramID)
	converter := oracle.NewConverter(cfg.PriceMaxAge)
	prog := program.New(program.Config{
		Ledger:    l,
		Deriver:   deriver,
		Converter: converter,
	})
	sc := scanner.New(l, cfg.ProgramID)

	publisher, err := setupOracle(ctx, cfg, l, deriver)
	if err != nil {
		slog.Error("failed to set up oracle", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, l, prog, sc, publisher)
	slog.Info("server starting", "address", cfg.ListenAddr, "program", cfg.ProgramID.String())
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Router()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// setupOracle creates the dev oracle authority and seeds the price feed so
// payments work out of the box.
func setupOracle(ctx context.Context, cfg *config.Config, l *ledger.Ledger, deriver *keys.Deriver) (*oracle.Publisher, error) {
	authority, err := keys.NewKeypair()
	if err != nil {
		return nil, err
	}
	if err := l.Airdrop(ctx, authority.Address(), cfg.AirdropAmount); err != nil {
		return nil, err
	}

	publisher := oracle.NewPublisher(l, deriver, authority)
	if cfg.InitialPriceNativePerUSD != "" {
		mantissa, exponent, err := oracle.ParsePrice(cfg.InitialPriceNativePerUSD)
		if err != nil {
			return nil, err
		}
		addr, err := publisher.Publish(ctx, mantissa, exponent, time.Now())
		if err != nil {
			return nil, err
		}
		slog.Info("price feed seeded",
			"feed", addr.String(),
			"native_per_usd", cfg.InitialPriceNativePerUSD,
		)
	}
	return publisher, nil
}

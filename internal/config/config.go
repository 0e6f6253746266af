// Package config loads server configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spleety/spleety/internal/keys"
)

// Published namespace addresses from the devnet deployment. Overridable per
// environment; nothing in the code depends on these specific values.
const (
	defaultProgramID       = "34NJCLuWB7FXCw4St5kpSrbx6tK8gdBW2TG8tpaY8Nwh"
	defaultOracleProgramID = "2ioipav7WWCimNKLFTrLUXC4umXvGDkd3Uf4Z2oNmxtm"
)

// Config holds everything the server binary needs.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// DBPath is the SQLite ledger database path. Empty runs the ledger
	// in memory only.
	DBPath string

	// JWTSecret signs session tokens.
	JWTSecret string

	// TokenTTL is how long session tokens stay valid.
	TokenTTL time.Duration

	// ProgramID and OracleProgramID are the protocol namespaces.
	ProgramID       keys.Address
	OracleProgramID keys.Address

	// RentPerByte sets the ledger's rent rate, in native minor units.
	RentPerByte uint64

	// PriceMaxAge bounds oracle snapshot freshness for payments.
	PriceMaxAge time.Duration

	// AirdropAmount funds newly created dev wallets, in native minor units.
	AirdropAmount uint64

	// InitialPriceNativePerUSD seeds the dev price feed at startup, as a
	// decimal string (native coins per USD). Empty skips seeding.
	InitialPriceNativePerUSD string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:               getEnv("LISTEN_ADDR", ":8080"),
		DBPath:                   os.Getenv("DB_PATH"),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		InitialPriceNativePerUSD: getEnv("ORACLE_INITIAL_PRICE", "0.0066667"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PriceMaxAge, err = getDuration("PRICE_MAX_AGE", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RentPerByte, err = getUint("RENT_PER_BYTE", 6960); err != nil {
		return nil, err
	}
	if cfg.AirdropAmount, err = getUint("AIRDROP_AMOUNT", 2_000_000_000); err != nil {
		return nil, err
	}

	if cfg.ProgramID, err = getAddress("PROGRAM_ID", defaultProgramID); err != nil {
		return nil, err
	}
	if cfg.OracleProgramID, err = getAddress("ORACLE_PROGRAM_ID", defaultOracleProgramID); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getUint(key string, fallback uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	u, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return u, nil
}

func getAddress(key, fallback string) (keys.Address, error) {
	raw := getEnv(key, fallback)
	addr, err := keys.ParseAddress(raw)
	if err != nil {
		return keys.ZeroAddress, fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

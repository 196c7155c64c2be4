// Package config loads amoca settings from ~/.amoca/config.json, then lets a
// .env file in the same directory and AMOCA_* environment variables override
// individual fields.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultAlgorithm = "fastest"
	defaultLogLevel  = "info"
	defaultRateLimit = 8.0 // requests per second against the public devnet RPC

	configFile = "config.json"
	envFile    = ".env"
	logFile    = "amoca.log"
	keyDir     = "keys"
)

// ErrUnknownKey is returned by Set for keys that are not settable.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds all amoca configuration.
type Config struct {
	RPCURL       string   `json:"rpc_url"       env:"AMOCA_RPC_URL"`
	CustomRPCs   []string `json:"custom_rpcs"   env:"AMOCA_RPC_URLS" envSeparator:","`
	RPCAlgorithm string   `json:"rpc_algorithm" env:"AMOCA_RPC_ALGORITHM"` // "fastest" | "round-robin" | "failover"
	RPCRateLimit float64  `json:"rpc_rate_limit" env:"AMOCA_RPC_RATE_LIMIT"`
	Commitment   string   `json:"commitment"    env:"AMOCA_COMMITMENT"` // "processed" | "confirmed" | "finalized"
	Cluster      string   `json:"cluster"       env:"AMOCA_CLUSTER"`

	TokenMint     string `json:"token_mint"     env:"AMOCA_TOKEN_MINT"`
	TokenSymbol   string `json:"token_symbol"   env:"AMOCA_TOKEN_SYMBOL"`
	TokenDecimals uint8  `json:"token_decimals" env:"AMOCA_TOKEN_DECIMALS"`

	Treasury     string  `json:"treasury"      env:"AMOCA_TREASURY"`
	InvestAmount float64 `json:"invest_amount" env:"AMOCA_INVEST_AMOUNT"`
	InvestAsset  string  `json:"invest_asset"  env:"AMOCA_INVEST_ASSET"` // "sol" | "token"

	RelyingPartyID     string `json:"relying_party_id"     env:"AMOCA_RP_ID"`
	DiscoveryTimeoutMs int    `json:"discovery_timeout_ms" env:"AMOCA_DISCOVERY_TIMEOUT_MS"`
	KeyringPassword    string `json:"-"                    env:"AMOCA_KEYRING_PASSWORD"`

	CatalogFile  string `json:"catalog_file,omitempty" env:"AMOCA_CATALOG_FILE"`
	LogLevel     string `json:"log_level"              env:"AMOCA_LOG_LEVEL"`
	LogFile      string `json:"log_file,omitempty"     env:"AMOCA_LOG_FILE"`
	MetricsAddr  string `json:"metrics_addr,omitempty" env:"AMOCA_METRICS_ADDR"`
	OTelEndpoint string `json:"otel_endpoint,omitempty" env:"AMOCA_OTEL_ENDPOINT"`

	// internal: config dir path used for Save()
	configDir string
}

// Load reads config from dir (or creates defaults), then applies .env and
// environment overrides. dir defaults to ~/.amoca.
func Load(dir string) (*Config, error) {
	cfg, err := Read(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads only the persisted file, without environment overrides. Use it
// before Save so that overrides are not written back.
func Read(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".amoca")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.configDir = dir
	return cfg, nil
}

// ApplyEnv loads <dir>/.env (without clobbering variables already set in the
// process) and overlays AMOCA_* variables onto c.
func (c *Config) ApplyEnv() error {
	path := filepath.Join(c.configDir, envFile)
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	switch c.RPCAlgorithm {
	case "fastest", "round-robin", "failover":
	default:
		return fmt.Errorf("invalid rpc_algorithm %q (fastest, round-robin, failover)", c.RPCAlgorithm)
	}
	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid commitment %q (processed, confirmed, finalized)", c.Commitment)
	}
	switch c.InvestAsset {
	case "sol", "token":
	default:
		return fmt.Errorf("invalid invest_asset %q (sol, token)", c.InvestAsset)
	}
	if c.InvestAmount <= 0 {
		return fmt.Errorf("invest_amount must be positive, got %v", c.InvestAmount)
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("rpc_rate_limit must not be negative, got %v", c.RPCRateLimit)
	}
	if c.DiscoveryTimeoutMs < 0 {
		return fmt.Errorf("discovery_timeout_ms must not be negative, got %d", c.DiscoveryTimeoutMs)
	}
	return nil
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	return []string{
		"rpc_url", "rpc_algorithm", "rpc_rate_limit", "commitment", "cluster",
		"token_mint", "token_symbol", "token_decimals", "treasury",
		"invest_amount", "invest_asset", "relying_party_id",
		"discovery_timeout_ms", "catalog_file", "log_level", "log_file",
		"metrics_addr", "otel_endpoint",
	}
}

// Set updates one field from its string form and validates the result.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	next := *c
	switch key {
	case "rpc_url":
		next.RPCURL = value
	case "rpc_algorithm":
		next.RPCAlgorithm = value
	case "rpc_rate_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("rpc_rate_limit: %w", err)
		}
		next.RPCRateLimit = f
	case "commitment":
		next.Commitment = value
	case "cluster":
		next.Cluster = value
	case "token_mint":
		next.TokenMint = value
	case "token_symbol":
		next.TokenSymbol = value
	case "token_decimals":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("token_decimals: %w", err)
		}
		next.TokenDecimals = uint8(n)
	case "treasury":
		next.Treasury = value
	case "invest_amount":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invest_amount: %w", err)
		}
		next.InvestAmount = f
	case "invest_asset":
		next.InvestAsset = strings.ToLower(value)
	case "relying_party_id":
		next.RelyingPartyID = value
	case "discovery_timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("discovery_timeout_ms: %w", err)
		}
		next.DiscoveryTimeoutMs = n
	case "catalog_file":
		next.CatalogFile = value
	case "log_level":
		next.LogLevel = value
	case "log_file":
		next.LogFile = value
	case "metrics_addr":
		next.MetricsAddr = value
	case "otel_endpoint":
		next.OTelEndpoint = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// AddRPC adds a fallback RPC URL.
func (c *Config) AddRPC(url string) error {
	if url == c.RPCURL || slices.Contains(c.CustomRPCs, url) {
		return fmt.Errorf("RPC %s already configured", url)
	}
	c.CustomRPCs = append(c.CustomRPCs, url)
	return nil
}

// RemoveRPC removes a fallback RPC URL.
func (c *Config) RemoveRPC(url string) error {
	idx := slices.Index(c.CustomRPCs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found", url)
	}
	c.CustomRPCs = slices.Delete(c.CustomRPCs, idx, idx+1)
	return nil
}

// RPCEndpoints returns the primary URL followed by the fallbacks, deduplicated.
func (c *Config) RPCEndpoints() []string {
	out := make([]string, 0, 1+len(c.CustomRPCs))
	for _, u := range append([]string{c.RPCURL}, c.CustomRPCs...) {
		if u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// DiscoveryTimeout is the bound applied to each passkey discovery request.
func (c *Config) DiscoveryTimeout() time.Duration {
	if c.DiscoveryTimeoutMs <= 0 {
		return DefaultDiscoveryTimeout
	}
	return time.Duration(c.DiscoveryTimeoutMs) * time.Millisecond
}

// LogPath returns the log file path, defaulting to <dir>/amoca.log.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.configDir, logFile)
}

// KeyDir is where the file keyring backend stores encrypted items.
func (c *Config) KeyDir() string {
	return filepath.Join(c.configDir, keyDir)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		RPCURL:         DefaultRPCURL,
		RPCAlgorithm:   defaultAlgorithm,
		RPCRateLimit:   defaultRateLimit,
		Commitment:     DefaultCommitment,
		Cluster:        DefaultCluster,
		TokenMint:      DefaultTokenMint,
		TokenSymbol:    DefaultTokenSymbol,
		TokenDecimals:  DefaultTokenDecimals,
		Treasury:       DefaultTreasury,
		InvestAmount:   DefaultInvestAmount,
		InvestAsset:    DefaultInvestAsset,
		RelyingPartyID: DefaultRelyingParty,
		LogLevel:       defaultLogLevel,
		configDir:      dir,
	}
}

// Package config loads nf-server settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the server configuration.
type Config struct {
	GRPCAddr string `validate:"required,hostname_port"`
	HTTPAddr string `validate:"required,hostname_port"`
	TLSCert  string `validate:"required_with=TLSKey"`
	TLSKey   string `validate:"required_with=TLSCert"`

	// Dev runs against the in-memory store, the devnet chain and the loopback oracle.
	Dev bool
	DSN string

	JWTKey        string        `validate:"required,min=16"`
	AccessTTL     time.Duration `validate:"gt=0"`
	LoginWindow   time.Duration `validate:"gt=0"`
	LoginMaxFails int           `validate:"gte=1"`
	LoginBlock    time.Duration `validate:"gt=0"`
	Admins        []string      `validate:"dive,eth_addr"`
	Oracle        string        `validate:"omitempty,eth_addr"`

	RPCURL      string `validate:"omitempty,url"`
	CustodyKey  string `validate:"omitempty,hexadecimal"`
	RewardToken string `validate:"omitempty,eth_addr"`
	FundsToken  string `validate:"omitempty,eth_addr"`

	OracleURL        string        `validate:"omitempty,url"`
	OracleSecret     string
	OracleCallback   string        `validate:"omitempty,url"`
	OracleQueryCost  uint64
	RequestTTL       time.Duration `validate:"gt=0"`
	QueryMaxAttempts int           `validate:"gte=1"`
	DispatchInterval time.Duration `validate:"gt=0"`
	ExpiryInterval   time.Duration `validate:"gt=0"`
	DevRarity        uint64

	MaxBatch       int           `validate:"gte=1,lte=1000"`
	ConfigCacheTTL time.Duration `validate:"gte=0"`
}

// Load reads .env (if present), applies NF_* environment defaults and parses args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	c := &Config{}
	fs := flag.NewFlagSet("nf-server", flag.ContinueOnError)
	fs.StringVar(&c.GRPCAddr, "addr", getEnv("NF_GRPC_ADDR", ":8443"), "gRPC listen address")
	fs.StringVar(&c.HTTPAddr, "http-addr", getEnv("NF_HTTP_ADDR", ":8080"), "ops and oracle webhook listen address")
	fs.StringVar(&c.TLSCert, "tls-cert", getEnv("NF_TLS_CERT", ""), "TLS certificate (PEM); plaintext when empty")
	fs.StringVar(&c.TLSKey, "tls-key", getEnv("NF_TLS_KEY", ""), "TLS private key (PEM)")
	fs.BoolVar(&c.Dev, "dev", getBool("NF_DEV", false), "in-memory store, devnet chain and loopback oracle")
	fs.StringVar(&c.DSN, "dsn", getEnv("NF_DSN", ""), "PostgreSQL DSN")

	fs.StringVar(&c.JWTKey, "jwt-key", getEnv("NF_JWT_KEY", ""), "HS256 signing key")
	fs.DurationVar(&c.AccessTTL, "access-ttl", getDuration("NF_ACCESS_TTL", 15*time.Minute), "access token TTL")
	fs.DurationVar(&c.LoginWindow, "login-window", getDuration("NF_LOGIN_WINDOW", 15*time.Minute), "failed login counting window")
	fs.IntVar(&c.LoginMaxFails, "login-max-fails", getInt("NF_LOGIN_MAX_FAILS", 5), "failed logins before lockout")
	fs.DurationVar(&c.LoginBlock, "login-block", getDuration("NF_LOGIN_BLOCK", 15*time.Minute), "lockout duration")
	admins := fs.String("admins", getEnv("NF_ADMINS", ""), "comma-separated admin addresses")
	fs.StringVar(&c.Oracle, "oracle", getEnv("NF_ORACLE", ""), "oracle account address")

	fs.StringVar(&c.RPCURL, "rpc", getEnv("NF_RPC_URL", ""), "EVM JSON-RPC endpoint")
	fs.StringVar(&c.CustodyKey, "custody-key", getEnv("NF_CUSTODY_KEY", ""), "hex private key of the custody account")
	fs.StringVar(&c.RewardToken, "reward-token", getEnv("NF_REWARD_TOKEN", ""), "reward ERC-20 address")
	fs.StringVar(&c.FundsToken, "funds-token", getEnv("NF_FUNDS_TOKEN", ""), "fee currency ERC-20 address")

	fs.StringVar(&c.OracleURL, "oracle-url", getEnv("NF_ORACLE_URL", ""), "oracle query endpoint")
	fs.StringVar(&c.OracleSecret, "oracle-secret", getEnv("NF_ORACLE_SECRET", ""), "HMAC key shared with the oracle")
	fs.StringVar(&c.OracleCallback, "oracle-callback", getEnv("NF_ORACLE_CALLBACK", ""), "public URL of /oracle/callback")
	fs.Uint64Var(&c.OracleQueryCost, "oracle-query-cost", getUint("NF_ORACLE_QUERY_COST", 1), "funding debited per oracle query")
	fs.DurationVar(&c.RequestTTL, "request-ttl", getDuration("NF_REQUEST_TTL", 24*time.Hour), "pending harvest request lifetime")
	fs.IntVar(&c.QueryMaxAttempts, "query-max-attempts", getInt("NF_QUERY_MAX_ATTEMPTS", 8), "oracle delivery attempts per query")
	fs.DurationVar(&c.DispatchInterval, "dispatch-interval", getDuration("NF_DISPATCH_INTERVAL", 2*time.Second), "outbox poll interval")
	fs.DurationVar(&c.ExpiryInterval, "expiry-interval", getDuration("NF_EXPIRY_INTERVAL", time.Minute), "request expiry poll interval")
	fs.Uint64Var(&c.DevRarity, "dev-rarity", getUint("NF_DEV_RARITY", 100), "rarity answered by the loopback oracle")

	fs.IntVar(&c.MaxBatch, "max-batch", getInt("NF_MAX_BATCH", 50), "max tokens per batch call")
	fs.DurationVar(&c.ConfigCacheTTL, "config-cache-ttl", getDuration("NF_CONFIG_CACHE_TTL", 30*time.Second), "collection config cache TTL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	c.Admins = splitList(*admins)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field formats and, outside dev mode, the settings needed to
// reach Postgres, the chain and the oracle.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Dev {
		return nil
	}
	required := []struct{ name, value string }{
		{"NF_DSN", c.DSN},
		{"NF_RPC_URL", c.RPCURL},
		{"NF_CUSTODY_KEY", c.CustodyKey},
		{"NF_REWARD_TOKEN", c.RewardToken},
		{"NF_FUNDS_TOKEN", c.FundsToken},
		{"NF_ORACLE", c.Oracle},
		{"NF_ORACLE_URL", c.OracleURL},
		{"NF_ORACLE_SECRET", c.OracleSecret},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return def
}

func getUint(key string, def uint64) uint64 {
	if n, err := strconv.ParseUint(getEnv(key, ""), 10, 64); err == nil {
		return n
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

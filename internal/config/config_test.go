package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const adminAddr = "0x00000000000000000000000000000000000000aa"

func TestLoad_DevDefaults(t *testing.T) {
	t.Setenv("NF_JWT_KEY", "0123456789abcdef")
	t.Setenv("NF_DEV", "true")

	c, err := Load(nil)
	require.NoError(t, err)
	require.True(t, c.Dev)
	require.Equal(t, ":8443", c.GRPCAddr)
	require.Equal(t, 15*time.Minute, c.AccessTTL)
	require.Equal(t, 24*time.Hour, c.RequestTTL)
	require.Equal(t, 50, c.MaxBatch)
	require.Equal(t, uint64(100), c.DevRarity)
	require.Empty(t, c.Admins)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("NF_JWT_KEY", "0123456789abcdef")
	t.Setenv("NF_DEV", "true")
	t.Setenv("NF_MAX_BATCH", "10")

	c, err := Load([]string{"-max-batch", "5", "-admins", " " + adminAddr + ", ", "-request-ttl", "1h"})
	require.NoError(t, err)
	require.Equal(t, 5, c.MaxBatch)
	require.Equal(t, []string{adminAddr}, c.Admins)
	require.Equal(t, time.Hour, c.RequestTTL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "short jwt key", env: map[string]string{"NF_JWT_KEY": "short", "NF_DEV": "true"}},
		{name: "bad admin", env: map[string]string{"NF_JWT_KEY": "0123456789abcdef", "NF_DEV": "true"}, args: []string{"-admins", "bob"}},
		{name: "bad addr", env: map[string]string{"NF_JWT_KEY": "0123456789abcdef", "NF_DEV": "true"}, args: []string{"-addr", "nope"}},
		{name: "cert without key", env: map[string]string{"NF_JWT_KEY": "0123456789abcdef", "NF_DEV": "true"}, args: []string{"-tls-cert", "c.pem"}},
		{name: "production needs backends", env: map[string]string{"NF_JWT_KEY": "0123456789abcdef", "NF_DEV": "false"}},
		{name: "unknown flag", env: map[string]string{"NF_JWT_KEY": "0123456789abcdef", "NF_DEV": "true"}, args: []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.args)
			require.Error(t, err)
		})
	}
}

func TestValidate_Production(t *testing.T) {
	c := &Config{
		GRPCAddr:         ":8443",
		HTTPAddr:         ":8080",
		DSN:              "postgres://farm@localhost/farm",
		JWTKey:           "0123456789abcdef",
		AccessTTL:        time.Minute,
		LoginWindow:      time.Minute,
		LoginMaxFails:    3,
		LoginBlock:       time.Minute,
		Admins:           []string{adminAddr},
		Oracle:           "0x00000000000000000000000000000000000000bb",
		RPCURL:           "http://localhost:8545",
		CustodyKey:       "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		RewardToken:      "0x00000000000000000000000000000000000000cc",
		FundsToken:       "0x00000000000000000000000000000000000000dd",
		OracleURL:        "https://oracle.example/query",
		OracleSecret:     "s",
		RequestTTL:       time.Hour,
		QueryMaxAttempts: 3,
		DispatchInterval: time.Second,
		ExpiryInterval:   time.Second,
		MaxBatch:         10,
	}
	require.NoError(t, c.Validate())

	c.OracleSecret = ""
	c.DSN = ""
	err := c.Validate()
	require.ErrorContains(t, err, "NF_DSN")
	require.ErrorContains(t, err, "NF_ORACLE_SECRET")
}

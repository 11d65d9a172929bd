// Command nf is a CLI client for the NFT farm service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/nft-farm/api/farmv1"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Address     string    `json:"address,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "nft-farm")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nft-farm")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// AppConfig carries the connection settings shared by every command.
type AppConfig struct {
	*cli.App
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	timeout   time.Duration
	out       io.Writer

	// extra dial options, used by tests to route through an in-memory listener.
	dialOpts []grpc.DialOption
}

func (ac *AppConfig) dial(bearer string) (*grpc.ClientConn, *farmv1.FarmClient, error) {
	var creds credentials.TransportCredentials
	if ac.plaintext {
		creds = grpcinsecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(ac.caPath, ac.insecure); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !ac.plaintext}))
	}
	opts = append(opts, ac.dialOpts...)
	cc, err := grpc.NewClient(ac.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, farmv1.NewFarmClient(cc), nil
}

// call dials the server, optionally with the saved token, and runs fn under
// the command timeout.
func (ac *AppConfig) call(c *cli.Context, authed bool, fn func(ctx context.Context, fc *farmv1.FarmClient) error) error {
	var token string
	if authed {
		var err error
		if token, err = loadToken(); err != nil {
			return err
		}
	}
	cc, fc, err := ac.dial(token)
	if err != nil {
		return err
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(c.Context, ac.timeout)
	defer cancel()
	return fn(ctx, fc)
}

func (ac *AppConfig) printJSON(v any) {
	enc := json.NewEncoder(ac.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func initApp(out io.Writer) *AppConfig {
	ac := &AppConfig{out: out}
	ac.App = &cli.App{
		Name:      "nf",
		Usage:     "Client for the NFT farm staking service",
		Version:   fmt.Sprintf("%s (%s)", version, buildDate),
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "server address",
				Value:       "localhost:8443",
				EnvVars:     []string{"NF_ADDR"},
				Destination: &ac.addr,
			},
			&cli.StringFlag{
				Name:        "cacert",
				Usage:       "CA cert (PEM)",
				EnvVars:     []string{"NF_CACERT"},
				Destination: &ac.caPath,
			},
			&cli.BoolFlag{
				Name:        "insecure",
				Usage:       "skip cert verify (dev)",
				Destination: &ac.insecure,
			},
			&cli.BoolFlag{
				Name:        "plaintext",
				Usage:       "connect without TLS (dev server)",
				EnvVars:     []string{"NF_PLAINTEXT"},
				Destination: &ac.plaintext,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "per-command RPC timeout",
				Value:       30 * time.Second,
				Destination: &ac.timeout,
			},
		},
		Commands: []*cli.Command{
			registerCmd(ac),
			loginCmd(ac),
			collectionCmd(ac),
			stakeCmd(ac),
			unstakeCmd(ac),
			userCmd(ac),
			harvestCmd(ac),
			requestCmd(ac),
			fundCmd(ac),
		},
	}
	return ac
}

// describe renders RPC errors by code and message.
func describe(err error) string {
	if s, ok := status.FromError(err); ok {
		return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
	}
	return err.Error()
}

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	app := initApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

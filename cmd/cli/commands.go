package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/and161185/nft-farm/api/farmv1"
	"github.com/and161185/nft-farm/internal/crypto"
)

func cidFlag() cli.Flag { return &cli.Uint64Flag{Name: "cid", Usage: "collection id", Required: true} }

func keyFlag() cli.Flag {
	return &cli.StringFlag{Name: "key", Usage: "hex private key of the wallet", EnvVars: []string{"NF_PRIVATE_KEY"}}
}

func passwordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "password",
		Aliases:  []string{"p"},
		Usage:    "account password",
		EnvVars:  []string{"NF_PASSWORD"},
		Required: true,
	}
}

func paymentFlag() cli.Flag {
	return &cli.StringFlag{Name: "payment", Usage: "fee paid with the call", Value: "0"}
}

// parseKey accepts a hex private key with or without the 0x prefix.
func parseKey(s string) (*ecdsa.PrivateKey, error) {
	if s == "" {
		return nil, errors.New("need --key")
	}
	return ethcrypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
}

func registerCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account for a wallet, proving control with a signature",
		Flags: []cli.Flag{keyFlag(), passwordFlag()},
		Action: func(c *cli.Context) error {
			key, err := parseKey(c.String("key"))
			if err != nil {
				return err
			}
			addr := ethcrypto.PubkeyToAddress(key.PublicKey)
			sig, err := crypto.SignText(crypto.RegistrationMessage(addr), key)
			if err != nil {
				return err
			}
			return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
				_, err := fc.Register(ctx, &farmv1.RegisterRequest{
					Address:   addr.Hex(),
					Password:  c.String("password"),
					Signature: hexutil.Encode(sig),
				})
				if err != nil {
					return err
				}
				ac.printJSON(map[string]string{"address": addr.Hex()})
				return nil
			})
		},
	}
}

func loginCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Obtain an access token and save it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "account address (or use --key)"},
			keyFlag(),
			passwordFlag(),
		},
		Action: func(c *cli.Context) error {
			addr := c.String("address")
			if addr == "" {
				key, err := parseKey(c.String("key"))
				if err != nil {
					return errors.New("need --address or --key")
				}
				addr = ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
			}
			return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
				resp, err := fc.Login(ctx, &farmv1.LoginRequest{Address: addr, Password: c.String("password")})
				if err != nil {
					return err
				}
				if err := saveToken(tokenFile{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt, Address: addr}); err != nil {
					return err
				}
				ac.printJSON(map[string]any{"ok": true, "roles": resp.Roles, "expires_at": resp.ExpiresAt})
				return nil
			})
		},
	}
}

func collectionCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:    "collection",
		Aliases: []string{"c"},
		Usage:   "Collection registry",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a collection or update its config (admin)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Usage: "NFT contract address", Required: true},
					&cli.BoolFlag{Name: "stakable", Value: true},
					&cli.StringFlag{Name: "staking-fee", Value: "0"},
					&cli.StringFlag{Name: "harvesting-fee", Value: "0"},
					&cli.StringFlag{Name: "multiplier", Value: "1"},
					&cli.Uint64Flag{Name: "maturity", Usage: "maturity period, seconds"},
					&cli.Uint64Flag{Name: "max-days", Usage: "cap on days counted for reward", Value: 30},
					&cli.Uint64Flag{Name: "limit", Usage: "max tokens per user", Value: 10},
				},
				Action: func(c *cli.Context) error {
					cfg := farmv1.CollectionConfig{
						IsStakable:        c.Bool("stakable"),
						CollectionAddress: c.String("address"),
						StakingFee:        c.String("staking-fee"),
						HarvestingFee:     c.String("harvesting-fee"),
						Multiplier:        c.String("multiplier"),
						MaturityPeriod:    c.Uint64("maturity"),
						MaxDaysForStaking: c.Uint64("max-days"),
						StakingLimit:      c.Uint64("limit"),
					}
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.RegisterOrUpdateCollection(ctx, &farmv1.RegisterCollectionRequest{Config: cfg})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name:  "get",
				Usage: "Show a collection config",
				Flags: []cli.Flag{cidFlag()},
				Action: func(c *cli.Context) error {
					return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.GetConfig(ctx, &farmv1.CidRequest{Cid: c.Uint64("cid")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List registered collections",
				Action: func(c *cli.Context) error {
					return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.ListCollections(ctx, &farmv1.Empty{})
						if err != nil {
							return err
						}
						ac.printJSON(out.Collections)
						return nil
					})
				},
			},
			{
				Name:  "info",
				Usage: "Show config and pool aggregates",
				Flags: []cli.Flag{cidFlag()},
				Action: func(c *cli.Context) error {
					return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.GetCollectionInfo(ctx, &farmv1.CidRequest{Cid: c.Uint64("cid")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name:  "stakers",
				Usage: "Number of users with tokens staked",
				Flags: []cli.Flag{cidFlag()},
				Action: func(c *cli.Context) error {
					return ac.call(c, false, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.ViewAmountOfStakers(ctx, &farmv1.CidRequest{Cid: c.Uint64("cid")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
		},
	}
}

func stakeCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "stake",
		Usage: "Stake one or more tokens",
		Flags: []cli.Flag{
			cidFlag(),
			&cli.StringSliceFlag{Name: "token", Aliases: []string{"t"}, Usage: "token id, repeatable", Required: true},
			paymentFlag(),
		},
		Action: func(c *cli.Context) error {
			ids := c.StringSlice("token")
			return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
				var err error
				if len(ids) == 1 {
					_, err = fc.Stake(ctx, &farmv1.StakeRequest{Cid: c.Uint64("cid"), TokenID: ids[0], Payment: c.String("payment")})
				} else {
					_, err = fc.BatchStake(ctx, &farmv1.BatchStakeRequest{Cid: c.Uint64("cid"), TokenIDs: ids, Payment: c.String("payment")})
				}
				if err != nil {
					return err
				}
				ac.printJSON(map[string]any{"staked": ids})
				return nil
			})
		},
	}
}

func unstakeCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "unstake",
		Usage: "Withdraw one or more staked tokens",
		Flags: []cli.Flag{
			cidFlag(),
			&cli.StringSliceFlag{Name: "token", Aliases: []string{"t"}, Usage: "token id, repeatable", Required: true},
		},
		Action: func(c *cli.Context) error {
			ids := c.StringSlice("token")
			return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
				var err error
				if len(ids) == 1 {
					_, err = fc.Unstake(ctx, &farmv1.UnstakeRequest{Cid: c.Uint64("cid"), TokenID: ids[0]})
				} else {
					_, err = fc.BatchUnstake(ctx, &farmv1.BatchUnstakeRequest{Cid: c.Uint64("cid"), TokenIDs: ids})
				}
				if err != nil {
					return err
				}
				ac.printJSON(map[string]any{"unstaked": ids})
				return nil
			})
		},
	}
}

func userCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Show a staking position (defaults to the logged-in account)",
		Flags: []cli.Flag{
			cidFlag(),
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "address to inspect"},
		},
		Action: func(c *cli.Context) error {
			return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
				out, err := fc.GetUser(ctx, &farmv1.GetUserRequest{User: c.String("user"), Cid: c.Uint64("cid")})
				if err != nil {
					return err
				}
				ac.printJSON(out)
				return nil
			})
		},
	}
}

func harvestCmd(ac *AppConfig) *cli.Command {
	return &cli.Command{
		Name:  "harvest",
		Usage: "Request a reward; prints the oracle query id",
		Flags: []cli.Flag{cidFlag(), paymentFlag()},
		Action: func(c *cli.Context) error {
			return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
				out, err := fc.Harvest(ctx, &farmv1.HarvestRequest{Cid: c.Uint64("cid"), Payment: c.String("payment")})
				if err != nil {
					return err
				}
				ac.printJSON(out)
				return nil
			})
		},
	}
}

func requestCmd(ac *AppConfig) *cli.Command {
	idFlag := &cli.StringFlag{Name: "id", Usage: "oracle query id", Required: true}
	return &cli.Command{
		Name:    "request",
		Aliases: []string{"r"},
		Usage:   "Harvest requests",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show a harvest request",
				Flags: []cli.Flag{idFlag},
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.GetRequest(ctx, &farmv1.QueryRequest{QueryID: c.String("id")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name:  "cancel",
				Usage: "Cancel a pending request (admin)",
				Flags: []cli.Flag{idFlag},
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						if _, err := fc.CancelRequest(ctx, &farmv1.QueryRequest{QueryID: c.String("id")}); err != nil {
							return err
						}
						ac.printJSON(map[string]string{"cancelled": c.String("id")})
						return nil
					})
				},
			},
			{
				Name:  "result",
				Usage: "Deliver an oracle rarity for a request (oracle)",
				Flags: []cli.Flag{idFlag, &cli.StringFlag{Name: "rarity", Required: true}},
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.OnOracleResult(ctx, &farmv1.OracleResultRequest{
							QueryID: c.String("id"),
							Rarity:  c.String("rarity"),
						})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
		},
	}
}

func fundCmd(ac *AppConfig) *cli.Command {
	amountFlag := &cli.StringFlag{Name: "amount", Required: true}
	return &cli.Command{
		Name:  "fund",
		Usage: "Oracle funding balance (admin)",
		Subcommands: []*cli.Command{
			{
				Name:  "deposit",
				Flags: []cli.Flag{amountFlag},
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.Deposit(ctx, &farmv1.AmountRequest{Amount: c.String("amount")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name:  "withdraw",
				Flags: []cli.Flag{amountFlag},
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.WithdrawFunding(ctx, &farmv1.AmountRequest{Amount: c.String("amount")})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
			{
				Name: "balance",
				Action: func(c *cli.Context) error {
					return ac.call(c, true, func(ctx context.Context, fc *farmv1.FarmClient) error {
						out, err := fc.FundingBalance(ctx, &farmv1.Empty{})
						if err != nil {
							return err
						}
						ac.printJSON(out)
						return nil
					})
				},
			},
		},
	}
}

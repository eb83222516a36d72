package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rewardchain/cmd/internal/passphrase"
	"rewardchain/config"
	"rewardchain/core/types"
	"rewardchain/crypto"
	"rewardchain/rpc"
)

const (
	rpcURLEnv       = "RWD_RPC_URL"
	rpcTokenEnv     = "RWD_RPC_TOKEN"
	keystorePassEnv = "RWD_KEYSTORE_PASS"
	defaultKeyPath  = "./operator.keystore"
)

// globals are the options shared by every subcommand.
type globals struct {
	endpoint string
	token    string
	chainID  uint64
	now      func() time.Time
	pass     func() (string, error)
}

func defaultGlobals() *globals {
	endpoint := strings.TrimSpace(os.Getenv(rpcURLEnv))
	if endpoint == "" {
		endpoint = "http://" + config.DefaultRPCAddress
	}
	return &globals{
		endpoint: endpoint,
		token:    os.Getenv(rpcTokenEnv),
		chainID:  config.DefaultChainID,
		now:      time.Now,
		pass:     passphrase.NewSource(keystorePassEnv, "operator").Get,
	}
}

func main() {
	os.Exit(run(os.Args[1:], defaultGlobals(), os.Stdout, os.Stderr))
}

func run(args []string, g *globals, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rewardsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.endpoint, "rpc", g.endpoint, "JSON-RPC endpoint")
	fs.StringVar(&g.token, "token", g.token, "bearer token for transaction submission")
	fs.Uint64Var(&g.chainID, "chain-id", g.chainID, "chain id to sign for")
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 2
	}

	cmd, cmdArgs := rest[0], rest[1:]
	var err error
	switch cmd {
	case "generate-key":
		err = runGenerateKey(cmdArgs, g, stdout, stderr)
	case "init-config":
		err = runInitConfig(cmdArgs, g, stdout, stderr)
	case "init-mint":
		err = runInitMint(cmdArgs, g, stdout, stderr)
	case "subscribe":
		err = runMinutes(types.TxTypeSubscribeMinutes, cmdArgs, g, stdout, stderr)
	case "add-minutes":
		err = runMinutes(types.TxTypeAddMinutes, cmdArgs, g, stdout, stderr)
	case "create-profile":
		err = runProfile(types.TxTypeCreateProfile, cmdArgs, g, stdout, stderr)
	case "set-profile":
		err = runProfile(types.TxTypeSetProfile, cmdArgs, g, stdout, stderr)
	case "status":
		err = runStatus(cmdArgs, g, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fmt.Fprintln(stderr, usage())
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var rpcErr *rpc.RPCError
		if errors.As(err, &rpcErr) {
			fmt.Fprintf(stderr, "Error: %s (code %d)\n", rpcErr.Message, rpcErr.Code)
			return 1
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage() string {
	return strings.Join([]string{
		"Usage: rewardsctl [--rpc URL] [--token TOKEN] [--chain-id ID] <command> [flags]",
		"",
		"Commands:",
		"  generate-key    --out PATH                    create an encrypted keystore",
		"  init-config     --key PATH                    create the rewards config (caller becomes authority)",
		"  init-mint       --key PATH --decimals N       create the reward token",
		"  subscribe       --key PATH --minutes N [--timestamp T]",
		"  add-minutes     --key PATH --minutes N [--timestamp T]",
		"  create-profile  --key PATH [--nickname --tg --x --avatar]",
		"  set-profile     --key PATH [--owner ADDR] [--nickname --tg --x --avatar]",
		"  status          [--user ADDR]                 show config, addresses and user state",
	}, "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (g *globals) client() *rpc.Client {
	return rpc.NewClient(g.endpoint, g.token)
}

func loadKey(path string, g *globals) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--key is required")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found; run rewardsctl generate-key first", path)
		}
		return nil, err
	}
	pass, err := g.pass()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return key, nil
}

// submit signs a transaction with the next nonce of the key's account and
// sends it to the node.
func submit(g *globals, key *crypto.PrivateKey, txType types.TxType, payload interface{}) (*types.Receipt, error) {
	ctx := context.Background()
	client := g.client()
	sender := key.PubKey().Address()

	var nonce rpc.NonceResult
	if err := client.Call(ctx, "rewards_getNonce", &nonce, sender.String()); err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	data, err := types.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{ChainID: g.chainID, Type: txType, Nonce: nonce.Nonce, Data: data}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	var receipt types.Receipt
	if err := client.Call(ctx, "rewards_sendTransaction", &receipt, tx); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func printJSON(w io.Writer, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(data))
}

func runGenerateKey(args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet("generate-key", stderr)
	out := fs.String("out", defaultKeyPath, "keystore output path")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s already exists; pass --force to overwrite", *out)
	}
	pass, err := g.pass()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	fmt.Fprintf(stdout, "Address: %s\nKeystore: %s\n", key.PubKey().Address().String(), *out)
	return nil
}

func runInitConfig(args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet("init-config", stderr)
	keyPath := fs.String("key", defaultKeyPath, "operator keystore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keyPath, g)
	if err != nil {
		return err
	}
	receipt, err := submit(g, key, types.TxTypeInitializeConfig, nil)
	if err != nil {
		return err
	}
	printJSON(stdout, receipt)
	return nil
}

func runInitMint(args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet("init-mint", stderr)
	keyPath := fs.String("key", defaultKeyPath, "payer keystore")
	decimals := fs.Uint("decimals", 6, "reward token decimals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *decimals > 255 {
		return fmt.Errorf("decimals must fit in a byte, got %d", *decimals)
	}
	key, err := loadKey(*keyPath, g)
	if err != nil {
		return err
	}
	receipt, err := submit(g, key, types.TxTypeInitializeRewardMint, types.RewardMintPayload{Decimals: uint8(*decimals)})
	if err != nil {
		return err
	}
	printJSON(stdout, receipt)
	return nil
}

func runMinutes(txType types.TxType, args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet(txType.String(), stderr)
	keyPath := fs.String("key", defaultKeyPath, "user keystore")
	minutes := fs.Uint64("minutes", 0, "new cumulative minutes total")
	timestamp := fs.Uint64("timestamp", 0, "report timestamp in unix seconds (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ts := *timestamp
	if ts == 0 {
		ts = uint64(g.now().Unix())
	}
	key, err := loadKey(*keyPath, g)
	if err != nil {
		return err
	}
	receipt, err := submit(g, key, txType, types.MinutesPayload{Minutes: *minutes, Timestamp: ts})
	if err != nil {
		return err
	}
	printJSON(stdout, receipt)
	return nil
}

func runProfile(txType types.TxType, args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet(txType.String(), stderr)
	keyPath := fs.String("key", defaultKeyPath, "caller keystore")
	var payload types.ProfilePayload
	if txType == types.TxTypeSetProfile {
		fs.StringVar(&payload.Owner, "owner", "", "profile owner (defaults to the caller)")
	}
	fs.StringVar(&payload.Nickname, "nickname", "", "display name (max 32 bytes)")
	fs.StringVar(&payload.Telegram, "tg", "", "telegram handle (max 64 bytes)")
	fs.StringVar(&payload.XHandle, "x", "", "x handle (max 64 bytes)")
	fs.StringVar(&payload.AvatarCID, "avatar", "", "avatar content id (max 100 bytes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keyPath, g)
	if err != nil {
		return err
	}
	receipt, err := submit(g, key, txType, payload)
	if err != nil {
		return err
	}
	printJSON(stdout, receipt)
	return nil
}

type statusReport struct {
	Addresses rpc.DerivedAddressesResult `json:"addresses"`
	Config    *rpc.ConfigResult          `json:"config,omitempty"`
	User      *rpc.UserRecordResult      `json:"user,omitempty"`
	Profile   *rpc.ProfileResult         `json:"profile,omitempty"`
	Balance   *rpc.BalanceResult         `json:"balance,omitempty"`
}

func runStatus(args []string, g *globals, stdout, stderr io.Writer) error {
	fs := newFlagSet("status", stderr)
	user := fs.String("user", "", "user address to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	client := g.client()

	var report statusReport
	params := []interface{}{}
	if *user != "" {
		if _, err := crypto.ParseAccount(*user); err != nil {
			return err
		}
		params = append(params, *user)
	}
	if err := client.Call(ctx, "rewards_deriveAddresses", &report.Addresses, params...); err != nil {
		return err
	}
	if err := optionalCall(ctx, client, "rewards_getConfig", &report.Config); err != nil {
		return err
	}
	if *user != "" {
		if err := optionalCall(ctx, client, "rewards_getUserRecord", &report.User, *user); err != nil {
			return err
		}
		if err := optionalCall(ctx, client, "rewards_getProfile", &report.Profile, *user); err != nil {
			return err
		}
		if err := optionalCall(ctx, client, "rewards_getBalance", &report.Balance, *user); err != nil {
			return err
		}
	}
	printJSON(stdout, report)
	return nil
}

// optionalCall treats a not-found response as an absent section.
func optionalCall[T any](ctx context.Context, client *rpc.Client, method string, out **T, params ...interface{}) error {
	value := new(T)
	err := client.Call(ctx, method, value, params...)
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == rpc.CodeNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	*out = value
	return nil
}

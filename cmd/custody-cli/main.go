package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/crypto"
)

const defaultKeyFile = "wallet.key"

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, strings.Trim(string(e.Data), `"`))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// cli carries the global flags and output streams shared by every command.
type cli struct {
	endpoint string
	token    string
	stdout   io.Writer
	stderr   io.Writer
	http     *http.Client
	nonce    func() uint64
}

func main() {
	c := &cli{
		endpoint: defaultRPCEndpoint(),
		token:    strings.TrimSpace(os.Getenv("CUSTODY_RPC_TOKEN")),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		http:     &http.Client{Timeout: 15 * time.Second},
		nonce:    func() uint64 { return uint64(time.Now().UnixNano()) },
	}
	os.Exit(c.run(os.Args[1:]))
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://127.0.0.1:8899"
}

func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--token":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				c.endpoint = args[i+1]
			} else {
				c.token = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			c.endpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--token="):
			c.token = strings.TrimPrefix(arg, "--token=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func (c *cli) run(args []string) int {
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(c.stderr, err)
		return 1
	}
	if len(args) < 1 {
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
	switch args[0] {
	case "generate-key":
		return c.runGenerateKey(args[1:])
	case "balance":
		return c.runBalance(args[1:])
	case "transfer":
		return c.runTransfer(args[1:])
	case "token":
		return c.runTokenCommand(args[1:])
	case "vault":
		return c.runVaultCommand(args[1:])
	case "schedule":
		return c.runScheduleCommand(args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(c.stdout, usage())
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: custody-cli [--rpc URL] [--token TOKEN] <command> [flags]

Commands:
  generate-key [--out FILE]
  balance <address>
  transfer --key FILE --to ADDR --amount N
  token create-account --key FILE --owner ADDR --mint ADDR
  token transfer --key FILE --mint ADDR --to-owner ADDR --amount N
  token balance --owner ADDR --mint ADDR
  vault create|get|set-admin|transfer-ownership|accept|withdraw-sol|withdraw-token
  schedule create|assign|get|redeem`)
}

func (c *cli) fail(format string, args ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// call performs a JSON-RPC request and returns the raw result.
func (c *cli) call(method string, auth bool, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode rpc response (HTTP %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}
	return envelope.Result, nil
}

func (c *cli) printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintln(c.stdout, string(raw))
		return
	}
	fmt.Fprintln(c.stdout, buf.String())
}

func (c *cli) runGenerateKey(args []string) int {
	fs := newFlagSet("generate-key", c.stderr)
	out := fs.String("out", defaultKeyFile, "file to write the base58 private key to")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := os.Stat(*out); err == nil {
		return c.fail("%s already exists, refusing to overwrite", *out)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail("%v", err)
	}
	if err := os.WriteFile(*out, []byte(key.String()), 0o600); err != nil {
		return c.fail("write key: %v", err)
	}
	fmt.Fprintf(c.stdout, "Generated key %s (saved to %s)\n", key.PubKey(), *out)
	return 0
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--key is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found. run custody-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	return crypto.PrivateKeyFromBase58(string(data))
}

// addressFlag parses a required address flag value.
func addressFlag(name, value string) (solana.PublicKey, error) {
	if strings.TrimSpace(value) == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

// submit signs tx with key and sends it, printing the receipt.
func (c *cli) submit(key *crypto.PrivateKey, txType types.TxType, accounts []solana.PublicKey, payload interface{}) int {
	tx := &types.Transaction{Type: txType, Nonce: c.nonce(), Accounts: accounts}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return c.fail("encode payload: %v", err)
		}
		tx.Data = data
	}
	if err := tx.Sign(key); err != nil {
		return c.fail("sign: %v", err)
	}
	result, err := c.call("custody_sendTransaction", true, tx)
	if err != nil {
		return c.fail("%v", err)
	}
	c.printJSON(result)
	return 0
}

func (c *cli) runBalance(args []string) int {
	if len(args) != 1 {
		return c.fail("balance requires an address")
	}
	addr, err := crypto.ParseAddress(args[0])
	if err != nil {
		return c.fail("%v", err)
	}
	result, err := c.call("custody_getAccount", false, addr.String())
	if err != nil {
		return c.fail("%v", err)
	}
	c.printJSON(result)
	return 0
}

func (c *cli) runTransfer(args []string) int {
	fs := newFlagSet("transfer", c.stderr)
	keyFile := fs.String("key", "", "sender key file")
	to := fs.String("to", "", "recipient address")
	amount := fs.Uint64("amount", 0, "lamports to send")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	recipient, err := addressFlag("to", *to)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeTransfer,
		[]solana.PublicKey{key.PubKey(), recipient},
		types.AmountPayload{Amount: *amount})
}

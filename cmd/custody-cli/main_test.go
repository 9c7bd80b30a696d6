package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"custody/core"
	"custody/core/genesis"
	"custody/crypto"
	"custody/native/bank"
	"custody/rpc"
	"custody/storage"
)

type cliEnv struct {
	t      *testing.T
	url    string
	dir    string
	proc   *core.Processor
	mint   solana.PublicKey
	owner  *crypto.PrivateKey
	admin  *crypto.PrivateKey
	user   *crypto.PrivateKey
	nonce  uint64
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	env := &cliEnv{t: t, dir: t.TempDir(), mint: solana.NewWallet().PublicKey()}
	for _, key := range []**crypto.PrivateKey{&env.owner, &env.admin, &env.user} {
		k, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		*key = k
	}
	env.proc = core.NewProcessor(storage.NewMemDB(), core.Options{})
	spec, err := genesis.Parse([]byte(fmt.Sprintf(`accounts:
  - address: %s
    lamports: 10000000000
  - address: %s
    lamports: 10000000000
  - address: %s
    lamports: 1000000000
tokenAccounts:
  - vaultPath: treasury
    mint: %s
    amount: 1000000
  - owner: %s
    mint: %s
`, env.owner.PubKey(), env.admin.PubKey(), env.user.PubKey(), env.mint, env.user.PubKey(), env.mint)))
	require.NoError(t, err)
	_, err = env.proc.ApplyGenesis(spec)
	require.NoError(t, err)

	srv := httptest.NewServer(rpc.NewServer(env.proc, rpc.Options{}, nil).Handler())
	t.Cleanup(srv.Close)
	env.url = srv.URL
	return env
}

func (e *cliEnv) keyFile(name string, key *crypto.PrivateKey) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name+".key")
	require.NoError(e.t, os.WriteFile(path, []byte(key.String()), 0o600))
	return path
}

func (e *cliEnv) run(args ...string) int {
	e.stdout.Reset()
	e.stderr.Reset()
	c := &cli{
		endpoint: e.url,
		stdout:   &e.stdout,
		stderr:   &e.stderr,
		http:     http.DefaultClient,
		nonce: func() uint64 {
			e.nonce++
			return e.nonce
		},
	}
	return c.run(args)
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	require.Equal(e.t, 0, e.run(args...), "stderr: %s", e.stderr.String())
	return e.stdout.String()
}

func TestVaultScheduleRedeemFlow(t *testing.T) {
	env := newCLIEnv(t)
	ownerKey := env.keyFile("owner", env.owner)
	adminKey := env.keyFile("admin", env.admin)
	userKey := env.keyFile("user", env.user)

	env.mustRun("vault", "create", "--key", ownerKey, "--path", "treasury", "--admin", env.admin.PubKey().String())
	out := env.mustRun("vault", "get", "--path", "treasury")
	require.Contains(t, out, env.admin.PubKey().String())

	env.mustRun("schedule", "create", "--key", adminKey, "--path", "treasury",
		"--event", "7", "--users", "2", "--mint", env.mint.String())
	env.mustRun("schedule", "assign", "--key", adminKey, "--path", "treasury", "--event", "7",
		"--slot", "0", "--user", env.user.PubKey().String(), "--amount", "250")

	out = env.mustRun("schedule", "redeem", "--key", userKey, "--event", "7")
	require.Contains(t, out, "schedule.redeemed")

	out = env.mustRun("token", "balance", "--owner", env.user.PubKey().String(), "--mint", env.mint.String())
	require.Contains(t, out, `"amount": "250"`)

	require.Equal(t, 1, env.run("schedule", "redeem", "--key", userKey, "--event", "7"))
	require.Contains(t, env.stderr.String(), "AlreadyRedeemed")

	out = env.mustRun("schedule", "get", "--event", "7")
	require.Contains(t, out, `"redeemed": 1`)
}

func TestVaultWithdrawals(t *testing.T) {
	env := newCLIEnv(t)
	ownerKey := env.keyFile("owner", env.owner)
	adminKey := env.keyFile("admin", env.admin)

	env.mustRun("vault", "create", "--key", ownerKey, "--path", "treasury", "--admin", env.admin.PubKey().String())
	env.mustRun("vault", "withdraw-token", "--key", adminKey, "--path", "treasury",
		"--mint", env.mint.String(), "--to-owner", env.user.PubKey().String(), "--amount", "40")

	userToken, err := bank.TokenAccountAddress(env.user.PubKey(), env.mint)
	require.NoError(t, err)
	ta, ok, err := env.proc.TokenAccount(userToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(40), ta.Amount)

	// The owner is not the admin, so withdrawals signed by it are refused.
	require.Equal(t, 1, env.run("vault", "withdraw-token", "--key", ownerKey, "--path", "treasury",
		"--mint", env.mint.String(), "--to-owner", env.user.PubKey().String(), "--amount", "1"))
	require.Contains(t, env.stderr.String(), "Unauthorized")
}

func TestOwnershipHandover(t *testing.T) {
	env := newCLIEnv(t)
	ownerKey := env.keyFile("owner", env.owner)
	userKey := env.keyFile("user", env.user)

	env.mustRun("vault", "create", "--key", ownerKey, "--path", "treasury")
	env.mustRun("vault", "transfer-ownership", "--key", ownerKey, "--path", "treasury",
		"--new-owner", env.user.PubKey().String())
	env.mustRun("vault", "accept", "--key", userKey, "--path", "treasury")

	derived, err := env.proc.DeriveVault([]byte("treasury"))
	require.NoError(t, err)
	v, ok, err := env.proc.Vault(derived.Vault.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, env.user.PubKey(), v.Owner)
	require.False(t, v.HasPendingOwner())
}

func TestTokenCommands(t *testing.T) {
	env := newCLIEnv(t)
	ownerKey := env.keyFile("owner", env.owner)
	adminKey := env.keyFile("admin", env.admin)

	env.mustRun("token", "create-account", "--key", ownerKey, "--mint", env.mint.String())
	env.mustRun("vault", "create", "--key", ownerKey, "--path", "treasury", "--admin", env.admin.PubKey().String())
	env.mustRun("vault", "withdraw-token", "--key", adminKey, "--path", "treasury",
		"--mint", env.mint.String(), "--to-owner", env.owner.PubKey().String(), "--amount", "10")
	env.mustRun("token", "transfer", "--key", ownerKey, "--mint", env.mint.String(),
		"--to-owner", env.user.PubKey().String(), "--amount", "4")

	out := env.mustRun("token", "balance", "--owner", env.owner.PubKey().String(), "--mint", env.mint.String())
	require.Contains(t, out, `"amount": "6"`)
	out = env.mustRun("token", "balance", "--owner", env.user.PubKey().String(), "--mint", env.mint.String())
	require.Contains(t, out, `"amount": "4"`)
}

func TestGenerateKeyAndTransfer(t *testing.T) {
	env := newCLIEnv(t)
	out := filepath.Join(env.dir, "fresh.key")
	env.mustRun("generate-key", "--out", out)
	require.Contains(t, env.stdout.String(), "Generated key")
	require.Equal(t, 1, env.run("generate-key", "--out", out))

	fresh, err := loadPrivateKey(out)
	require.NoError(t, err)

	ownerKey := env.keyFile("owner", env.owner)
	env.mustRun("transfer", "--key", ownerKey, "--to", fresh.PubKey().String(), "--amount", "5000")
	acc, err := env.proc.Account(fresh.PubKey())
	require.NoError(t, err)
	require.Equal(t, uint64(5000), acc.Lamports)

	require.Contains(t, env.mustRun("balance", fresh.PubKey().String()), `"lamports": "5000"`)
}

func TestUsageErrors(t *testing.T) {
	env := newCLIEnv(t)
	require.Equal(t, 1, env.run())
	require.Equal(t, 1, env.run("bogus"))
	require.Contains(t, env.stderr.String(), "Unknown command")
	require.Equal(t, 1, env.run("vault", "create", "--path", "x"))
	require.Contains(t, env.stderr.String(), "--key is required")
	require.Equal(t, 1, env.run("--rpc"))
	require.Equal(t, 0, env.run("help"))
}

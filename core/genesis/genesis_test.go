package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"custody/core/state"
	"custody/crypto"
	"custody/native/bank"
	"custody/storage"
)

func sampleGenesis(alice, mint solana.PublicKey) string {
	return `accounts:
  - address: ` + alice.String() + `
    lamports: 5000000000
tokenAccounts:
  - owner: ` + alice.String() + `
    mint: ` + mint.String() + `
    amount: 10
  - vaultPath: treasury
    mint: ` + mint.String() + `
    amount: 1000000
`
}

func TestLoadAndApply(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleGenesis(alice, mint)), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	require.Len(t, spec.Accounts, 1)
	require.Len(t, spec.TokenAccounts, 2)

	db := storage.NewMemDB()
	m := state.NewManager(db)
	ledger := bank.NewLedger(m, crypto.DefaultProgramID, solana.TokenProgramID)
	applied, err := Apply(m, ledger, spec, crypto.DefaultProgramID)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, m.Commit())

	m = state.NewManager(db)
	acc, err := m.GetAccount(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000_000), acc.Lamports)

	vault, _, err := crypto.VaultAddress(crypto.DefaultProgramID, []byte("treasury"))
	require.NoError(t, err)
	signer, _, err := crypto.VaultSignerAddress(crypto.DefaultProgramID, vault)
	require.NoError(t, err)
	treasury, err := bank.TokenAccountAddress(signer, mint)
	require.NoError(t, err)
	ta, ok, err := m.TokenAccountGet(treasury)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, signer, ta.Owner)
	require.Equal(t, uint64(1_000_000), ta.Amount)

	applied, err = Apply(m, bank.NewLedger(m, crypto.DefaultProgramID, solana.TokenProgramID), spec, crypto.DefaultProgramID)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestParseRejectsInvalid(t *testing.T) {
	mint := solana.NewWallet().PublicKey().String()
	cases := map[string]string{
		"bad address":   "accounts:\n  - address: nope\n    lamports: 1\n",
		"unknown field": "accounts: []\nvalidators: []\n",
		"both owners":   "tokenAccounts:\n  - owner: " + mint + "\n    vaultPath: v1\n    mint: " + mint + "\n",
		"no owner":      "tokenAccounts:\n  - mint: " + mint + "\n",
		"bad mint":      "tokenAccounts:\n  - vaultPath: v1\n    mint: zz0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

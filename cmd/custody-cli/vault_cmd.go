package main

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"custody/core"
	"custody/core/types"
	"custody/crypto"
	"custody/native/bank"
	"custody/rpc"
)

func (c *cli) runVaultCommand(args []string) int {
	if len(args) == 0 {
		return c.fail("vault requires a subcommand")
	}
	switch args[0] {
	case "create":
		return c.runVaultCreate(args[1:])
	case "get":
		return c.runVaultGet(args[1:])
	case "set-admin":
		return c.runVaultSetAdmin(args[1:])
	case "transfer-ownership":
		return c.runVaultTransferOwnership(args[1:])
	case "accept":
		return c.runVaultAccept(args[1:])
	case "withdraw-sol":
		return c.runVaultWithdrawSol(args[1:])
	case "withdraw-token":
		return c.runVaultWithdrawToken(args[1:])
	default:
		return c.fail("unknown vault subcommand: %s", args[0])
	}
}

func (c *cli) deriveVault(path string) (*core.DerivedVault, error) {
	raw, err := c.call("custody_deriveVault", false, path)
	if err != nil {
		return nil, err
	}
	var out core.DerivedVault
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode derived vault: %w", err)
	}
	return &out, nil
}

// resolveVault accepts either an explicit --vault address or a --path.
func (c *cli) resolveVault(vaultFlag, pathFlag string) (solana.PublicKey, error) {
	if vaultFlag != "" {
		return addressFlag("vault", vaultFlag)
	}
	if pathFlag == "" {
		return solana.PublicKey{}, fmt.Errorf("--vault or --path is required")
	}
	derived, err := c.deriveVault(pathFlag)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return derived.Vault.Address, nil
}

func (c *cli) fetchVault(addr solana.PublicKey) (*rpc.VaultResult, error) {
	raw, err := c.call("custody_getVault", false, addr.String())
	if err != nil {
		return nil, err
	}
	var out rpc.VaultResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	return &out, nil
}

func (c *cli) vaultSigner(addr solana.PublicKey) (solana.PublicKey, error) {
	v, err := c.fetchVault(addr)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return crypto.ParseAddress(v.Signer)
}

func (c *cli) runVaultCreate(args []string) int {
	fs := newFlagSet("vault create", c.stderr)
	keyFile := fs.String("key", "", "owner key file (pays for the allocation)")
	path := fs.String("path", "", "vault path seed (at most 32 bytes)")
	adminFlag := fs.String("admin", "", "optional admin address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	if *path == "" {
		return c.fail("--path is required")
	}
	var admin solana.PublicKey
	if *adminFlag != "" {
		if admin, err = addressFlag("admin", *adminFlag); err != nil {
			return c.fail("%v", err)
		}
	}
	derived, err := c.deriveVault(*path)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeCreateVault,
		[]solana.PublicKey{key.PubKey(), derived.Vault.Address},
		types.CreateVaultPayload{Path: []byte(*path), Admin: admin})
}

func (c *cli) runVaultGet(args []string) int {
	fs := newFlagSet("vault get", c.stderr)
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	raw, err := c.call("custody_getVault", false, addr.String())
	if err != nil {
		return c.fail("%v", err)
	}
	c.printJSON(raw)
	return 0
}

func (c *cli) runVaultSetAdmin(args []string) int {
	fs := newFlagSet("vault set-admin", c.stderr)
	keyFile := fs.String("key", "", "owner key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	adminFlag := fs.String("admin", "", "new admin address (empty clears it)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	var admin solana.PublicKey
	if *adminFlag != "" {
		if admin, err = addressFlag("admin", *adminFlag); err != nil {
			return c.fail("%v", err)
		}
	}
	return c.submit(key, types.TxTypeSetVault,
		[]solana.PublicKey{key.PubKey(), addr},
		types.SetVaultPayload{Admin: admin})
}

func (c *cli) runVaultTransferOwnership(args []string) int {
	fs := newFlagSet("vault transfer-ownership", c.stderr)
	keyFile := fs.String("key", "", "owner key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	newOwner := fs.String("new-owner", "", "nominated owner address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	nominee, err := addressFlag("new-owner", *newOwner)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeTransferOwnership,
		[]solana.PublicKey{key.PubKey(), addr},
		types.TransferOwnershipPayload{NewOwner: nominee})
}

func (c *cli) runVaultAccept(args []string) int {
	fs := newFlagSet("vault accept", c.stderr)
	keyFile := fs.String("key", "", "nominated owner key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeAcceptOwnership, []solana.PublicKey{key.PubKey(), addr}, nil)
}

func (c *cli) runVaultWithdrawSol(args []string) int {
	fs := newFlagSet("vault withdraw-sol", c.stderr)
	keyFile := fs.String("key", "", "admin key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	to := fs.String("to", "", "recipient address")
	amount := fs.Uint64("amount", 0, "lamports to withdraw")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	recipient, err := addressFlag("to", *to)
	if err != nil {
		return c.fail("%v", err)
	}
	signer, err := c.vaultSigner(addr)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeWithdrawSol,
		[]solana.PublicKey{key.PubKey(), addr, signer, recipient},
		types.AmountPayload{Amount: *amount})
}

func (c *cli) runVaultWithdrawToken(args []string) int {
	fs := newFlagSet("vault withdraw-token", c.stderr)
	keyFile := fs.String("key", "", "admin key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	mintFlag := fs.String("mint", "", "token mint")
	toOwner := fs.String("to-owner", "", "owner of the destination token account")
	amount := fs.Uint64("amount", 0, "token amount")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	mint, err := addressFlag("mint", *mintFlag)
	if err != nil {
		return c.fail("%v", err)
	}
	recipientOwner, err := addressFlag("to-owner", *toOwner)
	if err != nil {
		return c.fail("%v", err)
	}
	signer, err := c.vaultSigner(addr)
	if err != nil {
		return c.fail("%v", err)
	}
	source, err := bank.TokenAccountAddress(signer, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	recipient, err := bank.TokenAccountAddress(recipientOwner, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	program, err := c.tokenProgram()
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeWithdrawToken,
		[]solana.PublicKey{key.PubKey(), addr, signer, source, recipient, program},
		types.AmountPayload{Amount: *amount})
}

func (c *cli) tokenProgram() (solana.PublicKey, error) {
	raw, err := c.call("custody_getProgram", false)
	if err != nil {
		return solana.PublicKey{}, err
	}
	var program rpc.ProgramResult
	if err := json.Unmarshal(raw, &program); err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode program info: %w", err)
	}
	return crypto.ParseAddress(program.TokenProgram)
}

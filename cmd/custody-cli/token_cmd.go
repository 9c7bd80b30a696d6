package main

import (
	"github.com/gagliardetto/solana-go"

	"custody/core/types"
	"custody/native/bank"
)

func (c *cli) runTokenCommand(args []string) int {
	if len(args) == 0 {
		return c.fail("token requires a subcommand (create-account, transfer, balance)")
	}
	switch args[0] {
	case "create-account":
		return c.runTokenCreateAccount(args[1:])
	case "transfer":
		return c.runTokenTransfer(args[1:])
	case "balance":
		return c.runTokenBalance(args[1:])
	default:
		return c.fail("unknown token subcommand: %s", args[0])
	}
}

func (c *cli) runTokenCreateAccount(args []string) int {
	fs := newFlagSet("token create-account", c.stderr)
	keyFile := fs.String("key", "", "payer key file")
	ownerFlag := fs.String("owner", "", "token account owner (defaults to the payer)")
	mintFlag := fs.String("mint", "", "token mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	owner := key.PubKey()
	if *ownerFlag != "" {
		if owner, err = addressFlag("owner", *ownerFlag); err != nil {
			return c.fail("%v", err)
		}
	}
	mint, err := addressFlag("mint", *mintFlag)
	if err != nil {
		return c.fail("%v", err)
	}
	account, err := bank.TokenAccountAddress(owner, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeCreateTokenAccount,
		[]solana.PublicKey{key.PubKey(), owner, mint, account}, nil)
}

func (c *cli) runTokenTransfer(args []string) int {
	fs := newFlagSet("token transfer", c.stderr)
	keyFile := fs.String("key", "", "source owner key file")
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
	mint, err := addressFlag("mint", *mintFlag)
	if err != nil {
		return c.fail("%v", err)
	}
	recipient, err := addressFlag("to-owner", *toOwner)
	if err != nil {
		return c.fail("%v", err)
	}
	source, err := bank.TokenAccountAddress(key.PubKey(), mint)
	if err != nil {
		return c.fail("%v", err)
	}
	destination, err := bank.TokenAccountAddress(recipient, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, types.TxTypeTokenTransfer,
		[]solana.PublicKey{source, destination, key.PubKey()},
		types.AmountPayload{Amount: *amount})
}

func (c *cli) runTokenBalance(args []string) int {
	fs := newFlagSet("token balance", c.stderr)
	ownerFlag := fs.String("owner", "", "token account owner")
	mintFlag := fs.String("mint", "", "token mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	owner, err := addressFlag("owner", *ownerFlag)
	if err != nil {
		return c.fail("%v", err)
	}
	mint, err := addressFlag("mint", *mintFlag)
	if err != nil {
		return c.fail("%v", err)
	}
	account, err := bank.TokenAccountAddress(owner, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	result, err := c.call("custody_getTokenAccount", false, account.String())
	if err != nil {
		return c.fail("%v", err)
	}
	c.printJSON(result)
	return 0
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"custody/core"
	"custody/core/types"
	"custody/crypto"
	"custody/native/bank"
	"custody/rpc"
)

func (c *cli) runScheduleCommand(args []string) int {
	if len(args) == 0 {
		return c.fail("schedule requires a subcommand (create, assign, get, redeem)")
	}
	switch args[0] {
	case "create":
		return c.runScheduleCreate(args[1:])
	case "assign":
		return c.runScheduleAssign(args[1:])
	case "get":
		return c.runScheduleGet(args[1:])
	case "redeem":
		return c.runScheduleRedeem(args[1:])
	default:
		return c.fail("unknown schedule subcommand: %s", args[0])
	}
}

func (c *cli) deriveSchedule(eventID uint64) (solana.PublicKey, error) {
	raw, err := c.call("custody_deriveSchedule", false, strconv.FormatUint(eventID, 10))
	if err != nil {
		return solana.PublicKey{}, err
	}
	var out core.Derived
	if err := json.Unmarshal(raw, &out); err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode derived schedule: %w", err)
	}
	return out.Address, nil
}

// resolveSchedule accepts either --schedule or --event.
func (c *cli) resolveSchedule(scheduleFlag string, eventID uint64, eventSet bool) (solana.PublicKey, error) {
	if scheduleFlag != "" {
		return addressFlag("schedule", scheduleFlag)
	}
	if !eventSet {
		return solana.PublicKey{}, fmt.Errorf("--schedule or --event is required")
	}
	return c.deriveSchedule(eventID)
}

func (c *cli) fetchSchedule(addr solana.PublicKey) (*rpc.ScheduleResult, error) {
	raw, err := c.call("custody_getSchedule", false, addr.String())
	if err != nil {
		return nil, err
	}
	var out rpc.ScheduleResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &out, nil
}

func (c *cli) runScheduleCreate(args []string) int {
	fs := newFlagSet("schedule create", c.stderr)
	keyFile := fs.String("key", "", "vault admin key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	eventID := fs.Uint64("event", 0, "event identifier")
	users := fs.Uint("users", 0, "number of entitlement slots")
	objType := fs.String("type", "distribution", "distribution or distribution_multi")
	receiving := fs.String("receiving", "", "receiving token account")
	mintFlag := fs.String("mint", "", "derive the receiving account as the vault's token account for this mint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	if *users == 0 || *users > 0xffff {
		return c.fail("--users must be between 1 and 65535")
	}
	vaultAddr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	scheduleAddr, err := c.deriveSchedule(*eventID)
	if err != nil {
		return c.fail("%v", err)
	}
	var receivingAccount solana.PublicKey
	switch {
	case *receiving != "":
		if receivingAccount, err = addressFlag("receiving", *receiving); err != nil {
			return c.fail("%v", err)
		}
	case *mintFlag != "":
		mint, err := addressFlag("mint", *mintFlag)
		if err != nil {
			return c.fail("%v", err)
		}
		signer, err := c.vaultSigner(vaultAddr)
		if err != nil {
			return c.fail("%v", err)
		}
		if receivingAccount, err = bank.TokenAccountAddress(signer, mint); err != nil {
			return c.fail("%v", err)
		}
	}
	return c.submit(key, types.TxTypeCreateSchedule,
		[]solana.PublicKey{key.PubKey(), vaultAddr, scheduleAddr},
		types.CreateSchedulePayload{
			UserCount:             uint16(*users),
			EventID:               *eventID,
			ObjType:               *objType,
			ReceivingTokenAccount: receivingAccount,
		})
}

func (c *cli) runScheduleAssign(args []string) int {
	fs := newFlagSet("schedule assign", c.stderr)
	keyFile := fs.String("key", "", "vault admin key file")
	vaultFlag := fs.String("vault", "", "vault address")
	path := fs.String("path", "", "vault path seed")
	scheduleFlag := fs.String("schedule", "", "schedule address")
	eventID := fs.Uint64("event", 0, "event identifier")
	slot := fs.Uint("slot", 0, "entitlement slot")
	userFlag := fs.String("user", "", "entitled user")
	mintFlag := fs.String("mint", "", "entitlement mint")
	amount := fs.Uint64("amount", 0, "entitlement amount")
	receiving := fs.String("receiving", "", "replace the receiving token account")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	vaultAddr, err := c.resolveVault(*vaultFlag, *path)
	if err != nil {
		return c.fail("%v", err)
	}
	scheduleAddr, err := c.resolveSchedule(*scheduleFlag, *eventID, flagSet(fs.Visit, "event"))
	if err != nil {
		return c.fail("%v", err)
	}
	var payload types.SetSchedulePayload
	if *receiving != "" {
		addr, err := addressFlag("receiving", *receiving)
		if err != nil {
			return c.fail("%v", err)
		}
		payload.ReceivingTokenAccount = &addr
	}
	if *userFlag != "" {
		user, err := addressFlag("user", *userFlag)
		if err != nil {
			return c.fail("%v", err)
		}
		var mint solana.PublicKey
		if *mintFlag != "" {
			if mint, err = addressFlag("mint", *mintFlag); err != nil {
				return c.fail("%v", err)
			}
		}
		if *slot > 0xffff {
			return c.fail("--slot out of range")
		}
		payload.Assignments = append(payload.Assignments, types.AssignmentPayload{
			Slot:   uint16(*slot),
			User:   user,
			Mint:   mint,
			Amount: *amount,
		})
	}
	if payload.ReceivingTokenAccount == nil && len(payload.Assignments) == 0 {
		return c.fail("nothing to update: pass --user or --receiving")
	}
	return c.submit(key, types.TxTypeSetSchedule,
		[]solana.PublicKey{key.PubKey(), vaultAddr, scheduleAddr}, payload)
}

func (c *cli) runScheduleGet(args []string) int {
	fs := newFlagSet("schedule get", c.stderr)
	scheduleFlag := fs.String("schedule", "", "schedule address")
	eventID := fs.Uint64("event", 0, "event identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr, err := c.resolveSchedule(*scheduleFlag, *eventID, flagSet(fs.Visit, "event"))
	if err != nil {
		return c.fail("%v", err)
	}
	raw, err := c.call("custody_getSchedule", false, addr.String())
	if err != nil {
		return c.fail("%v", err)
	}
	c.printJSON(raw)
	return 0
}

func (c *cli) runScheduleRedeem(args []string) int {
	fs := newFlagSet("schedule redeem", c.stderr)
	keyFile := fs.String("key", "", "entitled user key file")
	scheduleFlag := fs.String("schedule", "", "schedule address")
	eventID := fs.Uint64("event", 0, "event identifier")
	sourceFlag := fs.String("source", "", "vault token account to pay from (multi-asset schedules)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadPrivateKey(*keyFile)
	if err != nil {
		return c.fail("%v", err)
	}
	user := key.PubKey()
	scheduleAddr, err := c.resolveSchedule(*scheduleFlag, *eventID, flagSet(fs.Visit, "event"))
	if err != nil {
		return c.fail("%v", err)
	}
	sched, err := c.fetchSchedule(scheduleAddr)
	if err != nil {
		return c.fail("%v", err)
	}
	vaultAddr, err := crypto.ParseAddress(sched.Vault)
	if err != nil {
		return c.fail("%v", err)
	}
	signer, err := c.vaultSigner(vaultAddr)
	if err != nil {
		return c.fail("%v", err)
	}
	var ent *rpc.EntitlementResult
	for i := range sched.Entitlements {
		if sched.Entitlements[i].Assigned && sched.Entitlements[i].User == user.String() {
			ent = &sched.Entitlements[i]
			break
		}
	}
	if ent == nil {
		return c.fail("%s has no entitlement in schedule %s", user, scheduleAddr)
	}

	txType := types.TxTypeRedeemToken
	var source, mint solana.PublicKey
	if sched.ObjType == "distribution_multi" {
		txType = types.TxTypeRedeemTokenMulti
		if mint, err = crypto.ParseAddress(ent.Mint); err != nil {
			return c.fail("entitlement mint: %v", err)
		}
		if *sourceFlag != "" {
			source, err = addressFlag("source", *sourceFlag)
		} else {
			source, err = bank.TokenAccountAddress(signer, mint)
		}
		if err != nil {
			return c.fail("%v", err)
		}
	} else {
		if source, err = crypto.ParseAddress(sched.ReceivingTokenAccount); err != nil {
			return c.fail("receiving account: %v", err)
		}
		if mint, err = c.tokenAccountMint(source); err != nil {
			return c.fail("%v", err)
		}
	}
	destination, err := bank.TokenAccountAddress(user, mint)
	if err != nil {
		return c.fail("%v", err)
	}
	program, err := c.tokenProgram()
	if err != nil {
		return c.fail("%v", err)
	}
	return c.submit(key, txType,
		[]solana.PublicKey{vaultAddr, scheduleAddr, signer, source, user, destination, program}, nil)
}

func (c *cli) tokenAccountMint(addr solana.PublicKey) (solana.PublicKey, error) {
	raw, err := c.call("custody_getTokenAccount", false, addr.String())
	if err != nil {
		return solana.PublicKey{}, err
	}
	var ta rpc.TokenAccountResult
	if err := json.Unmarshal(raw, &ta); err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode token account: %w", err)
	}
	return crypto.ParseAddress(ta.Mint)
}

// flagSet reports whether name was given explicitly on the command line.
func flagSet(visit func(func(*flag.Flag)), name string) bool {
	found := false
	visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

package vault

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"custody/core/types"
)

const (
	EventTypeVaultCreated             = "vault.created"
	EventTypeVaultUpdated             = "vault.updated"
	EventTypeOwnershipTransferStarted = "vault.ownership_transfer_started"
	EventTypeOwnershipAccepted        = "vault.ownership_accepted"
	EventTypeScheduleCreated          = "schedule.created"
	EventTypeScheduleUpdated          = "schedule.updated"
	EventTypeScheduleRedeemed         = "schedule.redeemed"
	EventTypeVaultWithdrawn           = "vault.withdrawn"
)

// NewVaultCreatedEvent constructs an event for a freshly allocated vault.
func NewVaultCreatedEvent(v *Vault, signer solana.PublicKey) *types.Event {
	if v == nil {
		return nil
	}
	evt := newVaultEvent(EventTypeVaultCreated, v)
	evt.Attributes["signer"] = signer.String()
	evt.Attributes["signerNonce"] = strconv.FormatUint(uint64(v.SignerNonce), 10)
	return evt
}

// NewVaultUpdatedEvent reports an admin change.
func NewVaultUpdatedEvent(v *Vault) *types.Event {
	if v == nil {
		return nil
	}
	return newVaultEvent(EventTypeVaultUpdated, v)
}

// NewOwnershipTransferStartedEvent reports a nomination of a pending owner.
func NewOwnershipTransferStartedEvent(v *Vault) *types.Event {
	if v == nil {
		return nil
	}
	return newVaultEvent(EventTypeOwnershipTransferStarted, v)
}

// NewOwnershipAcceptedEvent reports the completion of a two-phase transfer.
func NewOwnershipAcceptedEvent(v *Vault, previous solana.PublicKey) *types.Event {
	if v == nil {
		return nil
	}
	evt := newVaultEvent(EventTypeOwnershipAccepted, v)
	evt.Attributes["previousOwner"] = previous.String()
	return evt
}

func NewScheduleCreatedEvent(s *Schedule) *types.Event {
	if s == nil {
		return nil
	}
	return newScheduleEvent(EventTypeScheduleCreated, s)
}

// NewScheduleUpdatedEvent carries the number of slots assigned by the update.
func NewScheduleUpdatedEvent(s *Schedule, assigned int) *types.Event {
	if s == nil {
		return nil
	}
	evt := newScheduleEvent(EventTypeScheduleUpdated, s)
	evt.Attributes["assigned"] = strconv.Itoa(assigned)
	return evt
}

// NewScheduleRedeemedEvent records a consumed entitlement.
func NewScheduleRedeemedEvent(s *Schedule, ent Entitlement, source, destination solana.PublicKey) *types.Event {
	if s == nil {
		return nil
	}
	evt := newScheduleEvent(EventTypeScheduleRedeemed, s)
	evt.Attributes["user"] = ent.User.String()
	evt.Attributes["amount"] = strconv.FormatUint(ent.Amount, 10)
	evt.Attributes["source"] = source.String()
	evt.Attributes["destination"] = destination.String()
	if !ent.Mint.IsZero() {
		evt.Attributes["mint"] = ent.Mint.String()
	}
	return evt
}

// NewWithdrawnEvent records an administrative withdrawal. Asset is "native"
// for lamports or the mint address for token withdrawals.
func NewWithdrawnEvent(v *Vault, asset string, source, recipient solana.PublicKey, amount uint64) *types.Event {
	if v == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeVaultWithdrawn,
		Attributes: map[string]string{
			"vault":     v.Address.String(),
			"asset":     asset,
			"source":    source.String(),
			"recipient": recipient.String(),
			"amount":    strconv.FormatUint(amount, 10),
		},
	}
}

func newVaultEvent(eventType string, v *Vault) *types.Event {
	attrs := map[string]string{
		"vault": v.Address.String(),
		"owner": v.Owner.String(),
	}
	if !v.Admin.IsZero() {
		attrs["admin"] = v.Admin.String()
	}
	if !v.PendingOwner.IsZero() {
		attrs["pendingOwner"] = v.PendingOwner.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newScheduleEvent(eventType string, s *Schedule) *types.Event {
	attrs := map[string]string{
		"schedule":  s.Address.String(),
		"vault":     s.VaultID.String(),
		"eventId":   strconv.FormatUint(s.EventID, 10),
		"objType":   s.ObjType.String(),
		"userCount": strconv.FormatUint(uint64(s.UserCount), 10),
	}
	if !s.ReceivingTokenAccount.IsZero() {
		attrs["receivingTokenAccount"] = s.ReceivingTokenAccount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

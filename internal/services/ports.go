package services

import (
	"context"
	"time"

	"risparmio/internal/core"
)

// AssetTransfer moves the underlying asset between user custody and the
// ledger's custody. It is an opaque external collaborator: any failure,
// whatever the cause, surfaces to callers as core.ErrTransferFailed.
type AssetTransfer interface {
	TransferIn(ctx context.Context, user string, amount int64) error
	TransferOut(ctx context.Context, user string, amount int64) error
}

// AccountStore persists account state. GetAccount returns a zero-valued
// account when the user has never deposited; accounts are never deleted.
type AccountStore interface {
	GetAccount(ctx context.Context, user string) (core.Account, error)
	SaveAccount(ctx context.Context, account core.Account) error
}

// EventPublisher emits ledger events for external monitoring. Publishing
// is best-effort; failures are logged and never fail the operation.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// Event kinds emitted by the ledger.
const (
	EventDeposit         = "deposit"
	EventWithdrawal      = "withdrawal"
	EventInterestAccrued = "interest_accrued"
)

// Event describes a single state change on an account.
type Event struct {
	Kind       string    `json:"kind"`
	User       string    `json:"user"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Clock supplies the current time; injected so tests control time.
type Clock func() time.Time

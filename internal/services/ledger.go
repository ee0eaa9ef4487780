// Package services orchestrates the savings ledger: it owns the
// per-account state machine and coordinates the store, the external
// asset-transfer collaborator, and event publishing.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"risparmio/internal/core"
	applog "risparmio/internal/log"
)

// SavingsLedger is the sole mutator of account state. Every deposit and
// withdrawal against a given account is serialized behind a per-account
// mutex held for the whole operation, external transfer included, so no
// second call can observe a half-applied update. Distinct accounts run
// fully in parallel.
type SavingsLedger struct {
	store    AccountStore
	transfer AssetTransfer
	events   EventPublisher // optional
	now      Clock
	logger   *applog.Logger

	paramsMu sync.RWMutex
	params   core.Params

	mapMu sync.Mutex
	muMap map[string]*sync.Mutex
}

// NewSavingsLedger wires the ledger. events may be nil; publishing is
// then skipped. clock may be nil and defaults to time.Now.
func NewSavingsLedger(store AccountStore, transfer AssetTransfer, events EventPublisher, params core.Params, clock Clock, logger *applog.Logger) *SavingsLedger {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentLedger})
	}
	return &SavingsLedger{
		store:    store,
		transfer: transfer,
		events:   events,
		now:      clock,
		logger:   logger,
		params:   params,
		muMap:    make(map[string]*sync.Mutex),
	}
}

func (l *SavingsLedger) accountLock(user string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	mu, ok := l.muMap[user]
	if !ok {
		mu = &sync.Mutex{}
		l.muMap[user] = mu
	}
	return mu
}

// Params returns the policy as of this instant.
func (l *SavingsLedger) Params() core.Params {
	l.paramsMu.RLock()
	defer l.paramsMu.RUnlock()
	return l.params
}

// UpdateParams replaces the savings policy. Administrative capability:
// the change applies only to accrual intervals settled from now on,
// never retroactively to already-settled history.
func (l *SavingsLedger) UpdateParams(params core.Params) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("update params: %w", err)
	}
	l.paramsMu.Lock()
	defer l.paramsMu.Unlock()
	l.params = params
	return nil
}

// Deposit settles pending interest, pulls amount into the ledger's
// custody, and credits the principal. The accrual clock resets to now
// for the entire balance, so every deposit restarts the lock period,
// including on an already unlocked account.
//
// A failed inbound transfer aborts the operation before any state is
// persisted.
func (l *SavingsLedger) Deposit(ctx context.Context, user string, amount int64) (core.BalanceView, error) {
	if amount <= 0 {
		return core.BalanceView{}, core.ErrInvalidAmount
	}

	mu := l.accountLock(user)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	params := l.Params()

	acct, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return core.BalanceView{}, fmt.Errorf("load account: %w", err)
	}
	acct.User = user

	settled := acct.Settle(now, params)

	if err := l.transfer.TransferIn(ctx, user, amount); err != nil {
		l.logger.WarnContext(ctx, "Inbound transfer declined",
			applog.FieldUser, user, applog.FieldAmount, amount, applog.FieldError, err.Error())
		return core.BalanceView{}, fmt.Errorf("%w: %v", core.ErrTransferFailed, err)
	}

	acct.Principal += amount
	acct.LastAccrualTime = now

	if err := l.store.SaveAccount(ctx, acct); err != nil {
		return core.BalanceView{}, fmt.Errorf("save account: %w", err)
	}

	l.publish(ctx, Event{Kind: EventDeposit, User: user, Amount: amount, OccurredAt: now})
	if settled > 0 {
		l.publish(ctx, Event{Kind: EventInterestAccrued, User: user, Amount: settled, OccurredAt: now})
	}

	l.logger.InfoContext(ctx, "Deposit applied",
		applog.FieldUser, user,
		applog.FieldAmount, amount,
		applog.FieldPrincipal, acct.Principal,
		applog.FieldInterest, acct.AccruedInterest)

	return acct.View(now, params), nil
}

// Withdraw pays principal back out to the user. Preconditions, checked
// in order before any mutation: positive amount, amount within
// principal (settled interest is never withdrawable as principal), and
// lock period elapsed since the last accrual-clock reset.
//
// The principal is debited and persisted before the outbound transfer
// is attempted. A failed transfer therefore leaves the books ahead of
// actual custody; callers see core.ErrTransferFailed and must reconcile
// out of band. This ordering is kept deliberately, matching the system
// this ledger replaces.
func (l *SavingsLedger) Withdraw(ctx context.Context, user string, amount int64) (core.BalanceView, error) {
	if amount <= 0 {
		return core.BalanceView{}, core.ErrInvalidAmount
	}

	mu := l.accountLock(user)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	params := l.Params()

	acct, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return core.BalanceView{}, fmt.Errorf("load account: %w", err)
	}
	acct.User = user

	if amount > acct.Principal {
		return core.BalanceView{}, core.ErrInsufficientBalance
	}
	if acct.Locked(now, params) {
		return core.BalanceView{}, &core.LockedError{UnlockTime: acct.UnlockTime(params)}
	}

	settled := acct.Settle(now, params)
	acct.Principal -= amount

	if err := l.store.SaveAccount(ctx, acct); err != nil {
		return core.BalanceView{}, fmt.Errorf("save account: %w", err)
	}

	if settled > 0 {
		l.publish(ctx, Event{Kind: EventInterestAccrued, User: user, Amount: settled, OccurredAt: now})
	}

	if err := l.transfer.TransferOut(ctx, user, amount); err != nil {
		l.logger.ErrorContext(ctx, "Outbound transfer failed after principal debit",
			applog.FieldUser, user, applog.FieldAmount, amount, applog.FieldError, err.Error())
		return core.BalanceView{}, fmt.Errorf("%w: %v", core.ErrTransferFailed, err)
	}

	l.publish(ctx, Event{Kind: EventWithdrawal, User: user, Amount: amount, OccurredAt: now})

	l.logger.InfoContext(ctx, "Withdrawal applied",
		applog.FieldUser, user,
		applog.FieldAmount, amount,
		applog.FieldPrincipal, acct.Principal,
		applog.FieldInterest, acct.AccruedInterest)

	return acct.View(now, params), nil
}

// Balance answers a read-only balance query for any user identity.
// It mutates nothing and reports exactly what a deposit or withdrawal
// at the same instant would settle as pending interest.
func (l *SavingsLedger) Balance(ctx context.Context, user string) (core.BalanceView, error) {
	mu := l.accountLock(user)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	params := l.Params()

	acct, err := l.store.GetAccount(ctx, user)
	if err != nil {
		return core.BalanceView{}, fmt.Errorf("load account: %w", err)
	}
	acct.User = user

	return acct.View(now, params), nil
}

func (l *SavingsLedger) publish(ctx context.Context, event Event) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishEvent(ctx, event); err != nil {
		l.logger.WarnContext(ctx, "Event publish failed",
			applog.FieldEventKind, event.Kind,
			applog.FieldUser, event.User,
			applog.FieldError, err.Error())
	}
}

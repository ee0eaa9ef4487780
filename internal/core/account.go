package core

import (
	"errors"
	"time"
)

type (
	// Params holds the ledger-wide savings policy. It is injected at
	// construction and replaced wholesale by the administrative surface;
	// changing it only affects proration from that instant forward.
	Params struct {
		AnnualRateBps int64
		LockPeriod    time.Duration
	}

	// Account is the per-user savings state. Principal is the deposited
	// balance, AccruedInterest the interest already settled for past
	// intervals, and LastAccrualTime the start of the current un-accrued
	// interval. The zero value is a valid empty account.
	Account struct {
		User            string
		Principal       int64
		AccruedInterest int64
		LastAccrualTime time.Time
	}

	// BalanceView is the read-only answer to a balance query.
	// InterestPending includes both settled interest and the interest
	// prorated on demand for the interval since LastAccrualTime.
	BalanceView struct {
		User            string    `json:"user"`
		Principal       int64     `json:"principal"`
		InterestPending int64     `json:"interest_pending"`
		Total           int64     `json:"total"`
		UnlockTime      time.Time `json:"unlock_time"`
	}
)

func (p Params) Validate() error {
	if p.AnnualRateBps < 0 {
		return errors.New("annual rate must not be negative")
	}
	if p.LockPeriod < 0 {
		return errors.New("lock period must not be negative")
	}
	return nil
}

// Settle folds the interest earned since LastAccrualTime into
// AccruedInterest and advances the accrual clock to now. An account with
// zero principal earns nothing but its clock still advances. Returns the
// settled amount. The clock never moves backwards.
func (a *Account) Settle(now time.Time, params Params) int64 {
	if now.Before(a.LastAccrualTime) {
		return 0
	}
	var earned int64
	if a.Principal > 0 && !a.LastAccrualTime.IsZero() {
		earned = ProrateInterest(a.Principal, params.AnnualRateBps, now.Sub(a.LastAccrualTime))
		a.AccruedInterest += earned
	}
	a.LastAccrualTime = now
	return earned
}

// UnlockTime is the earliest instant a withdrawal is permitted.
func (a *Account) UnlockTime(params Params) time.Time {
	return a.LastAccrualTime.Add(params.LockPeriod)
}

// Locked reports whether the lock period is still running at now.
func (a *Account) Locked(now time.Time, params Params) bool {
	return now.Before(a.UnlockTime(params))
}

// View computes the balance as of now without mutating the account. It
// matches exactly what a deposit or withdrawal at the same instant would
// settle: AccruedInterest plus the on-demand proration of the open
// interval.
func (a Account) View(now time.Time, params Params) BalanceView {
	pending := a.AccruedInterest
	if a.Principal > 0 && !a.LastAccrualTime.IsZero() && now.After(a.LastAccrualTime) {
		pending += ProrateInterest(a.Principal, params.AnnualRateBps, now.Sub(a.LastAccrualTime))
	}
	return BalanceView{
		User:            a.User,
		Principal:       a.Principal,
		InterestPending: pending,
		Total:           a.Principal + pending,
		UnlockTime:      a.UnlockTime(params),
	}
}

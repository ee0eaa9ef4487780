package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLockPeriodActive    = errors.New("lock period active")
	ErrTransferFailed      = errors.New("transfer failed")
)

// LockedError reports a withdrawal attempted before the lock period has
// elapsed. It carries the instant at which the account unlocks so callers
// can retry. errors.Is(err, ErrLockPeriodActive) matches it.
type LockedError struct {
	UnlockTime time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("lock period active until %s", e.UnlockTime.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLockPeriodActive
}

// Package transfer provides an in-process implementation of the asset
// transfer collaborator. Real deployments point the ledger at an
// external custody system; this vault backs local runs and tests.
package transfer

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds in user custody")
	ErrVaultDepleted     = errors.New("vault holds less than requested")
)

// Vault tracks user-side balances and the ledger's custody. TransferIn
// moves value from a user into custody, TransferOut the other way; both
// fail rather than go negative.
type Vault struct {
	mu       sync.Mutex
	users    map[string]int64
	custody  int64
	unbacked bool
}

// NewVault creates a vault whose users start with zero funds. Seed user
// balances with Credit before depositing.
func NewVault() *Vault {
	return &Vault{users: make(map[string]int64)}
}

// NewUnbackedVault creates a vault that mints inbound funds on demand,
// for local runs where seeding every user is noise.
func NewUnbackedVault() *Vault {
	return &Vault{users: make(map[string]int64), unbacked: true}
}

// Credit adds funds to a user's side of the vault.
func (v *Vault) Credit(user string, amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.users[user] += amount
}

// UserBalance returns the funds a user holds outside the ledger.
func (v *Vault) UserBalance(user string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.users[user]
}

// Custody returns the total value held on behalf of the ledger.
func (v *Vault) Custody() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody
}

func (v *Vault) TransferIn(_ context.Context, user string, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.unbacked && v.users[user] < amount {
		return ErrInsufficientFunds
	}
	if !v.unbacked {
		v.users[user] -= amount
	}
	v.custody += amount
	return nil
}

func (v *Vault) TransferOut(_ context.Context, user string, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.custody < amount {
		return ErrVaultDepleted
	}
	v.custody -= amount
	v.users[user] += amount
	return nil
}

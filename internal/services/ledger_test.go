package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"risparmio/internal/core"
)

// fakeClock is a settable clock for deterministic accrual tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory AccountStore with optional save failure.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]core.Account
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]core.Account)}
}

func (s *fakeStore) GetAccount(_ context.Context, user string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[user], nil
}

func (s *fakeStore) SaveAccount(_ context.Context, account core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.accounts[account.User] = account
	return nil
}

// fakeTransfer records transfer calls and fails on demand.
type fakeTransfer struct {
	mu      sync.Mutex
	inErr   error
	outErr  error
	inCalls int
	out     int64
	in      int64
}

func (t *fakeTransfer) TransferIn(_ context.Context, _ string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inErr != nil {
		return t.inErr
	}
	t.inCalls++
	t.in += amount
	return nil
}

func (t *fakeTransfer) TransferOut(_ context.Context, _ string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outErr != nil {
		return t.outErr
	}
	t.out += amount
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

var (
	t0         = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	testParams = core.Params{AnnualRateBps: 500, LockPeriod: 30 * 24 * time.Hour}
)

type fixture struct {
	ledger   *SavingsLedger
	clock    *fakeClock
	store    *fakeStore
	transfer *fakeTransfer
	events   *recordingPublisher
}

func newFixture() *fixture {
	clock := newFakeClock(t0)
	store := newFakeStore()
	transfer := &fakeTransfer{}
	events := &recordingPublisher{}
	ledger := NewSavingsLedger(store, transfer, events, testParams, clock.Now, nil)
	return &fixture{ledger: ledger, clock: clock, store: store, transfer: transfer, events: events}
}

func TestSavingsLedger_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		f := newFixture()
		for _, amount := range []int64{0, -1, -1000} {
			if _, err := f.ledger.Deposit(ctx, "alice", amount); !errors.Is(err, core.ErrInvalidAmount) {
				t.Errorf("Deposit(%d) error = %v, want ErrInvalidAmount", amount, err)
			}
		}
		if f.transfer.inCalls != 0 {
			t.Errorf("transfer attempted on invalid amount")
		}
	})

	t.Run("first deposit creates the account", func(t *testing.T) {
		f := newFixture()
		view, err := f.ledger.Deposit(ctx, "alice", 1000)
		if err != nil {
			t.Fatalf("Deposit: %v", err)
		}
		if view.Principal != 1000 || view.InterestPending != 0 || view.Total != 1000 {
			t.Errorf("view = %+v, want principal 1000, no interest", view)
		}
		if want := t0.Add(testParams.LockPeriod); !view.UnlockTime.Equal(want) {
			t.Errorf("UnlockTime = %v, want %v", view.UnlockTime, want)
		}
		if f.transfer.in != 1000 {
			t.Errorf("transferred in %d, want 1000", f.transfer.in)
		}
	})

	t.Run("failed transfer mutates nothing", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(30 * 24 * time.Hour)

		f.transfer.inErr = errors.New("custody unavailable")
		_, err := f.ledger.Deposit(ctx, "alice", 500)
		if !errors.Is(err, core.ErrTransferFailed) {
			t.Fatalf("error = %v, want ErrTransferFailed", err)
		}

		acct, _ := f.store.GetAccount(ctx, "alice")
		if acct.Principal != 1000 {
			t.Errorf("principal = %d, want untouched 1000", acct.Principal)
		}
		if !acct.LastAccrualTime.Equal(t0) {
			t.Errorf("accrual clock moved to %v on failed deposit", acct.LastAccrualTime)
		}
		if acct.AccruedInterest != 0 {
			t.Errorf("interest persisted on failed deposit: %d", acct.AccruedInterest)
		}
	})

	t.Run("second deposit settles interest and resets clock", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(30 * 24 * time.Hour)

		view, err := f.ledger.Deposit(ctx, "alice", 500)
		if err != nil {
			t.Fatalf("Deposit: %v", err)
		}
		if view.Principal != 1500 {
			t.Errorf("principal = %d, want 1500", view.Principal)
		}
		// 30 days of 1000 at 500 bps, settled and locked in.
		if view.InterestPending != 4 {
			t.Errorf("pending = %d, want 4", view.InterestPending)
		}
		// The clock reset re-locks the whole balance.
		if want := t0.Add(30 * 24 * time.Hour).Add(testParams.LockPeriod); !view.UnlockTime.Equal(want) {
			t.Errorf("UnlockTime = %v, want %v", view.UnlockTime, want)
		}
	})

	t.Run("deposit resets the accrual clock for the whole balance", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(15 * 24 * time.Hour)
		f.ledger.Deposit(ctx, "alice", 1)

		view, _ := f.ledger.Balance(ctx, "alice")
		// Interest for the first 15 days is settled; nothing has accrued
		// since the second deposit.
		if want := core.ProrateInterest(1000, 500, 15*24*time.Hour); view.InterestPending != want {
			t.Errorf("pending = %d, want only the settled %d", view.InterestPending, want)
		}
	})

	t.Run("emits deposit and interest events", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(30 * 24 * time.Hour)
		f.ledger.Deposit(ctx, "alice", 500)

		want := []string{EventDeposit, EventDeposit, EventInterestAccrued}
		got := f.events.kinds()
		if len(got) != len(want) {
			t.Fatalf("events = %v, want kinds %v", got, want)
		}
		// Second deposit publishes deposit then interest_accrued.
		if got[0] != EventDeposit || got[1] != EventDeposit || got[2] != EventInterestAccrued {
			t.Errorf("event kinds = %v", got)
		}
	})
}

func TestSavingsLedger_Withdraw(t *testing.T) {
	ctx := context.Background()

	seed := func(f *fixture, amount int64) {
		if _, err := f.ledger.Deposit(ctx, "alice", amount); err != nil {
			panic(err)
		}
	}

	t.Run("rejects non-positive amounts before anything else", func(t *testing.T) {
		f := newFixture()
		if _, err := f.ledger.Withdraw(ctx, "alice", 0); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("insufficient balance checked before lock", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		// Still locked, but the balance check fires first.
		if _, err := f.ledger.Withdraw(ctx, "alice", 2000); !errors.Is(err, core.ErrInsufficientBalance) {
			t.Errorf("error = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("locked before unlock instant", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(29 * 24 * time.Hour)

		_, err := f.ledger.Withdraw(ctx, "alice", 500)
		if !errors.Is(err, core.ErrLockPeriodActive) {
			t.Fatalf("error = %v, want ErrLockPeriodActive", err)
		}
		var lockErr *core.LockedError
		if !errors.As(err, &lockErr) {
			t.Fatal("error does not carry unlock time")
		}
		if want := t0.Add(testParams.LockPeriod); !lockErr.UnlockTime.Equal(want) {
			t.Errorf("UnlockTime = %v, want %v", lockErr.UnlockTime, want)
		}
	})

	t.Run("succeeds exactly at the unlock instant", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(30 * 24 * time.Hour)

		view, err := f.ledger.Withdraw(ctx, "alice", 500)
		if err != nil {
			t.Fatalf("Withdraw: %v", err)
		}
		if view.Principal != 500 {
			t.Errorf("principal = %d, want 500", view.Principal)
		}
		if view.InterestPending != 4 {
			t.Errorf("pending = %d, want 4 settled on withdrawal", view.InterestPending)
		}
		if f.transfer.out != 500 {
			t.Errorf("transferred out %d, want 500", f.transfer.out)
		}
	})

	t.Run("interest never counts toward withdrawable principal", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(365 * 24 * time.Hour)

		if _, err := f.ledger.Withdraw(ctx, "alice", 1001); !errors.Is(err, core.ErrInsufficientBalance) {
			t.Errorf("error = %v, want ErrInsufficientBalance", err)
		}
		if _, err := f.ledger.Withdraw(ctx, "alice", 1000); err != nil {
			t.Errorf("full principal withdrawal failed: %v", err)
		}
	})

	t.Run("full withdrawal leaves interest on the books", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(365 * 24 * time.Hour)
		f.ledger.Withdraw(ctx, "alice", 1000)

		view, _ := f.ledger.Balance(ctx, "alice")
		if view.Principal != 0 {
			t.Errorf("principal = %d, want 0", view.Principal)
		}
		if view.InterestPending != 50 {
			t.Errorf("pending = %d, want 50", view.InterestPending)
		}
		// Emptied account accrues nothing further.
		f.clock.Advance(365 * 24 * time.Hour)
		later, _ := f.ledger.Balance(ctx, "alice")
		if later.InterestPending != 50 {
			t.Errorf("empty account kept accruing: %d", later.InterestPending)
		}
	})

	t.Run("failed outbound transfer leaves principal debited", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(30 * 24 * time.Hour)
		f.transfer.outErr = errors.New("custody unavailable")

		_, err := f.ledger.Withdraw(ctx, "alice", 500)
		if !errors.Is(err, core.ErrTransferFailed) {
			t.Fatalf("error = %v, want ErrTransferFailed", err)
		}
		// Legacy ordering: the debit is already persisted.
		acct, _ := f.store.GetAccount(ctx, "alice")
		if acct.Principal != 500 {
			t.Errorf("principal = %d, want 500 (debit persisted before transfer)", acct.Principal)
		}
		for _, kind := range f.events.kinds() {
			if kind == EventWithdrawal {
				t.Error("withdrawal event emitted despite failed transfer")
			}
		}
	})

	t.Run("settlement on withdrawal re-arms the lock", func(t *testing.T) {
		f := newFixture()
		seed(f, 1000)
		f.clock.Advance(30 * 24 * time.Hour)

		if _, err := f.ledger.Withdraw(ctx, "alice", 300); err != nil {
			t.Fatalf("first withdrawal: %v", err)
		}
		// Settlement advanced the accrual clock to now, so the unlock
		// instant moved with it; a withdrawal right after is locked again
		// only because settlement reset the clock as a byproduct.
		_, err := f.ledger.Withdraw(ctx, "alice", 300)
		if !errors.Is(err, core.ErrLockPeriodActive) {
			t.Errorf("error = %v, want ErrLockPeriodActive after settlement clock reset", err)
		}
	})
}

func TestSavingsLedger_Balance(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user reads as empty account", func(t *testing.T) {
		f := newFixture()
		view, err := f.ledger.Balance(ctx, "nobody")
		if err != nil {
			t.Fatalf("Balance: %v", err)
		}
		if view.Principal != 0 || view.InterestPending != 0 || view.Total != 0 {
			t.Errorf("view = %+v, want all zero", view)
		}
	})

	t.Run("idempotent with no time passage", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(11 * 24 * time.Hour)

		first, _ := f.ledger.Balance(ctx, "alice")
		for i := 0; i < 5; i++ {
			again, _ := f.ledger.Balance(ctx, "alice")
			if again != first {
				t.Fatalf("view changed on repeat call: %+v != %+v", again, first)
			}
		}
	})

	t.Run("matches what a mutation at the same instant settles", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 123456)
		f.clock.Advance(77 * 24 * time.Hour)

		view, _ := f.ledger.Balance(ctx, "alice")
		f.ledger.Deposit(ctx, "alice", 1)
		acct, _ := f.store.GetAccount(ctx, "alice")
		if acct.AccruedInterest != view.InterestPending {
			t.Errorf("settled %d != viewed %d", acct.AccruedInterest, view.InterestPending)
		}
	})
}

func TestSavingsLedger_UpdateParams(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects negative values", func(t *testing.T) {
		f := newFixture()
		if err := f.ledger.UpdateParams(core.Params{AnnualRateBps: -1}); err == nil {
			t.Error("expected error for negative rate")
		}
		if err := f.ledger.UpdateParams(core.Params{LockPeriod: -time.Hour}); err == nil {
			t.Error("expected error for negative lock period")
		}
	})

	t.Run("rate change applies only to future intervals", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(365 * 24 * time.Hour)

		// Settle one year at 500 bps by depositing.
		f.ledger.Deposit(ctx, "alice", 1000)
		if err := f.ledger.UpdateParams(core.Params{AnnualRateBps: 1000, LockPeriod: testParams.LockPeriod}); err != nil {
			t.Fatalf("UpdateParams: %v", err)
		}
		f.clock.Advance(365 * 24 * time.Hour)

		view, _ := f.ledger.Balance(ctx, "alice")
		// Year one: 1000 at 5% = 50, already settled. Year two: 2000 at
		// 10% = 200. The new rate is not reapplied to year one.
		if view.InterestPending != 250 {
			t.Errorf("pending = %d, want 250", view.InterestPending)
		}
	})

	t.Run("shorter lock period takes effect immediately", func(t *testing.T) {
		f := newFixture()
		f.ledger.Deposit(ctx, "alice", 1000)
		f.clock.Advance(24 * time.Hour)

		if _, err := f.ledger.Withdraw(ctx, "alice", 100); !errors.Is(err, core.ErrLockPeriodActive) {
			t.Fatalf("error = %v, want locked", err)
		}
		f.ledger.UpdateParams(core.Params{AnnualRateBps: 500, LockPeriod: time.Hour})
		if _, err := f.ledger.Withdraw(ctx, "alice", 100); err != nil {
			t.Errorf("withdrawal after lock shortened: %v", err)
		}
	})
}

func TestSavingsLedger_ScenarioThirtyDays(t *testing.T) {
	// Deposit 1000 at t=0 with 500 bps and a 30-day lock. At t=29d the
	// withdrawal is locked; at t=30d exactly, 4 units of interest have
	// accrued and a 500 withdrawal succeeds leaving principal 500.
	ctx := context.Background()
	f := newFixture()

	if _, err := f.ledger.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	f.clock.Advance(29 * 24 * time.Hour)
	if _, err := f.ledger.Withdraw(ctx, "alice", 500); !errors.Is(err, core.ErrLockPeriodActive) {
		t.Fatalf("t=29d error = %v, want ErrLockPeriodActive", err)
	}

	f.clock.Advance(24 * time.Hour)
	view, err := f.ledger.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if view.InterestPending != 4 {
		t.Fatalf("t=30d pending = %d, want 4", view.InterestPending)
	}

	view, err = f.ledger.Withdraw(ctx, "alice", 500)
	if err != nil {
		t.Fatalf("t=30d Withdraw: %v", err)
	}
	if view.Principal != 500 {
		t.Fatalf("principal = %d, want 500", view.Principal)
	}
	if view.InterestPending != 4 {
		t.Fatalf("pending = %d, want 4 settled", view.InterestPending)
	}
}

func TestSavingsLedger_NonNegativity(t *testing.T) {
	// A mixed operation sequence, including rejected calls, never drives
	// principal or accrued interest negative.
	ctx := context.Background()
	f := newFixture()

	ops := []func(){
		func() { f.ledger.Deposit(ctx, "alice", 100) },
		func() { f.ledger.Withdraw(ctx, "alice", 500) },
		func() { f.clock.Advance(31 * 24 * time.Hour) },
		func() { f.ledger.Withdraw(ctx, "alice", 100) },
		func() { f.ledger.Withdraw(ctx, "alice", 1) },
		func() { f.ledger.Deposit(ctx, "alice", -5) },
		func() { f.ledger.Deposit(ctx, "alice", 42) },
		func() { f.clock.Advance(31 * 24 * time.Hour) },
		func() { f.ledger.Withdraw(ctx, "alice", 42) },
	}
	for i, op := range ops {
		op()
		acct, _ := f.store.GetAccount(ctx, "alice")
		if acct.Principal < 0 || acct.AccruedInterest < 0 {
			t.Fatalf("after op %d: principal=%d interest=%d", i, acct.Principal, acct.AccruedInterest)
		}
	}
}

func TestSavingsLedger_ConcurrentDeposits(t *testing.T) {
	// Concurrent deposits against one account serialize; the principal is
	// the exact sum with no lost updates.
	ctx := context.Background()
	f := newFixture()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Deposit(ctx, "alice", 10); err != nil {
				t.Errorf("Deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	view, _ := f.ledger.Balance(ctx, "alice")
	if view.Principal != workers*10 {
		t.Errorf("principal = %d, want %d", view.Principal, workers*10)
	}
	if f.transfer.in != workers*10 {
		t.Errorf("custody received %d, want %d", f.transfer.in, workers*10)
	}
}

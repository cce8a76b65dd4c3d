package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lockbank/events"
	"lockbank/models"

	log "github.com/sirupsen/logrus"
)

// FraudGuardConfig carries the business thresholds. Concrete values come
// from configuration, never from code.
type FraudGuardConfig struct {
	Window         time.Duration // trailing window for velocity counters
	MaxOpsInWindow int           // per-operation-kind attempt ceiling within the window
	AmountCeilings map[models.OperationKind]int64
}

// accountWindow tracks one account's recent attempt timestamps per
// operation kind plus a count of denied attempts.
type accountWindow struct {
	attempts map[models.OperationKind][]time.Time
	flagged  int
}

// fraudGuard evaluates every mutation before it reaches the balance store.
// The velocity counters are in-memory derived state: losing them on restart
// only loosens admission until the window refills, and they can be
// recomputed from the audit log if ever needed. The blacklist flag is
// durable on the account row.
type fraudGuard struct {
	uowFactory UnitOfWorkFactory
	cfg        FraudGuardConfig

	mu      sync.Mutex
	windows map[int64]*accountWindow
	now     func() time.Time
}

// NewFraudGuard creates a fraud guard with the given thresholds
func NewFraudGuard(uowFactory UnitOfWorkFactory, cfg FraudGuardConfig) FraudGuard {
	return &fraudGuard{
		uowFactory: uowFactory,
		cfg:        cfg,
		windows:    make(map[int64]*accountWindow),
		now:        time.Now,
	}
}

// Check gates one mutation attempt. The attempt is recorded in the rolling
// counters before the decision is returned: a burst of rejected requests is
// itself a signal, so counters tighten whether or not the surrounding
// transaction succeeds.
func (g *fraudGuard) Check(ctx context.Context, account *models.Account, op models.OperationKind, amount int64) error {
	recent := g.recordAttempt(account.ID, op)

	if account.IsBlacklisted() {
		reason := "account blacklisted"
		if account.BlacklistReason != nil {
			reason = *account.BlacklistReason
		}
		g.recordDenial(account.ID)
		log.WithFields(log.Fields{
			"accountID": account.ID,
			"operation": op,
			"reason":    reason,
		}).Warn("Fraud guard denied blacklisted account")
		return &models.FraudDeniedError{Reason: "account is blocked"}
	}

	if recent > g.cfg.MaxOpsInWindow {
		g.recordDenial(account.ID)
		log.WithFields(log.Fields{
			"accountID": account.ID,
			"operation": op,
			"attempts":  recent,
			"window":    g.cfg.Window,
		}).Warn("Fraud guard denied on velocity")
		return &models.FraudDeniedError{Reason: "too many operations"}
	}

	if ceiling, ok := g.cfg.AmountCeilings[op]; ok && amount > ceiling {
		g.recordDenial(account.ID)
		log.WithFields(log.Fields{
			"accountID": account.ID,
			"operation": op,
			"amount":    amount,
			"ceiling":   ceiling,
		}).Warn("Fraud guard denied on amount ceiling")
		return &models.FraudDeniedError{Reason: "amount exceeds limit"}
	}

	return nil
}

// recordAttempt appends the attempt and returns the count of attempts for
// the operation kind within the trailing window, including this one.
func (g *fraudGuard) recordAttempt(accountID int64, op models.OperationKind) int {
	now := g.now()
	cutoff := now.Add(-g.cfg.Window)

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[accountID]
	if !ok {
		w = &accountWindow{attempts: make(map[models.OperationKind][]time.Time)}
		g.windows[accountID] = w
	}

	kept := w.attempts[op][:0]
	for _, t := range w.attempts[op] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	w.attempts[op] = kept

	return len(kept)
}

func (g *fraudGuard) recordDenial(accountID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.windows[accountID]; ok {
		w.flagged++
	}
}

// Flag blacklists an account. In-flight operations are not interrupted; the
// flag takes effect on the next Check.
func (g *fraudGuard) Flag(ctx context.Context, accountID int64, reason string, actor models.Actor) error {
	return g.setBlacklist(ctx, accountID, true, reason, actor)
}

// Unflag clears a blacklist flag
func (g *fraudGuard) Unflag(ctx context.Context, accountID int64, actor models.Actor) error {
	return g.setBlacklist(ctx, accountID, false, "", actor)
}

func (g *fraudGuard) setBlacklist(ctx context.Context, accountID int64, blacklisted bool, reason string, actor models.Actor) error {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
	}

	status := models.AccountStatusActive
	if blacklisted {
		status = models.AccountStatusBlacklisted
	}
	if err := uow.AccountRepository().UpdateStatus(ctx, accountID, status, reason); err != nil {
		return fmt.Errorf("failed to update account status: %w", err)
	}

	uow.EventBus().Publish(events.AccountFlaggedEvent{
		AccountID:   accountID,
		Blacklisted: blacklisted,
		Reason:      reason,
		Actor:       actor.String(),
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID":   accountID,
		"blacklisted": blacklisted,
		"reason":      reason,
		"actor":       actor.String(),
	}).Info("Account blacklist flag updated")

	return nil
}

// State returns a snapshot of an account's fraud posture
func (g *fraudGuard) State(ctx context.Context, accountID int64) (*models.FraudState, error) {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
	}

	state := &models.FraudState{
		AccountID:    accountID,
		WindowCounts: make(map[models.OperationKind]int),
		Blacklisted:  account.IsBlacklisted(),
		FlaggedAt:    account.FlaggedAt,
	}
	if account.BlacklistReason != nil {
		state.Reason = *account.BlacklistReason
	}

	cutoff := g.now().Add(-g.cfg.Window)
	g.mu.Lock()
	if w, ok := g.windows[accountID]; ok {
		state.FlaggedEvents = w.flagged
		for op, times := range w.attempts {
			count := 0
			for _, t := range times {
				if t.After(cutoff) {
					count++
				}
			}
			if count > 0 {
				state.WindowCounts[op] = count
			}
		}
	}
	g.mu.Unlock()

	return state, nil
}

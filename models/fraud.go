package models

import (
	"time"
)

// FraudState is a read-model snapshot of an account's fraud posture. The
// rolling counters are derived state kept in memory by the fraud guard and
// can be recomputed from the audit log; only the blacklist flag is durable
// (stored on the account row).
type FraudState struct {
	AccountID     int64
	WindowCounts  map[OperationKind]int
	FlaggedEvents int
	Blacklisted   bool
	Reason        string
	FlaggedAt     *time.Time
}

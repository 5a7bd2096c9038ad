package task

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryCreditLedger is a minimal CreditLedger: a per-user balance,
// debited by a fixed per-operation cost. Charge is advisory when no
// cost is configured for an operation (cost 0 always succeeds). Shape
// grounded on ratelimit.Manager's per-key mutex-protected map.
type InMemoryCreditLedger struct {
	mu             sync.Mutex
	balances       map[string]float64
	defaultBalance float64
	costs          map[string]float64
	logger         *slog.Logger
}

func NewInMemoryCreditLedger(defaultBalance float64, costs map[string]float64, logger *slog.Logger) *InMemoryCreditLedger {
	return &InMemoryCreditLedger{
		balances:       make(map[string]float64),
		defaultBalance: defaultBalance,
		costs:          costs,
		logger:         logger,
	}
}

func (l *InMemoryCreditLedger) balance(userID string) float64 {
	b, ok := l.balances[userID]
	if !ok {
		b = l.defaultBalance
		l.balances[userID] = b
	}
	return b
}

// Charge debits the operation's cost from the user's balance, refusing
// when insufficient. Unknown operations cost nothing and always succeed.
func (l *InMemoryCreditLedger) Charge(ctx context.Context, operation, userID string) (bool, error) {
	cost := l.costs[operation]
	if cost <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balance(userID)
	if b < cost {
		return false, nil
	}
	l.balances[userID] = b - cost
	return true, nil
}

// Record logs completed usage; the charge already happened up front,
// so Record is purely an audit trail here.
func (l *InMemoryCreditLedger) Record(ctx context.Context, operation, userID string, costUnits float64, taskID string) {
	l.logger.Info("credit usage recorded",
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("task_id", taskID),
		slog.Float64("cost_units", costUnits),
	)
}

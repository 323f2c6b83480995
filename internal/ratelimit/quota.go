package ratelimit

import "context"

// QuotaGuard reserves one send against the provider's daily quota. Reserve
// returns domain.ErrQuotaExhausted once the cap is reached; the batch
// processor stops the run and leaves the remaining leads eligible.
type QuotaGuard interface {
	Reserve(ctx context.Context) error
}

// NopQuota never exhausts. Used when no daily cap is configured.
type NopQuota struct{}

func (NopQuota) Reserve(ctx context.Context) error { return nil }

package cache

import (
	"context"
	"time"

	"tokoku/backend/internal/domain"
)

// SaleSummaryCache holds computed financial summaries keyed by sale id.
// Entries must be invalidated whenever the underlying sale changes.
type SaleSummaryCache interface {
	Get(ctx context.Context, saleID string) (*domain.SaleSummary, bool, error)
	Set(ctx context.Context, saleID string, summary *domain.SaleSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, saleID string) error
}

type NoopSaleSummaryCache struct{}

func (NoopSaleSummaryCache) Get(_ context.Context, _ string) (*domain.SaleSummary, bool, error) {
	return nil, false, nil
}

func (NoopSaleSummaryCache) Set(_ context.Context, _ string, _ *domain.SaleSummary, _ time.Duration) error {
	return nil
}

func (NoopSaleSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

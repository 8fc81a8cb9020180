package ports

import (
	"context"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

type IPLimiter interface {
	Allow(ctx context.Context, ip string) (domain.RateDecision, error)
}

package ports

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
)

type Upstream interface {
	FetchResource(ctx context.Context, provider domain.Provider, endpoint string, params url.Values) (json.RawMessage, error)
}

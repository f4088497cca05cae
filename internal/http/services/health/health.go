// Package health probes the server's backing dependencies for the ops
// surface.
package health

import (
	"context"
	"time"

	"github.com/dropDatabas3/authgrid/internal/cache"
	"github.com/dropDatabas3/authgrid/internal/store"
)

// Status is the result of one probe round. Checks maps dependency name to
// "ok" or the failure text.
type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

type Service struct {
	store store.Store
	cache cache.Client
}

func NewService(st store.Store, c cache.Client) *Service {
	return &Service{store: st, cache: c}
}

// Check pings storage and does a cache write/read round trip.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{Healthy: true, Checks: map[string]string{}}

	if err := s.store.Ping(ctx); err != nil {
		st.Healthy = false
		st.Checks["storage"] = err.Error()
	} else {
		st.Checks["storage"] = "ok"
	}

	if s.cache != nil {
		s.cache.Set(ctx, "health:probe", []byte("1"), 10*time.Second)
		if _, ok := s.cache.Get(ctx, "health:probe"); !ok {
			st.Healthy = false
			st.Checks["cache"] = "write/read probe failed"
		} else {
			st.Checks["cache"] = "ok"
		}
	}

	return st
}

package rate

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/authgrid/internal/cache/memory"
)

func TestFixedWindow(t *testing.T) {
	l := NewFixedWindow(memory.New(time.Minute), "test", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "client-1")
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d denied, want allowed", i+1)
		}
	}

	res, err := l.Allow(ctx, "client-1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("hit 4 allowed, want denied")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("RetryAfter = %v", res.RetryAfter)
	}

	// other keys are independent
	res, err = l.Allow(ctx, "client-2")
	if err != nil {
		t.Fatalf("Allow other key: %v", err)
	}
	if !res.Allowed {
		t.Fatal("independent key denied")
	}
}

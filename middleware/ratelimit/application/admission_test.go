package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-gateway/middleware/ratelimit/domain"
	"chat-gateway/middleware/ratelimit/infra"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingStore struct {
	dec  domain.Decision
	err  error
	keys []domain.Key
	at   []time.Time
}

func (s *recordingStore) Admit(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	s.keys = append(s.keys, key)
	s.at = append(s.at, now)
	return s.dec, s.err
}

func TestAdmissionController_AllowsWhenNoStore(t *testing.T) {
	var c *AdmissionController
	if !c.CheckAndAdmit(context.Background(), "k").Allowed {
		t.Fatalf("expected allowed with nil controller")
	}
	if !(&AdmissionController{}).CheckAndAdmit(context.Background(), "k").Allowed {
		t.Fatalf("expected allowed without store")
	}
}

func TestAdmissionController_PassesClockAndKey(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := &recordingStore{dec: domain.Decision{Allowed: true, Remaining: 4}}
	c := &AdmissionController{Store: store, Clock: clock}

	dec := c.CheckAndAdmit(context.Background(), "")
	if !dec.Allowed || dec.Remaining != 4 {
		t.Fatalf("expected store decision to be returned, got %+v", dec)
	}
	if store.keys[0] != domain.UnknownKey {
		t.Fatalf("expected empty key to map to unknown, got %q", store.keys[0])
	}
	if !store.at[0].Equal(clock.t) {
		t.Fatalf("expected injected clock time, got %s", store.at[0])
	}
}

func TestAdmissionController_UsesFallbackOnStoreError(t *testing.T) {
	primary := &recordingStore{err: errors.New("redis down")}
	fallback := &recordingStore{dec: domain.Decision{Allowed: true}}
	c := &AdmissionController{Store: primary, Fallback: fallback}

	if !c.CheckAndAdmit(context.Background(), "k").Allowed {
		t.Fatalf("expected fallback decision")
	}
	if len(fallback.keys) != 1 || fallback.keys[0] != "k" {
		t.Fatalf("expected fallback to be consulted with key k, got %v", fallback.keys)
	}
}

func TestAdmissionController_DeniesWhenStoreFailsWithoutFallback(t *testing.T) {
	c := &AdmissionController{Store: &recordingStore{err: errors.New("redis down")}}

	dec := c.CheckAndAdmit(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected denial when store fails")
	}
	if dec.RetryAfter != time.Second {
		t.Fatalf("expected RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestAdmissionController_FixedWindowWithFakeClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := &AdmissionController{
		Store: infra.NewMemoryWindowStore(domain.Policy{Window: 15 * time.Minute, Max: 100}, clock.t),
		Clock: clock,
	}
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !c.CheckAndAdmit(ctx, "1.2.3.4").Allowed {
			t.Fatalf("expected request %d to be admitted", i+1)
		}
	}
	if c.CheckAndAdmit(ctx, "1.2.3.4").Allowed {
		t.Fatalf("expected 101st request to be denied")
	}

	clock.Advance(15*time.Minute + time.Millisecond)
	if !c.CheckAndAdmit(ctx, "1.2.3.4").Allowed {
		t.Fatalf("expected admission after the window elapsed")
	}
}

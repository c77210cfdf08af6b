package application

import (
	"context"
	"testing"
	"time"

	"inference-gateway/inference/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeLimits struct {
	lim domain.Limiter
}

func (s fakeLimits) Get(domain.Key) domain.Limiter { return s.lim }

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestAdmission_Decide_AllowsWhenNoLimits(t *testing.T) {
	dec := Admission{}.Decide("k")
	if !dec.Allowed || dec.RetryAfter != 0 {
		t.Fatalf("expected allowed without retry, got %+v", dec)
	}
}

func TestAdmission_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	a := Admission{Limits: fakeLimits{lim: fakeLimiter{allow: true}}, RetryAfter: 5 * time.Second}
	if !a.Decide("k").Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestAdmission_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	a := Admission{Limits: fakeLimits{lim: fakeLimiter{allow: false}}}
	dec := a.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestAdmission_Acquire_AllowsWhenNoSlots(t *testing.T) {
	release, ok := Admission{}.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestAdmission_Acquire_UsesTimeout(t *testing.T) {
	a := Admission{Slots: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}
	if _, ok := a.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}
}

func TestAdmission_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	a := Admission{Slots: pool}
	if _, ok := a.Acquire(context.Background()); !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
}

package authcore

import (
	"context"
	"testing"

	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/verification"
)

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}
}

func TestEngineCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if _, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, _ = env.engine.Login(ctx, "alice@example.com", "wrong password here")

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricRegisterSuccess]; got != 1 {
		t.Errorf("register success = %d, want 1", got)
	}
	if got := snap.Counters[MetricEmailVerified]; got != 1 {
		t.Errorf("email verified = %d, want 1", got)
	}
	if got := snap.Counters[MetricLoginSuccess]; got != 1 {
		t.Errorf("login success = %d, want 1", got)
	}
	if got := snap.Counters[MetricLoginFailure]; got != 1 {
		t.Errorf("login failure = %d, want 1", got)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(16)

	users := newMockUserStore()
	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(users).
		WithSessionRegistry(session.NewMemoryRegistry()).
		WithVerificationStore(verification.NewMemoryStore()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	ctx := context.Background()
	if _, err := engine.Register(ctx, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, _ = engine.Login(ctx, "alice@example.com", "wrong password here")

	// Close flushes the dispatcher so both events are observable.
	engine.Close()

	events := map[string]AuditEvent{}
	for {
		select {
		case ev := <-sink.Events():
			events[ev.EventType] = ev
			continue
		default:
		}
		break
	}

	reg, ok := events[auditEventRegisterSuccess]
	if !ok {
		t.Fatal("missing register_success event")
	}
	if !reg.Success || reg.Email != "alice@example.com" {
		t.Errorf("unexpected register event: %+v", reg)
	}

	fail, ok := events[auditEventLoginFailure]
	if !ok {
		t.Fatal("missing login_failure event")
	}
	if fail.Success || fail.Error != string(auditErrInvalidCredentials) {
		t.Errorf("unexpected login failure event: %+v", fail)
	}
}

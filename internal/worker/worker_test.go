package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore records which maintenance queries ran.
type fakeStore struct {
	resetCount int64
	staleCount int64
	purgeCount int64
	resetErr   error
	staleErr   error

	resetCalls int
	staleCalls int
	purgeCalls int
	gotCutoff  time.Time
}

func (f *fakeStore) ResetExpiredCycles(ctx context.Context) (int64, error) {
	f.resetCalls++
	return f.resetCount, f.resetErr
}

func (f *fakeStore) CompleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	f.staleCalls++
	f.gotCutoff = cutoff
	return f.staleCount, f.staleErr
}

func (f *fakeStore) DeleteExpiredAuthSessions(ctx context.Context) (int64, error) {
	f.purgeCalls++
	return f.purgeCount, nil
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"negative stale cutoff", func(c *Config) { c.StaleSessionCutoff = -time.Hour }, true},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, true},
		{"zero report window without export", func(c *Config) { c.ReportWindow = 0 }, false},
		{"zero report window with export", func(c *Config) {
			c.ReportExportEnabled = true
			c.ReportWindow = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = 0

	if _, err := New(&fakeStore{}, nil, cfg, testLogger()); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestRunOnce_RunsEveryTask(t *testing.T) {
	store := &fakeStore{resetCount: 3, staleCount: 2, purgeCount: 5}
	w, err := New(store, nil, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("new worker failed: %v", err)
	}

	w.runOnce(context.Background())

	if store.resetCalls != 1 || store.staleCalls != 1 || store.purgeCalls != 1 {
		t.Errorf("expected one call per task, got resets=%d stales=%d purges=%d",
			store.resetCalls, store.staleCalls, store.purgeCalls)
	}
}

func TestRunOnce_UsesStaleCutoff(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultConfig()
	cfg.StaleSessionCutoff = 6 * time.Hour

	w, err := New(store, nil, cfg, testLogger())
	if err != nil {
		t.Fatalf("new worker failed: %v", err)
	}
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.runOnce(context.Background())

	want := now.Add(-6 * time.Hour)
	if !store.gotCutoff.Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, store.gotCutoff)
	}
}

func TestRunOnce_TaskFailureDoesNotStopOthers(t *testing.T) {
	store := &fakeStore{resetErr: errors.New("connection refused")}
	w, err := New(store, nil, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("new worker failed: %v", err)
	}

	w.runOnce(context.Background())

	if store.staleCalls != 1 || store.purgeCalls != 1 {
		t.Error("remaining tasks must run after a task fails")
	}
}

func TestStartAndStop(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultConfig()
	cfg.PollInterval = time.Hour // keep the ticker quiet during the test

	w, err := New(store, nil, cfg, testLogger())
	if err != nil {
		t.Fatalf("new worker failed: %v", err)
	}

	w.Start(context.Background())
	w.Stop()

	// The immediate run on start must have executed.
	if store.resetCalls == 0 {
		t.Error("expected an immediate maintenance run on start")
	}
}

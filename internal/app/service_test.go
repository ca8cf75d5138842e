package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saleshop/internal/repository"
	"github.com/saleshop/internal/service"
)

type stubService struct {
	name     string
	startErr error
	stopped  int32
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *stubService) Stop(context.Context) error {
	atomic.AddInt32(&s.stopped, 1)
	return nil
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second); !errors.Is(err, ErrNoServices) {
		t.Fatalf("expected ErrNoServices, got %v", err)
	}
	if err := NewRunner(nil).Run(context.Background(), time.Second); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestRunnerStopsAllWhenOneFails(t *testing.T) {
	boom := errors.New("listen failed")
	failing := &stubService{name: "http", startErr: boom}
	sweeper := &stubService{name: "session_sweeper"}
	manager := service.NewSessionManager(service.SessionDeps{
		Slot:        repository.NewMemoryCartSlot(),
		CartKey:     "cart",
		IdleTimeout: time.Minute,
	})
	manager.Create(context.Background())

	err := NewRunner(failing, sweeper).WithSessions(manager).Run(context.Background(), time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if err.Error() != "http: listen failed" {
		t.Fatalf("error should name the service, got %q", err.Error())
	}
	if atomic.LoadInt32(&failing.stopped) != 1 || atomic.LoadInt32(&sweeper.stopped) != 1 {
		t.Fatalf("every service must be stopped once")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	svc := &stubService{name: "session_sweeper"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(svc).Run(ctx, time.Second) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancel should be a clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not exit after cancel")
	}
	if atomic.LoadInt32(&svc.stopped) != 1 {
		t.Fatalf("service not stopped")
	}
}

package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	mu      sync.Mutex
	started bool
	stopped bool

	startErr error
	quit     chan struct{}
	once     sync.Once
}

func newMockService() *mockService {
	return &mockService{quit: make(chan struct{})}
}

func (m *mockService) Start() error {
	m.mu.Lock()
	m.started = true
	err := m.startErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	<-m.quit
	return nil
}

func (m *mockService) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.once.Do(func() { close(m.quit) })
}

func (m *mockService) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *mockService) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func TestLifecycle_RunStopsOnContextCancel(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))
	svc := newMockService()
	l.Add("svc", svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, svc.isStarted, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}
	assert.True(t, svc.isStopped())
}

func TestLifecycle_ServiceFailureTriggersShutdown(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))

	healthy := newMockService()
	failing := newMockService()
	failing.startErr = errors.New("bind failed")
	l.Add("healthy", healthy)
	l.Add("failing", failing)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down after service failure")
	}
	assert.True(t, healthy.isStopped())
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	l := NewLifecycle(zaptest.NewLogger(t))

	var mu sync.Mutex
	var order []string
	record := func(name string) *FuncService {
		quit := make(chan struct{})
		return &FuncService{
			StartFn: func() error { <-quit; return nil },
			StopFn: func() {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				close(quit)
			},
		}
	}

	l.Add("first", record("first"))
	l.Add("second", record("second"))
	l.Add("third", record("third"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not shut down")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false
	svc := &FuncService{
		StartFn: func() error { started = true; return nil },
		StopFn:  func() { stopped = true },
	}

	require.NoError(t, svc.Start())
	svc.Stop()
	assert.True(t, started)
	assert.True(t, stopped)
}

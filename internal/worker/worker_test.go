package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sweepTime = time.Date(2026, time.October, 18, 6, 0, 0, 0, time.UTC)

type fakeRefresher struct {
	mu     sync.Mutex
	calls  int
	asOf   time.Time
	limit  int
	result []*entity.Invoice
	err    error
	swept  chan struct{}
}

func (f *fakeRefresher) RefreshOverdue(ctx context.Context, asOf time.Time, limit int) ([]*entity.Invoice, error) {
	f.mu.Lock()
	f.calls++
	f.asOf = asOf
	f.limit = limit
	f.mu.Unlock()
	if f.swept != nil {
		select {
		case f.swept <- struct{}{}:
		default:
		}
	}
	return f.result, f.err
}

type fakeNotifier struct {
	notified []*entity.Invoice
	err      error
}

func (f *fakeNotifier) NotifyOverdue(ctx context.Context, invoices []*entity.Invoice) error {
	f.notified = append(f.notified, invoices...)
	return f.err
}

func TestOverdueSweeper_SweepOnce(t *testing.T) {
	flipped := []*entity.Invoice{{InvoiceNumber: "INV-202610-0001", Status: entity.InvoiceStatusOverdue}}

	tests := []struct {
		name         string
		refresher    *fakeRefresher
		notifier     *fakeNotifier
		wantErr      bool
		wantNotified int
	}{
		{"flips and notifies", &fakeRefresher{result: flipped}, &fakeNotifier{}, false, 1},
		{"nothing overdue", &fakeRefresher{}, &fakeNotifier{}, false, 0},
		{"refresh fails", &fakeRefresher{err: errors.New("db locked")}, &fakeNotifier{}, true, 0},
		{"notify failure is not fatal", &fakeRefresher{result: flipped}, &fakeNotifier{err: errors.New("lark down")}, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewOverdueSweeper(tt.refresher, tt.notifier, billing.FixedClock{T: sweepTime},
				SweeperConfig{BatchSize: 50}, zap.NewNop())

			got, err := s.SweepOnce(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, len(tt.refresher.result))
			assert.Len(t, tt.notifier.notified, tt.wantNotified)
			assert.True(t, tt.refresher.asOf.Equal(sweepTime))
			assert.Equal(t, 50, tt.refresher.limit)
		})
	}
}

func TestOverdueSweeper_StartStop(t *testing.T) {
	refresher := &fakeRefresher{swept: make(chan struct{}, 1)}
	s := NewOverdueSweeper(refresher, nil, billing.FixedClock{T: sweepTime},
		SweeperConfig{Interval: time.Hour}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	select {
	case <-refresher.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run on start")
	}

	s.Stop()
	s.Stop()

	refresher.mu.Lock()
	defer refresher.mu.Unlock()
	assert.Equal(t, 1, refresher.calls)
}

type recordingWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *recordingWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *recordingWorker) Stop() { *w.log = append(*w.log, "stop "+w.name) }

func (w *recordingWorker) Name() string { return w.name }

func TestManager_StartStopOrder(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log})
	m.Register(&recordingWorker{name: "b", log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.Running())
	assert.Equal(t, 2, m.Count())

	m.StopAll()
	assert.False(t, m.Running())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log})
	m.Register(&recordingWorker{name: "b", log: &log, startErr: errors.New("boom")})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b")
	assert.Equal(t, []string{"start a", "stop a"}, log)
	assert.False(t, m.Running())
}

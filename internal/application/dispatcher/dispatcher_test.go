package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/event"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(string, ...interface{}) {}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func newEvent(t event.Type) *event.Event {
	return event.NewEvent(t, "wf-1", "tr-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe(event.TypeWorkflowAdvanced, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeWorkflowAdvanced, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(AllEvents, "audit", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "audit")
		return nil
	})
	d.Subscribe(event.TypeWorkflowRejected, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newEvent(event.TypeWorkflowAdvanced)))
	assert.Equal(t, []string{"first", "second", "audit"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	d := NewDispatcher(WithLogger(&recordingLogger{}))
	called := false

	d.Subscribe(event.TypeWorkflowCompleted, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	d.Subscribe(event.TypeWorkflowCompleted, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent(event.TypeWorkflowCompleted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, called)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeWorkflowEscalated, "panics", func(ctx context.Context, evt *event.Event) error {
		panic("bad handler")
	})

	err := d.Dispatch(context.Background(), newEvent(event.TypeWorkflowEscalated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestDispatchAsync_CloseWaitsForHandlers(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))
	var count atomic.Int32

	for i := 0; i < 3; i++ {
		d.Subscribe(event.TypeWorkflowInitiated, "", func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})
	}
	d.Subscribe(event.TypeWorkflowInitiated, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("unreachable")
	})

	d.DispatchAsync(context.Background(), newEvent(event.TypeWorkflowInitiated))
	require.NoError(t, d.Close())

	assert.Equal(t, int32(3), count.Load())
	assert.Len(t, logger.errors, 1)
}

func TestClose_RejectsFurtherEvents(t *testing.T) {
	d := NewDispatcher(WithLogger(&recordingLogger{}))
	called := false
	d.Subscribe(event.TypeWorkflowReturned, "h", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.Error(t, d.Dispatch(context.Background(), newEvent(event.TypeWorkflowReturned)))

	d.DispatchAsync(context.Background(), newEvent(event.TypeWorkflowReturned))
	assert.False(t, called)
}

func TestUnsubscribeAndList(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeWorkflowReassigned, "a", noop)
	d.Subscribe(event.TypeWorkflowReassigned, "b", noop)
	d.Subscribe(event.TypeWorkflowReassigned, "", noop)

	handlers := d.ListHandlers(event.TypeWorkflowReassigned)
	require.Len(t, handlers, 3)
	assert.Equal(t, "workflow.reassigned-handler-2", handlers[2].Name)
	assert.Nil(t, handlers[0].Handler)

	d.Unsubscribe(event.TypeWorkflowReassigned, "a")
	handlers = d.ListHandlers(event.TypeWorkflowReassigned)
	require.Len(t, handlers, 2)
	assert.Equal(t, "b", handlers[0].Name)
}

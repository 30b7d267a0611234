package emitter

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/reaper/pkg/instance"
)

// mockEmitter implements Emitter for testing.
type mockEmitter struct {
	emitCalls   int
	closeCalls  int
	emitErr     error
	closeErr    error
	invocations []instance.Invocation
}

func (m *mockEmitter) Emit(_ context.Context, inv instance.Invocation) error {
	m.emitCalls++
	m.invocations = append(m.invocations, inv)
	return m.emitErr
}

func (m *mockEmitter) Close() error {
	m.closeCalls++
	return m.closeErr
}

func sampleInvocation() instance.Invocation {
	r := instance.NewReport(3)
	r.Successful = append(r.Successful, instance.Successful{
		InstanceID:    "i-abc",
		PreviousState: instance.StateRunning,
		CurrentState:  instance.StateShuttingDown,
	})
	r.Blocked = append(r.Blocked,
		instance.Blocked{InstanceID: "i-xyz", Reason: "Instance already in terminated state", Details: instance.Snapshot{State: instance.StateTerminated}},
		instance.Blocked{InstanceID: "i-prot", Reason: "Termination protection enabled or insufficient permissions", ErrorCode: "OperationNotPermitted"},
	)
	return instance.Invocation{
		StatusCode: r.StatusCode(),
		Report:     r,
		Duration:   150 * time.Millisecond,
	}
}

func TestMultiEmitter_Emit(t *testing.T) {
	e1 := &mockEmitter{}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Emit(context.Background(), sampleInvocation())

	require.NoError(t, err)
	assert.Equal(t, 1, e1.emitCalls)
	assert.Equal(t, 1, e2.emitCalls)
	require.Len(t, e1.invocations, 1)
	assert.Equal(t, http.StatusMultiStatus, e1.invocations[0].StatusCode)
}

func TestMultiEmitter_Emit_ContinuesPastFailingSink(t *testing.T) {
	sinkDown := errors.New("sink down")
	e1 := &mockEmitter{emitErr: sinkDown}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Emit(context.Background(), sampleInvocation())

	assert.ErrorIs(t, err, sinkDown)
	assert.Equal(t, 1, e1.emitCalls)
	require.Len(t, e2.invocations, 1)
	assert.Equal(t, 3, e2.invocations[0].Report.TotalRequested)
}

func TestMultiEmitter_Emit_JoinsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	multi := NewMultiEmitter(&mockEmitter{emitErr: first}, &mockEmitter{emitErr: second})

	err := multi.Emit(context.Background(), instance.Invocation{})

	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestMultiEmitter_Close_ClosesAll(t *testing.T) {
	closeFailed := errors.New("close failed")
	e1 := &mockEmitter{closeErr: closeFailed}
	e2 := &mockEmitter{}
	multi := NewMultiEmitter(e1, e2)

	err := multi.Close()

	assert.ErrorIs(t, err, closeFailed)
	assert.Equal(t, 1, e1.closeCalls)
	assert.Equal(t, 1, e2.closeCalls)
}

func TestMultiEmitter_SkipsNil(t *testing.T) {
	e := &mockEmitter{}
	multi := NewMultiEmitter(nil, e, nil)

	require.NoError(t, multi.Emit(context.Background(), sampleInvocation()))
	require.NoError(t, multi.Close())
	assert.Equal(t, 1, e.emitCalls)
	assert.Equal(t, 1, e.closeCalls)
}

func TestMultiEmitter_Empty(t *testing.T) {
	multi := NewMultiEmitter()

	require.NoError(t, multi.Emit(context.Background(), instance.Invocation{}))
	require.NoError(t, multi.Close())
}

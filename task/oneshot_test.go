package task

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestChannel_SendTake(t *testing.T) {
	tx, rx := NewChannel[string]()
	require.False(t, rx.Ready())

	_, err := rx.take()
	require.ErrorIs(t, err, ErrPending)

	require.True(t, tx.Send("a"))
	require.True(t, rx.Ready())
	require.False(t, rx.Consumed())

	select {
	case <-rx.Done():
	default:
		t.Fatal("expected Done to be closed")
	}

	v, err := rx.take()
	require.NoError(t, err)
	require.Equal(t, "a", v)
	require.True(t, rx.Consumed())
	require.True(t, rx.Ready())

	v, err = rx.take()
	require.ErrorIs(t, err, ErrAlreadyJoined)
	require.Empty(t, v)
}

func TestChannel_SecondSendIsNoOp(t *testing.T) {
	tx, rx := NewChannel[int]()
	require.True(t, tx.Send(1))
	require.False(t, tx.Send(2))

	v, err := rx.take()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	// still a no-op, after consumption
	require.False(t, tx.Send(3))
	require.True(t, rx.Consumed())
}

func TestChannel_ConcurrentSendExactlyOnce(t *testing.T) {
	tx, rx := NewChannel[int]()

	var wins atomic.Int32
	var g errgroup.Group
	for i := range 64 {
		g.Go(func() error {
			if tx.Send(i) {
				wins.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), wins.Load())

	_, err := rx.take()
	require.NoError(t, err)
}

func TestChannel_Subscribe(t *testing.T) {
	tx, rx := NewChannel[int]()

	var calls atomic.Int32
	wake := func() { calls.Add(1) }
	_, ok := rx.subscribe(wake)
	require.True(t, ok)
	_, ok = rx.subscribe(wake)
	require.True(t, ok)
	require.Zero(t, calls.Load())

	tx.Send(5)
	require.Equal(t, int32(2), calls.Load())

	// wakers are called at most once
	tx.Send(6)
	require.Equal(t, int32(2), calls.Load())

	_, ok = rx.subscribe(wake)
	require.False(t, ok)
	require.Equal(t, int32(2), calls.Load())
}

func TestChannel_SubscribeCancel(t *testing.T) {
	tx, rx := NewChannel[int]()

	var first, second atomic.Int32
	cancel1, ok := rx.subscribe(func() { first.Add(1) })
	require.True(t, ok)
	cancel2, ok := rx.subscribe(func() { second.Add(1) })
	require.True(t, ok)
	require.Equal(t, 2, rx.waiting())

	cancel1()
	cancel1()
	require.Equal(t, 1, rx.waiting())

	tx.Send(1)
	require.Zero(t, first.Load())
	require.Equal(t, int32(1), second.Load())

	cancel2()
	require.Zero(t, rx.waiting())
}

func TestChannel_Independent(t *testing.T) {
	tx1, rx1 := NewChannel[int]()
	_, rx2 := NewChannel[int]()

	tx1.Send(1)
	assert.True(t, rx1.Ready())
	assert.False(t, rx2.Ready())

	_, err := rx2.take()
	assert.ErrorIs(t, err, ErrPending)
}

func TestPanicError(t *testing.T) {
	err := &PanicError{Value: ErrAlreadyJoined}
	require.ErrorIs(t, err, ErrAlreadyJoined)
	require.Equal(t, "task: panicked: task: join handle already consumed", err.Error())

	err = &PanicError{Value: "boom"}
	require.Nil(t, err.Unwrap())
	require.Equal(t, "task: panicked: boom", err.Error())
}

func TestPriority_String(t *testing.T) {
	require.Equal(t, "High", PriorityHigh.String())
	require.Equal(t, "Low", PriorityLow.String())
	require.Equal(t, "Priority(9)", Priority(9).String())
}

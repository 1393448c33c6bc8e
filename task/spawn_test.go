package task_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Maurimura7/localghost/task"
	"github.com/Maurimura7/localghost/task/tasktest"
	"github.com/stretchr/testify/require"
)

// recoverPanic runs fn, returning the recovered panic value, if any.
func recoverPanic(fn func()) (r any) {
	defer func() { r = recover() }()
	fn()
	return nil
}

func TestSpawn_ReturnsValue(t *testing.T) {
	host := tasktest.New()
	h := task.Spawn(host, func(co *task.Co) int { return 12 })

	host.RunMicrotasks()

	v, err := h.Poll()
	require.NoError(t, err)
	require.Equal(t, 12, v)
}

func TestSpawn_NeverInline(t *testing.T) {
	host := tasktest.New()

	var ran atomic.Bool
	h := task.Spawn(host, func(co *task.Co) struct{} {
		ran.Store(true)
		return struct{}{}
	})

	require.False(t, ran.Load())
	require.False(t, h.Ready())
	_, err := h.Poll()
	require.ErrorIs(t, err, task.ErrPending)
	require.Equal(t, 1, host.Pending().Microtasks)

	require.True(t, host.Step())
	require.True(t, ran.Load())
	require.True(t, h.Ready())
}

func TestSpawn_WithAndWithoutSuspension(t *testing.T) {
	host := tasktest.New()

	ha := task.Spawn(host, func(co *task.Co) string { return "a" })
	hb := task.Spawn(host, func(co *task.Co) string {
		co.Yield()
		return "b"
	})

	host.RunMicrotasks()

	a, err := ha.Poll()
	require.NoError(t, err)
	require.Equal(t, "a", a)

	b, err := hb.Poll()
	require.NoError(t, err)
	require.Equal(t, "b", b)
}

func TestSpawn_YieldInterleavesMicrotasks(t *testing.T) {
	host := tasktest.New()

	var order []string
	record := func(s string) func() {
		return func() { order = append(order, s) }
	}

	require.NoError(t, host.SubmitMicrotask(record("before")))
	task.Spawn(host, func(co *task.Co) struct{} {
		order = append(order, "task-1")
		co.Yield()
		order = append(order, "task-2")
		return struct{}{}
	})
	require.NoError(t, host.SubmitMicrotask(record("after")))

	require.Equal(t, 4, host.RunMicrotasks())
	require.Equal(t, []string{"before", "task-1", "after", "task-2"}, order)
}

func TestSpawn_AwaitNested(t *testing.T) {
	host := tasktest.New()

	outer := task.Spawn(host, func(co *task.Co) int {
		inner := task.Spawn(co.Host(), func(co *task.Co) int {
			co.Yield()
			return 20
		})
		return task.Await(co, inner) + 1
	})

	host.RunMicrotasks()

	v, err := outer.Poll()
	require.NoError(t, err)
	require.Equal(t, 21, v)
}

func TestSpawn_IndependentHandles(t *testing.T) {
	host := tasktest.New()

	tx1, rx1 := task.NewChannel[int]()
	tx2, rx2 := task.NewChannel[int]()
	in1, in2 := task.NewJoinHandle(rx1), task.NewJoinHandle(rx2)

	h1 := task.Spawn(host, func(co *task.Co) int { return task.Await(co, in1) * 10 })
	h2 := task.Spawn(host, func(co *task.Co) int { return task.Await(co, in2) * 10 })
	host.RunMicrotasks()
	require.False(t, h1.Ready())
	require.False(t, h2.Ready())

	tx1.Send(1)
	host.RunMicrotasks()
	require.True(t, h1.Ready())
	require.False(t, h2.Ready())

	v, err := h1.Poll()
	require.NoError(t, err)
	require.Equal(t, 10, v)

	tx2.Send(2)
	host.RunMicrotasks()
	v, err = h2.Poll()
	require.NoError(t, err)
	require.Equal(t, 20, v)
}

func TestJoinHandle_SecondRetrieval(t *testing.T) {
	host := tasktest.New()
	h := task.Spawn(host, func(co *task.Co) int { return 12 })
	host.RunMicrotasks()

	v, err := h.Poll()
	require.NoError(t, err)
	require.Equal(t, 12, v)

	_, err = h.Poll()
	require.ErrorIs(t, err, task.ErrAlreadyJoined)

	_, err = h.Wait(context.Background())
	require.ErrorIs(t, err, task.ErrAlreadyJoined)
}

func TestAwait_SecondRetrievalPanics(t *testing.T) {
	host := tasktest.New()
	inner := task.Spawn(host, func(co *task.Co) int { return 1 })
	task.Spawn(host, func(co *task.Co) int {
		task.Await(co, inner)
		return task.Await(co, inner)
	})

	r := recoverPanic(func() { host.RunMicrotasks() })

	var perr *task.PanicError
	require.ErrorAs(t, r.(error), &perr)
	require.ErrorIs(t, perr, task.ErrAlreadyJoined)
}

func TestJoinHandle_WaitContext(t *testing.T) {
	host := tasktest.New()
	h := task.Spawn(host, func(co *task.Co) int { return 3 })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	host.RunMicrotasks()
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, v)
}

func TestSpawn_PanicReraisedOnHost(t *testing.T) {
	host := tasktest.New()
	boom := errors.New("boom")
	h := task.Spawn(host, func(co *task.Co) int {
		co.Yield()
		panic(boom)
	})

	r := recoverPanic(func() { host.RunMicrotasks() })
	require.NotNil(t, r)

	var perr *task.PanicError
	require.ErrorAs(t, r.(error), &perr)
	require.ErrorIs(t, perr, boom)
	require.NotEmpty(t, perr.Stack)

	// the handle never resolves, and the host is still usable
	require.False(t, h.Ready())
	require.Zero(t, host.RunMicrotasks())
	require.False(t, h.Ready())
}

func TestSpawn_GoexitNeverResolves(t *testing.T) {
	host := tasktest.New()
	h := task.Spawn(host, func(co *task.Co) int {
		runtime.Goexit()
		return 1
	})

	require.Nil(t, recoverPanic(func() { host.RunMicrotasks() }))
	require.False(t, h.Ready())
}

func TestSpawn_TeardownWhileSuspended(t *testing.T) {
	host := tasktest.New()

	tx, rx := task.NewChannel[int]()
	in := task.NewJoinHandle(rx)

	var resumed atomic.Bool
	h := task.Spawn(host, func(co *task.Co) int {
		v := task.Await(co, in)
		resumed.Store(true)
		return v
	})
	host.RunMicrotasks()
	require.False(t, h.Ready())

	host.Terminate()
	require.True(t, tx.Send(1))

	require.Zero(t, host.RunMicrotasks())
	require.False(t, h.Ready())
	require.False(t, resumed.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSpawn_AfterTeardown(t *testing.T) {
	host := tasktest.New()
	host.Terminate()

	var ran atomic.Bool
	h := task.Spawn(host, func(co *task.Co) int {
		ran.Store(true)
		return 1
	})

	require.Zero(t, host.RunMicrotasks())
	require.False(t, ran.Load())
	require.False(t, h.Ready())
}

func TestCo_UseOutsideTaskPanics(t *testing.T) {
	host := tasktest.New()

	var leaked *task.Co
	task.Spawn(host, func(co *task.Co) struct{} {
		leaked = co
		return struct{}{}
	})
	host.RunMicrotasks()

	require.NotNil(t, leaked)
	require.Same(t, host, leaked.Host())
	require.Equal(t, host.Done(), leaked.Done())
	require.PanicsWithValue(t, "task: Co used outside of its running task", leaked.Yield)
}

func TestSpawnIdle_NeverIdle(t *testing.T) {
	host := tasktest.New()
	h, err := task.SpawnIdle(host, func() int { return 7 })
	require.NoError(t, err)

	// microtasks run, but the host never goes idle
	host.RunMicrotasks()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, h.Ready())
}

func TestSpawnIdle_RunsWhenIdle(t *testing.T) {
	host := tasktest.New()
	h, err := task.SpawnIdle(host, func() int { return 7 })
	require.NoError(t, err)

	require.Equal(t, 1, host.RunIdle())

	v, err := h.Poll()
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestSpawnIdle_NotOrderedWithSpawn(t *testing.T) {
	host := tasktest.New()

	idle, err := task.SpawnIdle(host, func() string { return "idle" })
	require.NoError(t, err)
	micro := task.Spawn(host, func(co *task.Co) string { return "micro" })

	host.RunMicrotasks()
	require.True(t, micro.Ready())
	require.False(t, idle.Ready())

	host.RunIdle()
	require.True(t, idle.Ready())
}

func TestSpawnIdle_Unsupported(t *testing.T) {
	host := tasktest.MicrotaskOnly{Host: tasktest.New()}

	h, err := task.SpawnIdle(host, func() int { return 7 })
	require.ErrorIs(t, err, task.ErrUnsupported)
	require.Nil(t, h)
}

func TestSpawnIdle_AfterTeardown(t *testing.T) {
	host := tasktest.New()
	host.Terminate()

	h, err := task.SpawnIdle(host, func() int { return 7 })
	require.NoError(t, err)
	require.Zero(t, host.RunIdle())
	require.False(t, h.Ready())
}

func TestSpawnPriority(t *testing.T) {
	host := tasktest.New()

	high, err := task.SpawnPriority(host, task.PriorityHigh, func() int { return 1 })
	require.NoError(t, err)
	low, err := task.SpawnPriority(host, task.PriorityLow, func() int { return 2 })
	require.NoError(t, err)

	host.RunMicrotasks()
	require.True(t, high.Ready())
	require.False(t, low.Ready())

	host.RunIdle()
	v, err := low.Poll()
	require.NoError(t, err)
	require.Equal(t, 2, v)

	_, err = task.SpawnPriority(host, task.Priority(42), func() int { return 3 })
	require.EqualError(t, err, "task: invalid priority: Priority(42)")

	_, err = task.SpawnPriority(tasktest.MicrotaskOnly{Host: host}, task.PriorityLow, func() int { return 4 })
	require.ErrorIs(t, err, task.ErrUnsupported)
}

func TestGo_DeliversOnHost(t *testing.T) {
	host := tasktest.New()

	release := make(chan struct{})
	h := task.Go(host, func() int {
		<-release
		return 5
	})

	require.Zero(t, host.RunMicrotasks())
	require.False(t, h.Ready())
	close(release)

	require.Eventually(t, func() bool { return host.Pending().Microtasks == 1 }, 2*time.Second, time.Millisecond)
	require.False(t, h.Ready())

	host.RunMicrotasks()
	v, err := h.Poll()
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestGo_Panic(t *testing.T) {
	host := tasktest.New()
	h := task.Go(host, func() int { panic("boom") })

	require.Eventually(t, func() bool { return host.Pending().Microtasks == 1 }, 2*time.Second, time.Millisecond)

	r := recoverPanic(func() { host.RunMicrotasks() })
	var perr *task.PanicError
	require.ErrorAs(t, r.(error), &perr)
	require.Equal(t, "boom", perr.Value)
	require.False(t, h.Ready())
}

func TestGo_AwaitFromTask(t *testing.T) {
	host := tasktest.New()

	release := make(chan struct{})
	h := task.Spawn(host, func(co *task.Co) int {
		return task.Await(co, task.Go(co.Host(), func() int {
			<-release
			return 8
		})) * 2
	})

	host.RunMicrotasks()
	require.False(t, h.Ready())
	close(release)

	require.Eventually(t, func() bool { return host.Pending().Microtasks == 1 }, 2*time.Second, time.Millisecond)
	host.RunMicrotasks()

	v, err := h.Poll()
	require.NoError(t, err)
	require.Equal(t, 16, v)
}

// Package task schedules units of asynchronous work onto a single-threaded
// host event loop, and joins their results.
//
// # Architecture
//
// The package never owns an event loop. It consumes one through the [Host]
// capability interfaces, most importantly the microtask queue
// ([Host.SubmitMicrotask]) and, optionally, the idle queue
// ([IdleHost.SubmitIdle]), animation frames ([FrameHost]) and timers
// ([TimerHost]). The [hostloop] package provides a complete implementation,
// and [tasktest] a manually pumped one for deterministic tests.
//
// Work is submitted with one of the spawners:
//   - [Spawn] runs a cooperative task on the next microtask tick
//   - [SpawnIdle] runs a synchronous function when the host is idle
//   - [SpawnPriority] picks between the two using a [Priority] tag
//   - [Go] runs blocking work on its own goroutine
//
// Each spawner returns a [JoinHandle] immediately. The handle wraps the
// consuming end of a one-value Result Channel ([NewChannel]), the producing
// end of which is owned by the scheduled work.
//
// # Execution Model
//
// Spawned tasks are cooperative. At most one of the host thread and the
// spawned tasks of a host executes at any time: a task runs on the host's
// microtask tick, with the host thread blocked, until it either returns or
// suspends via [Await], [Co.Yield], [Sleep] or [AwaitTimeout]. A suspended
// task is resumed, again on a microtask tick, once whatever it waits for is
// ready.
//
// A spawned task never runs inline within the call to [Spawn], even if it
// would return immediately.
//
// # Never-Resolving Handles
//
// There is no cancellation. If the host tears down before a task completes,
// or never reaches an idle moment, the paired handle simply never resolves.
// Bound waits with a context ([JoinHandle.Wait]) or a timer
// ([AwaitTimeout]).
//
// # Usage
//
//	loop, err := hostloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(ctx)
//
//	h := task.Spawn(loop, func(co *task.Co) int {
//	    co.Yield()
//	    return 12
//	})
//
//	v, err := h.Wait(ctx) // 12
//
// [hostloop]: https://pkg.go.dev/github.com/Maurimura7/localghost/hostloop
// [tasktest]: https://pkg.go.dev/github.com/Maurimura7/localghost/task/tasktest
package task

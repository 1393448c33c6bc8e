// Package hostloop implements a single-threaded host event loop, modelled on
// the browser event loop, providing every capability consumed by the task
// package: microtasks, macrotasks, idle callbacks, animation frames, and
// timers.
//
// # Architecture
//
// A [Loop] runs on the goroutine that calls [Loop.Run]. Work is submitted
// from any goroutine, into mutex-guarded [ChunkedIngress] queues, and the
// loop is woken via a deduplicated signal. Lifecycle transitions use the
// lock-free [FastState] state machine.
//
// Each tick runs the following phases:
//
//  1. Timers whose deadline has passed, in deadline order.
//  2. Macrotasks, up to the tick budget ([WithTickBudget]).
//  3. A microtask checkpoint, up to the microtask budget.
//  4. Idle callbacks whose timeout elapsed ([WithIdleTimeout]).
//  5. An animation frame, if callbacks are pending and the frame interval
//     has elapsed ([WithFrameInterval]).
//  6. An idle period, if nothing else is ready ([WithIdleBudget]).
//
// With [WithStrictMicrotaskOrdering], a microtask checkpoint also follows
// every macrotask and timer callback. Each frame, and each idle callback,
// is always followed by a checkpoint.
//
// # Termination
//
// [Loop.Shutdown] drains macrotasks and microtasks, then terminates.
// [Loop.Close] terminates without draining. Either way, pending timers,
// frames and idle callbacks never run, and [Loop.Done] is closed once the
// loop has terminated.
//
// # Panics
//
// Panics in callbacks are recovered, counted (see [Loop.Stats] and
// [Metrics]), and logged, rate limited per category. The loop keeps running.
package hostloop

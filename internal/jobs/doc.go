// Package jobs runs decode and encode work off the editor goroutine.
//
// A Runner starts each submitted Task in its own goroutine (bounded by a
// concurrency limit) and delivers every outcome, success or failure, on a
// single result channel. The editor goroutine reads that channel and calls
// Accept before applying a result: results that were cancelled, superseded by
// a newer task with the same key, or issued before a CancelAll are rejected
// there.
//
//	tok, _ := runner.Submit(ctx, "import hero.aseprite", "hero.aseprite", task)
//	...
//	for res := range runner.Results() {
//	    if !runner.Accept(res) {
//	        continue
//	    }
//	    apply(res.Value)
//	}
//
// Tasks that exceed the runner timeout or whose context is cancelled report
// an error wrapping ErrCancelled.
package jobs

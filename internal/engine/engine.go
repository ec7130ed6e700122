package engine

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/depresolv"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// completion is one object's pipeline result, delivered back to the
// control thread (spec §5: "workers return completed objects via the
// pool's result channel/future; they never touch the resolver").
type completion struct {
	obj *core.BackupObject
	err error
}

// RunTask drives a single BackupTask run to completion: open, schedule
// every object against the resolver with a bounded worker pool, then
// rotate on success or rollback on failure, then close unconditionally
// (spec §4.3, §4.7).
func RunTask(ctx *core.GlobalContext, bb core.Backend, r *depresolv.DepResolv) error {
	if err := bb.Open(ctx); err != nil {
		return err
	}

	runErr := runLoop(ctx, bb, r)

	var lifecycleErr error
	if runErr != nil {
		lifecycleErr = bb.Rollback(ctx)
	} else {
		lifecycleErr = bb.Rotate(ctx)
	}
	closeErr := bb.Close(ctx)

	if runErr != nil {
		return runErr
	}
	if lifecycleErr != nil {
		return lifecycleErr
	}
	return closeErr
}

// runLoop implements the engine loop of spec §4.7: a first-completed-drain
// schedule over a bounded worker pool, sized by ctx.NBWorkers (or
// unbounded when ctx.Unbounded).
func runLoop(ctx *core.GlobalContext, bb core.Backend, r *depresolv.DepResolv) error {
	var sem *semaphore.Weighted
	if !ctx.Unbounded {
		sem = semaphore.NewWeighted(int64(ctx.NBWorkers))
	}

	results := make(chan completion)
	inFlight := 0

	submit := func(obj *core.BackupObject) {
		inFlight++
		obj.BBCtx = bb
		go func() {
			if sem != nil {
				if err := sem.Acquire(ctx.Context(), 1); err != nil {
					results <- completion{obj: obj, err: err}
					return
				}
				defer sem.Release(1)
			}
			err := runObject(ctx, bb, obj)
			results <- completion{obj: obj, err: err}
		}()
	}

	for _, obj := range r.Drain() {
		submit(obj)
	}

	// Keep reaping until the resolver is done AND nothing is still running,
	// so a failure among the last in-flight objects still fails the run.
	for !r.Done() || inFlight > 0 {
		if inFlight == 0 && len(r.AvailQ) == 0 {
			return fmt.Errorf("%w: resolver has unresolved dependencies with no work in flight", palhmerr.ErrDepMalformed)
		}

		c := <-results
		inFlight--
		if c.err != nil {
			// Drain remaining in-flight completions so we never leak
			// goroutines blocked writing to results, then surface the
			// first failure (spec §7: worker-observed failures abort
			// the task).
			for inFlight > 0 {
				<-results
				inFlight--
			}
			return c.err
		}
		r.MarkFulfilled(c.obj)

		for _, obj := range r.Drain() {
			submit(obj)
		}
	}

	return nil
}

// runObject runs one BackupObject's full pipeline (spec §4.7): the sink
// is obtained from the backend when the worker starts the object, then
// every stage is launched chained by pipes.
func runObject(ctx *core.GlobalContext, bb core.Backend, obj *core.BackupObject) error {
	sink, err := bb.Sink(ctx, obj)
	if err != nil {
		return err
	}
	return RunPipeline(ctx, obj.Pipeline, sink)
}

package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/libeval/compiler"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("compiler worker stopped")

// job is one closure queued for the compiler goroutine. reply is buffered
// so the goroutine never blocks on a caller that gave up.
type job struct {
	fn    func(*compiler.Compiler) any
	reply chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// CompilerWorker owns a Compiler and runs every closure against it on a
// single goroutine. A Compiler keeps per-compile state, so LSP handlers,
// which run concurrently, must not touch it directly.
type CompilerWorker struct {
	c    *compiler.Compiler
	jobs chan job

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewCompilerWorker starts a worker goroutine for c.
func NewCompilerWorker(c *compiler.Compiler) *CompilerWorker {
	w := &CompilerWorker{
		c:       c,
		jobs:    make(chan job, 64),
		stopped: make(chan struct{}),
	}
	go w.serve()
	return w
}

func (w *CompilerWorker) serve() {
	for {
		select {
		case <-w.stopped:
			return
		case j := <-w.jobs:
			value, err := w.call(j.fn)
			j.reply <- jobResult{value: value, err: err}
		}
	}
}

// call runs fn against the compiler. A panic becomes the returned error.
func (w *CompilerWorker) call(fn func(*compiler.Compiler) any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn(w.c), nil
}

// Do runs fn on the worker goroutine and waits for its result.
func (w *CompilerWorker) Do(fn func(*compiler.Compiler) any) (any, error) {
	select {
	case <-w.stopped:
		return nil, ErrWorkerStopped
	default:
	}

	j := job{fn: fn, reply: make(chan jobResult, 1)}
	select {
	case w.jobs <- j:
	case <-w.stopped:
		return nil, ErrWorkerStopped
	}

	select {
	case r := <-j.reply:
		return r.value, r.err
	case <-w.stopped:
		return nil, ErrWorkerStopped
	}
}

// Stop ends the worker goroutine. Calling Stop more than once is safe;
// clients may send shutdown repeatedly.
func (w *CompilerWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
	})
}

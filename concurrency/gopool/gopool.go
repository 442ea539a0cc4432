/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gopool provides a bounded worker pool for fanning out short,
// CPU-bound bursts of work across a fixed number of background
// goroutines, plus RunFleet, the worker-id fan-out shape the bitalloc
// stress tests and fleet-dispatch benchmark drive their workers with.
package gopool

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Option configures a GoPool.
type Option struct {
	// MaxIdleWorkers is the max idle workers keeping in pool for waiting tasks.
	MaxIdleWorkers int

	// TaskChanBuffer is the size of task queue length.
	// if it's full, we will fall back to use `go` directly without using pool.
	// normally, the queue length should be small,
	// coz we will create new workers to pick tasks if necessary.
	TaskChanBuffer int
}

// DefaultOption returns the default values of Option.
func DefaultOption() *Option {
	return &Option{
		MaxIdleWorkers: 1000,
		TaskChanBuffer: 1000,
	}
}

type task struct {
	ctx context.Context
	f   func()
}

// GoPool represents a simple worker pool which manages goroutines for background tasks.
type GoPool struct {
	name string

	workers int32
	maxIdle int32

	tasks chan task

	createWorker func()
}

// NewGoPool create a new instance for goroutine worker
func NewGoPool(name string, o *Option) *GoPool {
	if o == nil {
		o = DefaultOption()
	}
	p := &GoPool{
		name:    name,
		tasks:   make(chan task, o.TaskChanBuffer),
		maxIdle: int32(o.MaxIdleWorkers),
	}

	// fix: func literal escapes to heap
	p.createWorker = func() {
		p.runWorker()
	}
	return p
}

// Go runs the given func in background
func (p *GoPool) Go(f func()) {
	p.GoCtx(context.Background(), f)
}

// GoCtx runs the given func in background with ctx attached to the task.
// A recovered panic is logged with the pool name, the panic value and the
// stack; ctx itself is not logged.
func (p *GoPool) GoCtx(ctx context.Context, f func()) {
	select {
	case p.tasks <- task{ctx: ctx, f: f}:
	default:
		// full? fall back to use go directly
		go p.runTask(ctx, f)
		return
	}
	// luckily ... it's true when there're many workers.
	if len(p.tasks) == 0 {
		return
	}
	// all worker is busy, create a new one
	go p.createWorker()
}

// RunFleet runs n workers through the pool concurrently, each invoking fn
// with its own 1-based worker id, and blocks until every worker has
// returned. This is the fan-out shape the bitalloc stress tests and
// BenchmarkFleetDispatch drive their workers with: one goroutine per
// worker id, no shared state besides what fn closes over.
func (p *GoPool) RunFleet(n int, fn func(workerID int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for id := 1; id <= n; id++ {
		id := id
		p.Go(func() {
			defer wg.Done()
			fn(id)
		})
	}
	wg.Wait()
}

func (p *GoPool) runTask(ctx context.Context, f func()) {
	defer func(p *GoPool, ctx context.Context) {
		if r := recover(); r != nil {
			log.Printf("GOPOOL: panic in pool: %s: %v: %s", p.name, r, debug.Stack())
		}
	}(p, ctx)
	f()
}

func (p *GoPool) CurrentWorkers() int {
	return int(atomic.LoadInt32(&p.workers))
}

func (p *GoPool) runWorker() {
	id := atomic.AddInt32(&p.workers, 1)
	defer atomic.AddInt32(&p.workers, -1)

	if id > p.maxIdle {
		// drain task chan and exit without waiting
		for {
			select {
			case t := <-p.tasks:
				p.runTask(t.ctx, t.f)
			default:
				return
			}
		}
	}

	for t := range p.tasks {
		p.runTask(t.ctx, t.f)
	}
}

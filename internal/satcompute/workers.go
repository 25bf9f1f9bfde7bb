// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import (
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// rowBand is the number of rows a single parallel task covers. Bands
	// keep per-task overhead low while leaving enough tasks to steal.
	rowBand = 32

	// parallelMinPixels is the plane size below which forRows runs the
	// body inline. Small planes fit in cache and lose more to scheduling
	// than they gain from extra cores.
	parallelMinPixels = 1 << 15
)

var (
	sharedOnce sync.Once
	shared     *workerPool
)

// sharedPool returns the process-wide pool used by the row mirrors. It is
// created on first use and never stopped.
func sharedPool() *workerPool {
	sharedOnce.Do(func() {
		shared = newWorkerPool(0)
	})
	return shared
}

// forRows splits the rows of a width x height plane into bands and runs
// body over each band, in parallel when the plane is large enough. body
// must confine its writes to its own rows and must not call forRows.
func forRows(width, height int, body func(y0, y1 int)) {
	if width*height < parallelMinPixels || height <= rowBand {
		body(0, height)
		return
	}

	tasks := make([]func(), 0, (height+rowBand-1)/rowBand)
	for y := 0; y < height; y += rowBand {
		y0, y1 := y, y+rowBand
		if y1 > height {
			y1 = height
		}
		tasks = append(tasks, func() { body(y0, y1) })
	}
	sharedPool().run(tasks)
}

// workerPool runs closures on a fixed set of goroutines. Each worker owns
// a queue and steals from the others when its own runs dry, so uneven
// bands (border rows clip their windows and cost less) do not leave cores
// idle. run and stop must not race; the row mirrors only ever use the
// shared pool, which is never stopped.
type workerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// newWorkerPool starts a pool with the given number of workers.
// Zero or negative means GOMAXPROCS.
func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &workerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case task := <-own:
			if task != nil {
				task()
			}
		default:
			if task := p.steal(id); task != nil {
				task()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case task := <-own:
				if task != nil {
					task()
				}
			}
		}
	}
}

// drain runs whatever is still queued so a stop never drops accepted work.
func (p *workerPool) drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			if task != nil {
				task()
			}
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *workerPool) steal(id int) func() {
	for i := range p.queues {
		if i == id {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// run distributes tasks round-robin across the workers and waits for all
// of them to finish. A stopped pool runs the tasks inline instead of
// dropping them.
func (p *workerPool) run(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if !p.running.Load() {
		for _, task := range tasks {
			task()
		}
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(tasks))

	for i, task := range tasks {
		task := task
		wrapped := func() {
			defer pending.Done()
			task()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			// Stopped mid-submit: run inline so no band is dropped.
			wrapped()
		}
	}

	pending.Wait()
}

// stop shuts the pool down after finishing queued work. Safe to call
// more than once.
func (p *workerPool) stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

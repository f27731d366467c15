package server

import (
	"sync"
	"time"
)

type dispatchJob struct {
	conn *Conn
	now  time.Time
	done *sync.WaitGroup
}

// Dispatcher runs connection processing turns on a fixed pool of workers.
// One connection is never processed by two workers at once; different
// connections proceed in parallel.
type Dispatcher struct {
	workers int
	jobs    chan dispatchJob
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
}

func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		workers: workers,
		jobs:    make(chan dispatchJob, workers*4),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		job.conn.process(job.now)
		job.done.Done()
	}
}

// Run processes every connection once and returns when all turns are done.
// Before Start it runs the turns inline.
func (d *Dispatcher) Run(conns []*Conn, now time.Time) {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if !started {
		for _, c := range conns {
			c.process(now)
		}
		return
	}

	var done sync.WaitGroup
	done.Add(len(conns))
	for _, c := range conns {
		d.jobs <- dispatchJob{conn: c, now: now, done: &done}
	}
	done.Wait()
}

// Stop waits for the workers to exit. Run must not be called after it.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()
	close(d.jobs)
	d.wg.Wait()
}

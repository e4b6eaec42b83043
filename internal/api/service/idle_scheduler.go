package service

import (
	"sync"
	"time"
)

const DefaultSaveDelay = 800 * time.Millisecond

type idleJob struct {
	seq uint64
	fn  func()
}

// IdleScheduler coalesces bursts of work into a single deferred run.
//
// At most one job is pending at a time: Schedule replaces the pending job instead of
// queueing it. When the delay elapses the job is handed to a single background worker
// (the idle slot), off the mutation path. A job superseded by a newer one never runs
// after it.
type IdleScheduler struct {
	delay time.Duration

	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	armed   *idleJob
	slot    chan idleJob
	quit    chan struct{}
	stopped bool

	runMu   sync.Mutex
	lastRun uint64
}

func NewIdleScheduler(delay time.Duration) *IdleScheduler {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	slf := &IdleScheduler{
		delay: delay,
		slot:  make(chan idleJob, 1),
		quit:  make(chan struct{}),
	}
	go slf.worker()
	return slf
}

// Schedule cancels the pending job, if any, and arms fn to run after the delay.
func (slf *IdleScheduler) Schedule(fn func()) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	if slf.stopped {
		return
	}
	if slf.timer != nil {
		slf.timer.Stop()
	}
	slf.seq++
	job := idleJob{seq: slf.seq, fn: fn}
	slf.armed = &job
	slf.timer = time.AfterFunc(slf.delay, func() { slf.fire(job.seq) })
}

func (slf *IdleScheduler) fire(seq uint64) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	// a newer Schedule or a Flush got here first
	if slf.stopped || slf.armed == nil || slf.armed.seq != seq {
		return
	}
	job := *slf.armed
	slf.armed = nil
	slf.timer = nil
	slf.drainSlot()
	slf.slot <- job
}

// Pending reports whether a job is armed or waiting for the idle slot.
func (slf *IdleScheduler) Pending() bool {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return slf.armed != nil || len(slf.slot) > 0
}

// Flush runs the most recent pending job right away, on the caller's goroutine.
func (slf *IdleScheduler) Flush() {
	slf.mu.Lock()
	var job *idleJob
	select {
	case queued := <-slf.slot:
		job = &queued
	default:
	}
	if slf.armed != nil {
		if slf.timer != nil {
			slf.timer.Stop()
			slf.timer = nil
		}
		job = slf.armed
		slf.armed = nil
	}
	slf.mu.Unlock()

	if job != nil {
		slf.run(*job)
	}
}

// Stop discards pending work and terminates the worker. Schedule becomes a no-op.
func (slf *IdleScheduler) Stop() {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	if slf.stopped {
		return
	}
	slf.stopped = true
	if slf.timer != nil {
		slf.timer.Stop()
		slf.timer = nil
	}
	slf.armed = nil
	slf.drainSlot()
	close(slf.quit)
}

func (slf *IdleScheduler) drainSlot() {
	select {
	case <-slf.slot:
	default:
	}
}

func (slf *IdleScheduler) worker() {
	for {
		select {
		case <-slf.quit:
			return
		case job := <-slf.slot:
			slf.run(job)
		}
	}
}

func (slf *IdleScheduler) run(job idleJob) {
	slf.runMu.Lock()
	defer slf.runMu.Unlock()

	if job.seq <= slf.lastRun {
		return
	}
	slf.lastRun = job.seq
	job.fn()
}

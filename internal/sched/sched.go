// Package sched implements HAKit's single-threaded cooperative event
// loop: I/O-ready sources, timeouts, child-process reaping and quit
// handlers, grounded on os/sys.c's poll(2)-based scheduler.
//
// Domain state (the dataflow graph, the endpoint registry) is only
// ever mutated from the goroutine calling Loop.Run; no internal
// locking is done there, matching the original's single-threaded
// contract. I/O, however, is driven the idiomatic Go way (one
// goroutine per blocking TCP/UDP read), so those goroutines hand work
// back to the loop goroutine with Go/Call instead of touching domain
// state directly — see the self-pipe wake source below.
package sched

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Tag identifies a registered source so it can later be removed.
type Tag int

// IOFunc handles a ready file descriptor. Returning false removes the
// source from the loop, mirroring sys_io_func_t's rearm-by-return
// convention.
type IOFunc func(fd int, events int16) bool

// TimeoutFunc fires once a timer expires. Returning true rearms the
// timer for the same delay, matching sys_func_t's reuse as a timeout
// callback in sys.c.
type TimeoutFunc func() bool

// ChildFunc is invoked once a watched child process exits.
type ChildFunc func(pid int, status int)

type sourceKind int

const (
	kindIO sourceKind = iota
	kindTimeout
	kindChild
	kindQuit
	kindRemoved
)

type source struct {
	kind sourceKind
	tag  Tag

	fd     int
	mask   int16
	ioFn   IOFunc

	due      time.Time
	delay    time.Duration
	timeoutFn TimeoutFunc

	pid     int
	childFn ChildFunc

	quitFn func()
}

// Loop is a single-threaded cooperative event loop.
type Loop struct {
	sources []*source
	nextTag Tag
	quit    bool

	sigchld chan os.Signal

	wakeR, wakeW int
	queueMu      sync.Mutex
	queue        []func()
}

// NewLoop constructs an empty loop and installs SIGCHLD handling so
// watched children can be reaped without blocking. It also opens a
// self-pipe wake source so Go/Call can hand work to the loop goroutine
// from any other goroutine without the loop busy-polling for it.
func NewLoop() *Loop {
	l := &Loop{sigchld: make(chan os.Signal, 8), wakeR: -1, wakeW: -1}
	signal.Notify(l.sigchld, syscall.SIGCHLD)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err == nil {
		_ = unix.SetNonblock(fds[0], true)
		_ = unix.SetNonblock(fds[1], true)
		l.wakeR, l.wakeW = fds[0], fds[1]
		l.AddIO(l.wakeR, unix.POLLIN, l.drainWake)
	}
	return l
}

// Go enqueues fn to run on the loop goroutine during its next
// iteration of Run, waking it immediately if it is blocked in poll(2).
// fn must not block or call Call/Go and wait on its own completion.
func (l *Loop) Go(fn func()) {
	l.queueMu.Lock()
	l.queue = append(l.queue, fn)
	l.queueMu.Unlock()
	l.wake()
}

// Call enqueues fn to run on the loop goroutine and blocks the caller
// until it has finished. This is how per-connection I/O goroutines
// (one per TCP accept, one for UDP, one per outbound Node) submit
// mutations of the dataflow graph and endpoint registry without
// touching them directly, keeping every such mutation confined to the
// single goroutine running Loop.Run.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	l.Go(func() {
		fn()
		close(done)
	})
	<-done
}

func (l *Loop) drainWake(fd int, events int16) bool {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			break
		}
	}

	l.queueMu.Lock()
	pending := l.queue
	l.queue = nil
	l.queueMu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return true
}

func (l *Loop) add(s *source) Tag {
	for i, existing := range l.sources {
		if existing.kind == kindRemoved {
			s.tag = existing.tag
			l.sources[i] = s
			return s.tag
		}
	}
	l.nextTag++
	s.tag = l.nextTag
	l.sources = append(l.sources, s)
	return s.tag
}

// AddIO watches fd for the given poll mask (unix.POLLIN etc.) and
// calls fn when it becomes ready.
func (l *Loop) AddIO(fd int, mask int16, fn IOFunc) Tag {
	return l.add(&source{kind: kindIO, fd: fd, mask: mask, ioFn: fn})
}

// AddTimeout arms a one-shot timer; fn may rearm itself by returning true.
func (l *Loop) AddTimeout(delay time.Duration, fn TimeoutFunc) Tag {
	return l.add(&source{kind: kindTimeout, delay: delay, due: time.Now().Add(delay), timeoutFn: fn})
}

// AddChild watches pid; fn fires once with its exit status.
func (l *Loop) AddChild(pid int, fn ChildFunc) Tag {
	return l.add(&source{kind: kindChild, pid: pid, childFn: fn})
}

// AddQuitHandler registers fn to run, in registration order, when Quit is called.
func (l *Loop) AddQuitHandler(fn func()) Tag {
	return l.add(&source{kind: kindQuit, quitFn: fn})
}

// Remove marks a source for removal. The slot is reused by a future
// Add call but is not compacted out of the table immediately,
// matching sys_remove's lazy cleanup applied at the next loop
// boundary.
func (l *Loop) Remove(tag Tag) {
	for _, s := range l.sources {
		if s.tag == tag {
			s.kind = kindRemoved
		}
	}
}

// RemoveFD removes every IO source watching fd.
func (l *Loop) RemoveFD(fd int) {
	for _, s := range l.sources {
		if s.kind == kindIO && s.fd == fd {
			s.kind = kindRemoved
		}
	}
}

// Quit requests loop termination: Run will invoke every quit handler,
// in registration order, and return. Safe to call from any goroutine;
// it wakes a blocked poll(2) immediately rather than waiting for the
// next naturally-occurring event.
func (l *Loop) Quit() {
	l.quit = true
	l.wake()
}

func (l *Loop) wake() {
	if l.wakeW >= 0 {
		_, _ = unix.Write(l.wakeW, []byte{0})
	}
}

// Run drives the loop until ctx is cancelled, Quit is called, or a
// poll(2) error other than EINTR/EAGAIN occurs.
func (l *Loop) Run(ctx context.Context) error {
	stopForward := make(chan struct{})
	defer close(stopForward)
	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-stopForward:
		}
	}()

	for {
		if ctx.Err() != nil {
			l.runQuitHandlers()
			return nil
		}
		if l.quit {
			l.runQuitHandlers()
			return nil
		}

		timeoutMs := l.nextTimeoutMillis()
		fds, fdSources := l.pollFDs()

		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return err
		}

		l.fireTimeouts()

		if n > 0 {
			for i, pfd := range fds {
				if pfd.Revents != 0 {
					src := fdSources[i]
					if !src.ioFn(src.fd, pfd.Revents) {
						src.kind = kindRemoved
					}
				}
			}
		}

		l.reapChildren()
	}
}

func (l *Loop) nextTimeoutMillis() int {
	var min time.Duration = -1
	now := time.Now()
	for _, s := range l.sources {
		if s.kind != kindTimeout {
			continue
		}
		d := s.due.Sub(now)
		if d < 0 {
			d = 0
		}
		if min < 0 || d < min {
			min = d
		}
	}
	if min < 0 {
		return -1
	}
	return int(min.Milliseconds())
}

func (l *Loop) pollFDs() ([]unix.PollFd, []*source) {
	var fds []unix.PollFd
	var srcs []*source
	for _, s := range l.sources {
		if s.kind == kindIO {
			fds = append(fds, unix.PollFd{Fd: int32(s.fd), Events: s.mask})
			srcs = append(srcs, s)
		}
	}
	return fds, srcs
}

func (l *Loop) fireTimeouts() {
	now := time.Now()
	// Fire earliest-due first, matching sys_run's timers-before-poll ordering intent.
	due := make([]*source, 0, len(l.sources))
	for _, s := range l.sources {
		if s.kind == kindTimeout && !s.due.After(now) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })

	for _, s := range due {
		if s.kind == kindRemoved {
			continue
		}
		if s.timeoutFn() {
			s.due = time.Now().Add(s.delay)
		} else {
			s.kind = kindRemoved
		}
	}
}

func (l *Loop) reapChildren() {
	select {
	case <-l.sigchld:
	default:
		return
	}

	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		for _, s := range l.sources {
			if s.kind == kindChild && s.pid == pid {
				s.kind = kindRemoved
				s.childFn(pid, ws.ExitStatus())
			}
		}
	}
}

func (l *Loop) runQuitHandlers() {
	for _, s := range l.sources {
		if s.kind == kindQuit {
			s.quitFn()
		}
	}
}

// ClassifyErrno reports whether err represents a retryable transient
// condition (EAGAIN/EINTR) versus a fatal I/O error, matching the
// error-kind table of the scheduler's error handling design.
func ClassifyErrno(err error) (retryable bool) {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR, syscall.EWOULDBLOCK:
			return true
		}
	}
	return false
}

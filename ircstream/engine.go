// Copyright (c) 2024 AfterNET development team
// released under the MIT license

// Package ircstream turns an incoming IRC byte stream into an append-only
// message log that concurrent callers can wait on. Each logical connection
// owns one Engine; a single producer feeds it bytes while any number of
// callers block in WaitFor* until a matching message arrives. A log entry
// is delivered to at most one successful wait.
package ircstream

import (
	"bytes"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/goshuirc/eventmgr"
	"github.com/sirupsen/logrus"

	"github.com/afternet/irctest/ircmsg"
)

var (
	// ErrTimeout indicates that no matching message arrived before the
	// deadline. This is the routine failure mode of a wait, not a defect.
	ErrTimeout = errors.New("ircstream: no matching message before deadline")

	// ErrClosed indicates an operation on a closed connection.
	ErrClosed = errors.New("ircstream: connection is closed")
)

// LogEntry is one parsed line in arrival order. Indices increase
// monotonically and are never reused; an entry is never altered or
// removed once appended, only marked consumed.
type LogEntry struct {
	Index   uint64
	Message ircmsg.Message
}

// waiter is a pending wait: a predicate over log entries plus a buffered
// channel its match is delivered on.
type waiter struct {
	pred func(*ircmsg.Message) bool
	ch   chan ircmsg.Message
}

// Engine owns the line framer, the message log, the consumption marks,
// the pending waiters, and the batch tracker for one stream.
type Engine struct {
	logger logrus.FieldLogger

	mu       sync.Mutex
	partial  []byte
	entries  []LogEntry
	consumed map[uint64]struct{}
	waiters  []*waiter

	openBatches  map[string]*Batch
	completed    []*Batch
	batchWaiters []*batchWaiter

	handlerMu sync.Mutex
	handlers  eventmgr.EventManager
}

// NewEngine returns an Engine ready to be fed. A nil logger falls back to
// the logrus standard logger.
func NewEngine(logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		logger:      logger,
		consumed:    make(map[uint64]struct{}),
		openBatches: make(map[string]*Batch),
	}
}

// Feed appends bytes from the transport, splits off every complete line,
// and for each one: parses it, appends a log entry, updates batch state,
// and offers the entry to pending waiters in registration order. The
// first waiter whose predicate matches claims the entry and is woken;
// the rest stay pending. Feed never blocks on waiter resolution.
func (e *Engine) Feed(data []byte) {
	e.mu.Lock()
	e.partial = append(e.partial, data...)

	var dispatch []ircmsg.Message
	for {
		idx := bytes.IndexByte(e.partial, '\n')
		if idx == -1 {
			break
		}
		line := string(e.partial[:idx])
		e.partial = e.partial[idx+1:]

		msg := ircmsg.ParseLine(line)
		entry := LogEntry{Index: uint64(len(e.entries)), Message: msg}
		e.entries = append(e.entries, entry)
		e.observeBatch(msg)
		e.offerToWaiters(&entry)
		dispatch = append(dispatch, msg)
	}
	e.mu.Unlock()

	// handler dispatch runs outside the engine lock so that handlers may
	// call back into the engine
	for _, msg := range dispatch {
		e.logger.WithField("dir", "in").Debug(msg.Raw)
		if msg.Command != "" {
			e.dispatch(msg)
		}
	}
}

// offerToWaiters resolves at most one pending waiter against a freshly
// appended entry. Callers must hold e.mu.
func (e *Engine) offerToWaiters(entry *LogEntry) {
	for i, w := range e.waiters {
		if !w.pred(&entry.Message) {
			continue
		}
		e.consumed[entry.Index] = struct{}{}
		e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
		w.ch <- entry.Message
		return
	}
}

// WaitForMessage blocks until a message matching the predicate is
// available, then claims and returns it. The oldest unconsumed entry
// already in the log is preferred; otherwise the call suspends until the
// producer feeds a match or the timeout elapses. Each entry satisfies at
// most one wait, across both the message and raw-line flavors.
func (e *Engine) WaitForMessage(pred func(*ircmsg.Message) bool, timeout time.Duration) (ircmsg.Message, error) {
	msg, w, ok := e.claimOrRegister(pred)
	if ok {
		return msg, nil
	}
	return e.await(w, timeout)
}

// WaitForLine is WaitForMessage over the raw text of each line: it blocks
// until a line matching the regular expression arrives, claims it, and
// returns the raw line.
func (e *Engine) WaitForLine(pattern string, timeout time.Duration) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", err
	}
	msg, err := e.WaitForMessage(func(msg *ircmsg.Message) bool {
		return re.MatchString(msg.Raw)
	}, timeout)
	if err != nil {
		return "", err
	}
	return msg.Raw, nil
}

// claimOrRegister atomically scans the log for the oldest unconsumed
// match and, failing that, registers a waiter. The scan and the
// registration happen under one critical section with respect to Feed,
// so a match can never slip in between them unobserved.
func (e *Engine) claimOrRegister(pred func(*ircmsg.Message) bool) (ircmsg.Message, *waiter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.entries {
		entry := &e.entries[i]
		if _, taken := e.consumed[entry.Index]; taken {
			continue
		}
		if pred(&entry.Message) {
			e.consumed[entry.Index] = struct{}{}
			return entry.Message, nil, true
		}
	}

	w := &waiter{pred: pred, ch: make(chan ircmsg.Message, 1)}
	e.waiters = append(e.waiters, w)
	return ircmsg.Message{}, w, false
}

// await blocks on a registered waiter until resolution or timeout. On
// timeout the waiter is deregistered so it cannot claim a later entry;
// a resolution racing the timer still wins.
func (e *Engine) await(w *waiter, timeout time.Duration) (ircmsg.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-timer.C:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case msg := <-w.ch:
		// resolved between the timer firing and us taking the lock
		return msg, nil
	default:
	}
	for i, pending := range e.waiters {
		if pending == w {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			break
		}
	}
	return ircmsg.Message{}, ErrTimeout
}

// ClearConsumption marks every entry currently in the log as consumed,
// so that subsequent waits only observe entries fed from this point on.
// History is not deleted, only foreclosed from future matching.
func (e *Engine) ClearConsumption() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.entries {
		e.consumed[e.entries[i].Index] = struct{}{}
	}
}

// Len returns the number of entries in the log.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// History returns a snapshot of the log in arrival order.
func (e *Engine) History() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// HandleCommand attaches a handler to every message with the given
// command. Handlers run synchronously on the producer's Feed path, in
// priority order, and must not block. The parsed message is available in
// the info map under "message".
func (e *Engine) HandleCommand(command string, handler eventmgr.HandlerFn, priority int) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.handlers.Attach(normalizeCommand(command), handler, priority)
}

func (e *Engine) dispatch(msg ircmsg.Message) {
	e.handlerMu.Lock()
	handlers := e.handlers.Events[msg.Command]
	e.handlerMu.Unlock()

	info := eventmgr.NewInfoMap()
	info["message"] = msg
	handlers.Dispatch(msg.Command, info)
}

// Copyright (c) 2024 AfterNET development team
// released under the MIT license

package ircstream

import (
	"time"

	"github.com/afternet/irctest/ircmsg"
)

// Batch is an IRCv3 BATCH envelope: opened by "BATCH +id type params...",
// accumulating every message tagged with its id (including nested BATCH
// start and end lines) while open, and closed by "BATCH -id".
type Batch struct {
	ID   string
	Type string
	// Params holds any parameters after the batch type on the start line.
	Params []string
	// Messages are the accumulated messages in arrival order.
	Messages []ircmsg.Message
}

type batchWaiter struct {
	batchType string
	ch        chan *Batch
}

// observeBatch advances batch state for one parsed message. Callers must
// hold e.mu.
//
// A start for an id that is already open, or an end for an unknown id, is
// a benign wire anomaly and is ignored.
func (e *Engine) observeBatch(msg ircmsg.Message) {
	// anything tagged with an open batch id accumulates into that batch,
	// including nested BATCH start/end lines referencing a parent
	if parentID, ok := msg.Tags["batch"]; ok {
		if parent, open := e.openBatches[parentID]; open {
			parent.Messages = append(parent.Messages, msg)
		}
	}

	if msg.Command != "BATCH" || len(msg.Params) == 0 || len(msg.Params[0]) < 2 {
		return
	}
	ref := msg.Params[0]
	id := ref[1:]

	switch ref[0] {
	case '+':
		if _, open := e.openBatches[id]; open {
			e.logger.WithField("batch", id).Debug("ignoring duplicate batch start")
			return
		}
		batch := &Batch{ID: id}
		if len(msg.Params) > 1 {
			batch.Type = msg.Params[1]
			batch.Params = msg.Params[2:]
		}
		e.openBatches[id] = batch
	case '-':
		batch, open := e.openBatches[id]
		if !open {
			e.logger.WithField("batch", id).Debug("ignoring end of unknown batch")
			return
		}
		delete(e.openBatches, id)
		e.finishBatch(batch)
	}
}

// finishBatch hands a closed batch to the earliest waiter for its type,
// or appends it to the completed list. Callers must hold e.mu.
func (e *Engine) finishBatch(batch *Batch) {
	for i, w := range e.batchWaiters {
		if w.batchType != batch.Type {
			continue
		}
		e.batchWaiters = append(e.batchWaiters[:i], e.batchWaiters[i+1:]...)
		w.ch <- batch
		return
	}
	e.completed = append(e.completed, batch)
}

// WaitForBatch pops the oldest completed batch of the requested type, or
// blocks until one completes or the timeout elapses.
func (e *Engine) WaitForBatch(batchType string, timeout time.Duration) (*Batch, error) {
	e.mu.Lock()
	for i, batch := range e.completed {
		if batch.Type == batchType {
			e.completed = append(e.completed[:i], e.completed[i+1:]...)
			e.mu.Unlock()
			return batch, nil
		}
	}
	w := &batchWaiter{batchType: batchType, ch: make(chan *Batch, 1)}
	e.batchWaiters = append(e.batchWaiters, w)
	e.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case batch := <-w.ch:
		return batch, nil
	case <-timer.C:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case batch := <-w.ch:
		return batch, nil
	default:
	}
	for i, pending := range e.batchWaiters {
		if pending == w {
			e.batchWaiters = append(e.batchWaiters[:i], e.batchWaiters[i+1:]...)
			break
		}
	}
	return nil, ErrTimeout
}

// OpenBatches returns the ids of batches that have started but not yet
// ended.
func (e *Engine) OpenBatches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.openBatches))
	for id := range e.openBatches {
		ids = append(ids, id)
	}
	return ids
}

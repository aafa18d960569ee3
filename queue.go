package apmagent

import (
	"io/ioutil"
	"log"
	"sync"
	"time"
)

// Logger receives warnings about dropped events, encoding failures, and
// transport errors. It discards output by default; set it (or its output)
// to surface diagnostics.
var Logger = log.New(ioutil.Discard, "[apmagent] ", log.LstdFlags)

const queueCapacity = 10000

type queueEventType string

const (
	eventTransaction queueEventType = "transaction"
	eventSpan        queueEventType = "span"
	eventError       queueEventType = "error"
	eventClose       queueEventType = "close"
)

type queueItem struct {
	eventType queueEventType
	payload   interface{}
	flush     bool
}

// eventQueue is the bounded MPSC channel between producer flows and the
// single background worker. Producers only ever call offer, which never
// blocks.
type eventQueue struct {
	ch        chan queueItem
	closeOnce sync.Once
	closed    chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		ch:     make(chan queueItem, queueCapacity),
		closed: make(chan struct{}),
	}
}

// offer enqueues item without blocking. If the queue is full, the item is
// dropped and a warning logged.
func (q *eventQueue) offer(item queueItem) {
	select {
	case q.ch <- item:
	default:
		Logger.Printf("queue full, dropping %s event", item.eventType)
	}
}

// offerFlush enqueues a flush-only sentinel, dropped silently on a full
// queue since a later item will eventually trigger a flush anyway.
func (q *eventQueue) offerFlush() {
	select {
	case q.ch <- queueItem{flush: true}:
	default:
	}
}

// worker owns the gzip framing buffer and the sender for the lifetime of a
// Client. It runs on its own goroutine, started by Client.Start.
type worker struct {
	queue   *eventQueue
	sender  sender
	state   failureState
	meta    metadataRecord
	encoder *transportEncoding

	maxFlushTime  time.Duration // 0 means unbounded wait
	maxBufferSize int

	buf *gzipBuffer

	flushedMu sync.Mutex
	flushedCh chan struct{}

	done chan struct{}
}

// transportEncoding bundles the local-variable truncation limits handed to
// the worker. The worker stores them but does not apply them: payloads
// arrive already encoded, and encodeError applies these limits when the
// error is captured.
type transportEncoding struct {
	localVarMaxLength     int
	localVarListMaxLength int
}

type sender interface {
	Send(body []byte) error
}

func newWorker(q *eventQueue, s sender, meta metadataRecord, compressLevel int, maxFlushTime time.Duration, maxBufferSize int, enc *transportEncoding) (*worker, error) {
	buf, err := newGzipBuffer(compressLevel, meta)
	if err != nil {
		return nil, err
	}
	return &worker{
		queue:         q,
		sender:        s,
		meta:          meta,
		encoder:       enc,
		maxFlushTime:  maxFlushTime,
		maxBufferSize: maxBufferSize,
		buf:           buf,
		done:          make(chan struct{}),
	}, nil
}

// run is the worker's consume loop, implementing the queue-drain and flush
// logic: a receive deadline derived from max_flush_time, flush on timeout,
// explicit request, or buffer-size threshold, and graceful termination on a
// close item.
func (w *worker) run() {
	defer close(w.done)

	lastFlush := now()
	for {
		var timeout time.Duration
		if w.maxFlushTime > 0 {
			timeout = w.maxFlushTime - now().Sub(lastFlush)
			if timeout < 0 {
				timeout = 0
			}
		}

		var item queueItem
		var timedOut bool
		if w.maxFlushTime <= 0 {
			item = <-w.queue.ch
		} else {
			select {
			case item = <-w.queue.ch:
			case <-time.After(timeout):
				timedOut = true
			}
		}

		if timedOut {
			w.maybeFlush(true)
			lastFlush = now()
			continue
		}

		if item.eventType == eventClose {
			if w.buf.hasEvents() {
				w.flush()
			}
			w.signalFlushed()
			return
		}

		if item.payload != nil {
			if err := w.buf.writeLine(string(item.eventType), item.payload); err != nil {
				Logger.Printf("dropping unencodable %s event: %v", item.eventType, err)
			}
		}

		shouldFlush := item.flush || w.buf.size() > w.maxBufferSize
		if w.maybeFlush(shouldFlush) {
			lastFlush = now()
		}
	}
}

func (w *worker) maybeFlush(trigger bool) bool {
	if !trigger {
		return false
	}
	w.flush()
	return true
}

// flush gates on the failure state machine, then hands the compressed body
// to the sender and records the outcome. The `flushed` completion signal
// fires unconditionally at the end.
func (w *worker) flush() {
	defer w.signalFlushed()

	if !w.buf.hasEvents() {
		w.resetBuffer()
		return
	}
	if !w.state.shouldTry() {
		w.resetBuffer()
		return
	}

	body, err := w.buf.closeAndTake()
	w.resetBuffer()
	if err != nil {
		Logger.Printf("failed to close event batch: %v", err)
		return
	}

	if err := w.sender.Send(body); err != nil {
		Logger.Printf("failed to send event batch: %v", err)
		w.state.setFail()
		return
	}
	w.state.setSuccess()
}

func (w *worker) resetBuffer() {
	if err := w.buf.reset(w.meta); err != nil {
		Logger.Printf("failed to reset event batch: %v", err)
	}
}

func (w *worker) signalFlushed() {
	w.flushedMu.Lock()
	ch := w.flushedCh
	w.flushedCh = nil
	w.flushedMu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// waitForFlush arms a completion channel immediately before an expected
// flush-triggering enqueue, and returns it to the caller of Flush/Close.
func (w *worker) waitForFlush() <-chan struct{} {
	w.flushedMu.Lock()
	ch := make(chan struct{})
	w.flushedCh = ch
	w.flushedMu.Unlock()
	return ch
}

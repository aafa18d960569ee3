package apmagent

import (
	"fmt"
	"time"
)

// Client owns the event queue, the background worker, and the
// configuration under which both operate. Multiple clients may coexist in
// one process (chiefly for tests); DefaultClient is the conventional
// well-known instance most instrumentation should use.
type Client struct {
	opts ClientOptions

	queue  *eventQueue
	worker *worker

	sampler *sampler
	meta    metadataRecord

	classifier FrameClassifier

	started bool
}

// DefaultClient is the process-wide client returned by Init and used by the
// package-level capture functions.
var DefaultClient *Client

// Init builds the default client from opts and validates its configuration.
// It does not start the worker goroutine; call DefaultClient.Start for that.
// A second call to Init replaces DefaultClient after closing the previous
// one's worker.
func Init(opts ClientOptions) (*Client, error) {
	c, err := NewClient(opts)
	if DefaultClient != nil {
		DefaultClient.Close(opts.MaxFlushTime)
	}
	DefaultClient = c
	return c, err
}

// NewClient builds a standalone client. Configuration errors (most notably
// an invalid service_name) do not fail construction: per this module's
// error-handling policy, an invalid configuration disables sending and the
// client's public methods become no-ops, rather than panicking or
// returning an error to instrumentation call sites.
func NewClient(opts ClientOptions) (*Client, error) {
	opts.applyEnvDefaults()

	var configErr error
	disableSend := *opts.DisableSend
	if !validateServiceName(opts.ServiceName) {
		configErr = fmt.Errorf("apmagent: invalid service_name %q", opts.ServiceName)
		disableSend = true
	}
	if opts.ServerURL == "" || opts.TransportClass == "" {
		disableSend = true
	}

	c := &Client{
		opts:    opts,
		queue:   newEventQueue(),
		sampler: opts.Sampler,
		meta:    newMetadataRecord(opts.ServiceName, opts.Environment),
		classifier: FrameClassifier{
			Include: opts.IncludePaths,
			Exclude: opts.ExcludePaths,
		},
	}
	if c.sampler == nil {
		c.sampler = newSampler(time.Now().UnixNano())
	}

	var s sender
	if disableSend {
		s = discardSender{}
	} else {
		s = newHTTPSender(opts.ServerURL, opts.SecretToken, *opts.VerifyServerCert)
	}

	w, err := newWorker(c.queue, s, c.meta, opts.CompressLevel, opts.MaxFlushTime, opts.MaxBufferSize, &transportEncoding{
		localVarMaxLength:     opts.LocalVarMaxLength,
		localVarListMaxLength: opts.LocalVarListMaxLength,
	})
	if err != nil {
		return nil, err
	}
	c.worker = w

	return c, configErr
}

// Start launches the worker goroutine. It MUST NOT be called in a process
// that is about to fork; see AfterForkInChild.
func (c *Client) Start() {
	if c.started {
		return
	}
	c.started = true
	go c.worker.run()
}

// BeforeFork should be called immediately before the host process forks. It
// is a documentation marker: producers created before this point must not
// enqueue again until AfterForkInChild runs in the child.
func (c *Client) BeforeFork() {}

// AfterForkInChild starts a fresh worker for this client in a forked child
// process. The parent's worker goroutine does not exist in the child after
// fork, so a new one must be started explicitly.
func (c *Client) AfterForkInChild() {
	q := newEventQueue()
	w, err := newWorker(q, c.worker.sender, c.meta, c.opts.CompressLevel, c.opts.MaxFlushTime, c.opts.MaxBufferSize, c.worker.encoder)
	if err != nil {
		Logger.Printf("failed to create worker after fork: %v", err)
		return
	}
	c.queue = q
	c.worker = w
	c.started = false
	c.Start()
}

// beginTransaction starts a new root transaction and samples it; the
// package-level BeginTransaction binds the result to a context. If tp is
// non-nil the transaction continues that distributed trace instead of
// starting a new one.
func (c *Client) beginTransaction(name, transactionType string, tp *TraceParent) *Transaction {
	t := &Transaction{
		ID:       generateSpanID(),
		Name:     name,
		Type:     transactionType,
		Timestamp: now(),
		MaxSpans: c.opts.TransactionMaxSpans,
		spanFramesMinDuration: c.opts.SpanFramesMinDuration,
		client:   c,
		start:    now(),
	}
	if tp != nil {
		t.TraceID = tp.Trace
		t.ParentID = tp.Span
	} else {
		t.TraceID = generateTraceID()
	}
	t.Sampled = c.sampler.Float64() < c.opts.TransactionSampleRate
	t.collectFrames = func(skip int) []Frame { return captureFrames(skip+1, c.classifier) }
	return t
}

// matchesIgnorePattern reports whether name matches any configured
// transactions_ignore_patterns entry.
func (c *Client) matchesIgnorePattern(name string) bool {
	for _, pat := range c.opts.TransactionsIgnorePatterns {
		if pat.MatchString(name) {
			return true
		}
	}
	return false
}

// finishTransaction enqueues the transaction record and its completed spans
// once End has run. Unsampled transactions are still enqueued (without
// spans or context) unless they match an ignore pattern.
func (c *Client) finishTransaction(t *Transaction) {
	if c.matchesIgnorePattern(t.Name) {
		return
	}

	c.queue.offer(queueItem{eventType: eventTransaction, payload: encodeTransaction(t)})

	if !t.Sampled {
		return
	}
	for _, span := range t.Spans() {
		c.queue.offer(queueItem{eventType: eventSpan, payload: encodeSpan(t, span)})
	}
}

// captureError finalizes and enqueues an error event; errors are never
// buffered inside a transaction, so this is immediate regardless of
// whether txn has ended. It is the shared implementation behind the
// package-level CaptureError/CaptureMessage helpers in capture.go.
func (c *Client) captureError(e *ErrorEvent, txn *Transaction, skipFrames int) {
	if txn != nil {
		e.TransactionID = txn.ID
	}
	e.Timestamp = now()
	if e.Frames == nil {
		e.Frames = captureFrames(skipFrames+1, c.classifier)
	}
	encoded := encodeError(e, c.opts.CollectLocalVariables, c.opts.LocalVarMaxLength, c.opts.LocalVarListMaxLength)
	c.queue.offer(queueItem{eventType: eventError, payload: encoded})
}

// Flush enqueues a flush-only sentinel and blocks until the worker signals
// completion or timeout elapses, whichever comes first.
func (c *Client) Flush(timeout time.Duration) bool {
	ch := c.worker.waitForFlush()
	c.queue.offerFlush()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close enqueues the close sentinel, waits up to timeout for the worker to
// drain and terminate, and returns whether it did so cleanly.
func (c *Client) Close(timeout time.Duration) bool {
	ch := c.worker.waitForFlush()
	c.queue.offer(queueItem{eventType: eventClose})
	select {
	case <-ch:
	case <-time.After(timeout):
		return false
	}
	select {
	case <-c.worker.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

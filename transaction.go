package apmagent

import (
	"sync"
	"time"
)

// Transaction is a root timed operation representing one unit of work.
// Callers are expected to confine mutation to the goroutine that created
// the transaction, but a mutex guards the span stack/list because
// instrumentation commonly spins up helper goroutines (e.g. a buffered DB
// driver) that still want to attach a span to the same transaction.
type Transaction struct {
	ID       SpanID
	TraceID  TraceID
	ParentID SpanID // zero if this transaction started a new trace

	Name     string
	Type     string
	Result   string
	Sampled  bool
	Context  map[string]interface{}
	Tags     map[string]string

	Timestamp time.Time // wall clock
	Duration  time.Duration

	MaxSpans int

	mu            sync.Mutex
	start         time.Time // monotonic reference for span offsets
	spans         []*Span
	spanStack     []*Span
	spanCounter   int
	droppedSpans  int
	ignoreSubtree bool
	ended         bool

	spanFramesMinDuration time.Duration
	collectFrames         func(skip int) []Frame

	client *Client
}

// Spans returns the completed spans recorded for the transaction. Only
// meaningful after End (or, for inspection in tests, at any point — the
// returned slice is a copy taken at call time, though the *Span values it
// holds are shared with the transaction).
func (t *Transaction) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Span, len(t.spans))
	copy(out, t.spans)
	return out
}

// DroppedSpans returns the number of spans dropped due to the max-spans
// budget. Grouping spans created by child compression take an index from the
// same counter and so count against the budget, which means the result can
// exceed max(0, total_begun - max_spans) when compression occurred.
func (t *Transaction) DroppedSpans() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.droppedSpans
}

// BeginSpan starts a new span nested under the transaction's current span
// stack top (or the transaction root if the stack is empty).
func (t *Transaction) BeginSpan(name, spanType string, context map[string]interface{}, fingerprintVector []string, leaf bool) *Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ignoreSubtree {
		t.spanStack = append(t.spanStack, ignoredSpan)
		return nil
	}
	if leaf {
		t.ignoreSubtree = true
	}

	t.spanCounter++
	if t.MaxSpans > 0 && t.spanCounter > t.MaxSpans {
		t.droppedSpans++
		t.spanStack = append(t.spanStack, droppedSpan)
		return nil
	}

	span := &Span{
		Index:              t.spanCounter - 1,
		Name:               name,
		Type:               spanType,
		Start:              elapsed(t.start),
		Context:            context,
		Leaf:               leaf,
		contextFingerprint: fingerprintVector,
	}
	t.spanStack = append(t.spanStack, span)
	return span
}

// EndSpan pops the top of the span stack, finalizes its duration and
// parent, and applies child compression. skipFrames is forwarded to the
// frame collector for the non-compressed case.
func (t *Transaction) EndSpan(skipFrames int) *Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endSpanLocked(skipFrames)
}

func (t *Transaction) endSpanLocked(skipFrames int) *Span {
	n := len(t.spanStack)
	if n == 0 {
		return nil
	}
	top := t.spanStack[n-1]
	t.spanStack = t.spanStack[:n-1]

	if top == ignoredSpan {
		t.ignoreSubtree = false
		return nil
	}
	if top == droppedSpan {
		return nil
	}

	span := top
	nowOffset := elapsed(t.start)
	span.Duration = nowOffset - span.Start

	if len(t.spanStack) > 0 {
		parentIdx := t.spanStack[len(t.spanStack)-1].Index
		span.Parent = &parentIdx
	}

	t.spans = append(t.spans, span)
	t.compress(span, nowOffset)

	if span.Frames == nil && t.collectFrames != nil {
		if t.spanFramesMinDuration <= 0 || span.Duration >= t.spanFramesMinDuration {
			span.Frames = t.collectFrames(skipFrames)
		}
	}
	return span
}

// compress collapses repeated identical sibling spans into a single "Nx
// repeated" entry, normalizing to at most one grouping span per equivalence
// class under a given parent. It mutates span in place and possibly an
// earlier sibling or grandparent.
func (t *Transaction) compress(span *Span, nowOffset time.Duration) {
	if len(t.spans) < 2 {
		return
	}
	pre := t.spans[len(t.spans)-2]
	if pre.Name != span.Name {
		return
	}
	if span.fingerprintOf() != pre.fingerprintOf() {
		return
	}

	// pre may be an earlier sibling already folded under a grouping span of
	// the same fingerprint: fold into that grouping span instead of cloning
	// a second one.
	if pre.Count == 0 && pre.Parent != nil {
		for _, s := range t.spans {
			if s.Index == *pre.Parent && s.Count > 0 && s.fingerprintOf() == span.fingerprintOf() {
				pre = s
				break
			}
		}
	}

	if pre.Count > 0 {
		// pre is itself the grouping span from an earlier fold: fold into
		// it directly. Looking at pre.Parent here instead would miss this
		// case, since a grouping span's own Parent points at whatever sat
		// above the original siblings (often nil), not at itself.
		pre.Duration = nowOffset - pre.Start
		pre.Count++
		span.Parent = &pre.Index
		span.Frames = []Frame{}
		return
	}

	// Only the immediate sibling matches and neither is a grouping span
	// yet: clone pre into an explicit grouping span gaining a new index,
	// and re-parent both the original sibling and span under it.
	cloneIdx := t.spanCounter
	t.spanCounter++
	clone := &Span{
		Index:    cloneIdx,
		Name:     pre.Name,
		Type:     pre.Type,
		Start:    pre.Start,
		Context:  pre.Context,
		Leaf:     pre.Leaf,
		Duration: nowOffset - pre.Start,
		Frames:   []Frame{},
		Count:    2,
	}
	clone.fingerprint = pre.fingerprint
	if pre.Parent != nil {
		p := *pre.Parent
		clone.Parent = &p
	}
	t.spans = append(t.spans, clone)

	preParent := cloneIdx
	pre.Parent = &preParent
	pre.Frames = []Frame{}
	spanParent := cloneIdx
	span.Parent = &spanParent
	span.Frames = []Frame{}
}

// End finalizes the transaction: sets duration, applies the name override
// if unset, and sets the result. Ending twice is a no-op.
func (t *Transaction) End(name, result string) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	t.Duration = elapsed(t.start)
	if name != "" && t.Name == "" {
		t.Name = name
	}
	if result != "" {
		t.Result = result
	}
	client := t.client
	t.mu.Unlock()

	if client != nil {
		client.finishTransaction(t)
	}
}

// Ended reports whether End has already been called.
func (t *Transaction) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

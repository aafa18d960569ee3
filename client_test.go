package apmagent

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io/ioutil"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMatchesIgnorePattern(t *testing.T) {
	c := &Client{opts: ClientOptions{
		TransactionsIgnorePatterns: []*regexp.Regexp{regexp.MustCompile("^OPTIONS")},
	}}

	if !c.matchesIgnorePattern("OPTIONS /health") {
		t.Error(`matchesIgnorePattern("OPTIONS /health") = false, want true`)
	}
	if c.matchesIgnorePattern("GET /users") {
		t.Error(`matchesIgnorePattern("GET /users") = true, want false`)
	}
}

// recordingSender captures every body handed to Send for inspection.
type recordingSender struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (s *recordingSender) Send(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *recordingSender) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[len(s.bodies)-1]
}

func decompressLines(t *testing.T, body []byte) []string {
	t.Helper()
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	return lines
}

func TestCloseFlushesExactlyOneBatch(t *testing.T) {
	q := newEventQueue()
	sender := &recordingSender{}
	meta := newMetadataRecord("close-flush-test", "")

	w, err := newWorker(q, sender, meta, defaultCompressLevel, 0, defaultMaxBufferSize, &transportEncoding{
		localVarMaxLength:     defaultLocalVarMaxLength,
		localVarListMaxLength: defaultLocalVarListMaxLength,
	})
	if err != nil {
		t.Fatalf("newWorker: %v", err)
	}
	go w.run()

	txn := &Transaction{ID: generateSpanID(), TraceID: generateTraceID(), Name: "GET /ping", Sampled: true}
	q.offer(queueItem{eventType: eventTransaction, payload: encodeTransaction(txn)})
	q.offer(queueItem{eventType: eventClose})

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate after close")
	}

	if got := sender.count(); got != 1 {
		t.Fatalf("sender.count() = %d, want 1", got)
	}

	lines := decompressLines(t, sender.last())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (metadata + transaction):\n%s", len(lines), strings.Join(lines, "\n"))
	}
	var firstLine map[string]json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &firstLine); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if _, ok := firstLine["metadata"]; !ok {
		t.Errorf("first line = %s, want a metadata record", lines[0])
	}
	var secondLine map[string]json.RawMessage
	if err := json.Unmarshal([]byte(lines[1]), &secondLine); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}
	if _, ok := secondLine["transaction"]; !ok {
		t.Errorf("second line = %s, want a transaction record", lines[1])
	}
}

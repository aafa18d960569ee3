// This is an example program that traces a transaction with nested child
// spans and an instrumented HTTP request to a local test server, then prints
// the response and the transaction's recorded spans as JSON.
//
// Try it by running:
//
//	go run main.go
package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"os"
	"time"

	"github.com/apmhq/agent-go"
	"github.com/apmhq/agent-go/contrib/apmhttp"
)

type debugTransport struct{}

func (t debugTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	var b bytes.Buffer
	line := bytes.Repeat([]byte{'-'}, 80)
	fmt.Fprintf(&b, "%s\n", line)
	head, _ := httputil.DumpRequest(r, false)
	fmt.Fprintf(&b, "%s", head)
	s := bufio.NewScanner(r.Body)
	for s.Scan() {
		_ = json.Indent(&b, s.Bytes(), "", "  ")
		fmt.Fprintln(&b)
	}
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Printf("%s", b.Bytes())
	return &http.Response{}, nil
}

func run() error {
	_, err := apmagent.Init(apmagent.ClientOptions{
		ServiceName:           "manual-tracing-example",
		TransactionSampleRate: 1.0,
	})
	if err != nil {
		return fmt.Errorf("apmagent.Init: %w", err)
	}
	apmagent.DefaultClient.Start()
	defer apmagent.Close(2 * time.Second)

	handler := apmhttp.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "It works!")
		time.Sleep(80 * time.Millisecond) // simulate network latency
		fmt.Fprintf(w, "%x", sha256.Sum256([]byte(r.URL.Query().Get("q"))))
	}))

	testServer := httptest.NewServer(handler)

	ctx, txn := apmagent.BeginTransaction(context.Background(), "Example Transaction", "custom", nil)
	defer func() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(txn.Spans()); err != nil {
			panic(err)
		}
	}()
	defer apmagent.EndTransaction(ctx, "", "success")

	endChild1 := apmagent.StartSpan(ctx, "child1", "custom", nil, nil)
	time.Sleep(20 * time.Millisecond)
	endGrandchild1 := apmagent.StartSpan(ctx, "grandchild1", "custom", nil, nil)
	time.Sleep(100 * time.Millisecond)
	endGrandchild1()
	endChild1()

	endChild2 := apmagent.StartSpan(ctx, "child2", "external.http", nil, nil)
	resp, err := apmhttp.Get(ctx, testServer.URL)
	if err != nil {
		endChild2()
		return err
	}
	defer resp.Body.Close()
	b, err := httputil.DumpResponse(resp, true)
	if err != nil {
		endChild2()
		return err
	}
	fmt.Printf("%s\n", b)
	time.Sleep(50 * time.Millisecond)
	endChild2()

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

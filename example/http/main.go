package main

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"

	"github.com/apmhq/agent-go"
	"github.com/apmhq/agent-go/contrib/apmhttp"
)

type handler struct{}

func (h *handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	log.Printf("request body type => %T <=", r.Body)
	size, err := io.Copy(ioutil.Discard, r.Body)
	log.Printf("request body size = %d\nerr = %v\nContent-Length = %v", size, err, r.ContentLength)
	if txn := apmagent.TransactionFromContext(r.Context()); txn != nil {
		apmagent.SetCustomContext(r.Context(), map[string]interface{}{
			"unwantedQuery": "someQueryDataMaybe",
		})
		apmagent.CaptureMessage(r.Context(), "User provided unwanted query string, but we recovered just fine")
	}
	rw.WriteHeader(http.StatusOK)
}

func enhanceTag(handler http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		apmagent.SetTag(r.Context(), "someRandomTag", "maybeYouNeedIt")
		handler(rw, r)
	}
}

func main() {
	if _, err := apmagent.Init(apmagent.ClientOptions{ServiceName: "http-example"}); err != nil {
		panic(err)
	}
	apmagent.DefaultClient.Start()

	mux := http.NewServeMux()
	mux.Handle("/", &handler{})
	mux.HandleFunc("/foo", enhanceTag(func(rw http.ResponseWriter, r *http.Request) {
		panic("y tho")
	}))
	mux.HandleFunc("/s", func(w http.ResponseWriter, r *http.Request) {
		do(r)
	})

	fmt.Println("Listening and serving HTTP on :3000")
	if err := http.ListenAndServe("localhost:3000", apmhttp.Middleware(mux)); err != nil {
		panic(err)
	}
}

func do(r *http.Request) {
	log.Printf("request body type => %T <=", r.Body)
	var buf bytes.Buffer
	size, err := io.Copy(&buf, r.Body)
	log.Printf("\n\trequest body size = %d\n\tbody = %q\n\terr = %v\n\tContent-Length = %v", size, buf.String(), err, r.ContentLength)
}

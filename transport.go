package apmagent

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"
)

// httpSender POSTs a framed batch to a collector endpoint. It implements
// the sender interface consumed by worker.
type httpSender struct {
	client      *http.Client
	url         string
	secretToken string
	userAgent   string
}

func newHTTPSender(serverURL, secretToken string, verifyServerCert bool) *httpSender {
	transport := &http.Transport{}
	if !verifyServerCert {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &httpSender{
		client:      &http.Client{Transport: transport, Timeout: 30 * time.Second},
		url:         serverURL,
		secretToken: secretToken,
		userAgent:   fmt.Sprintf("%s/%s", agentName, agentVersion),
	}
}

// Send issues the POST. A 2xx status is success; anything else, including a
// transport-level error, is reported as failure with the response body (if
// any) folded into the error for logging.
func (s *httpSender) Send(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("User-Agent", s.userAgent)
	if s.secretToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.secretToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := ioutil.ReadAll(resp.Body)
	return fmt.Errorf("collector returned %s: %s", resp.Status, respBody)
}

// discardSender is used when send is disabled (no transport configured, or
// configuration is invalid). It accepts everything and reports success,
// so the worker's failure state machine never engages.
type discardSender struct{}

func (discardSender) Send([]byte) error { return nil }

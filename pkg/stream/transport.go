package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const errorBodyLimit = 4 * 1024

// HTTPTransport opens a stream in two steps: a POST to SetupURL that returns
// {"stream_id": "..."}, then a GET to StreamURL with the id in the streamId
// query parameter.
type HTTPTransport struct {
	Client    *http.Client
	SetupURL  string
	StreamURL string

	// Body is JSON encoded as the setup request body.
	Body   any
	Header http.Header
}

type setupResponse struct {
	StreamID string `json:"stream_id"`
}

func (t *HTTPTransport) Connect(ctx context.Context) (Conn, error) {
	resp, err := post(ctx, t.client(), t.SetupURL, t.Body, t.Header, "application/json")
	if err != nil {
		return nil, &TransportError{Op: "setup", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("setup", resp); err != nil {
		return nil, err
	}

	var setup setupResponse
	if err := json.NewDecoder(resp.Body).Decode(&setup); err != nil {
		return nil, &TransportError{Op: "setup", Err: fmt.Errorf("decoding setup response: %w", err)}
	}
	if setup.StreamID == "" {
		return nil, &TransportError{Op: "setup", Err: errors.New("setup response has no stream_id")}
	}

	streamURL, err := url.Parse(t.StreamURL)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	q := streamURL.Query()
	q.Set("streamId", setup.StreamID)
	streamURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	copyHeader(req.Header, t.Header)
	req.Header.Set("Accept", "text/event-stream")

	streamResp, err := t.client().Do(req)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	return open("connect", streamResp)
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// RequestTransport opens a stream with a single POST whose response body is
// the stream itself.
type RequestTransport struct {
	Client *http.Client
	URL    string
	Body   any
	Header http.Header
}

func (t *RequestTransport) Connect(ctx context.Context) (Conn, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := post(ctx, client, t.URL, t.Body, t.Header, "text/event-stream")
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	return open("connect", resp)
}

func post(ctx context.Context, client *http.Client, target string, body any, header http.Header, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	return client.Do(req)
}

// open wraps a stream response in the reader matching its Content-Type.
func open(op string, resp *http.Response) (Conn, error) {
	if err := checkStatus(op, resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return NewReader(resp.Body), nil
	}
	return NewChunkReader(resp.Body), nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var err error
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = errors.New(msg)
	}
	return &TransportError{Op: op, Status: resp.StatusCode, Err: err}
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

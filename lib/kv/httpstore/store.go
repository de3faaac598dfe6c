package httpstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/namelessnanashi/census/lib/kv"
)

var logger = slog.With("component", "httpstore")

// --------------------------------------------------------------------------
// Wire protocol constants
// --------------------------------------------------------------------------

// Header names carrying the entry lifecycle on PUT requests.
const (
	HeaderTTLSeconds = "X-Census-TTL-Seconds"
	HeaderExpireAt   = "X-Census-Expire-At"
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the connection parameters for a remote storage node.
type Config struct {
	// Endpoints is the list of base URLs of storage nodes. Requests are
	// balanced across them round-robin.
	Endpoints []string
	// TimeoutSecond bounds every single request.
	TimeoutSecond int
	// RetryCount is how many times a request is attempted before giving up.
	RetryCount int
}

// --------------------------------------------------------------------------
// Store implementation
// --------------------------------------------------------------------------

type storeImpl struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// New creates a kv.IStore backed by a remote storage node speaking the census
// KV HTTP protocol (served by the api package). The remote store is eventually
// consistent from the caller's point of view: a successful Put is acknowledged
// before it is necessarily visible to a subsequent Get or List.
func New(config Config) (kv.IStore, error) {
	if len(config.Endpoints) == 0 {
		return nil, kv.NewError(kv.RetCInvalidOperation, "no endpoints configured")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Endpoints))
	for i, server := range config.Endpoints {
		parsedURL, err := url.Parse(server)
		if err != nil {
			return nil, err
		}
		parsedURLs[i] = parsedURL
	}

	retryCount := config.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}
	timeout := time.Duration(config.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     timeout,
		},
	}

	return &storeImpl{
		serverURLs: parsedURLs,
		client:     client,
		retryCount: retryCount,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kv/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	resp, err := s.send(http.MethodGet, s.keyURL(key), nil, nil)
	if err != nil {
		return nil, false, err
	}
	defer s.closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		value, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, kv.NewError(kv.RetCUnavailable, err.Error())
		}
		return value, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, kv.NewError(kv.RetCUnavailable, fmt.Sprintf("unexpected status %s", resp.Status))
	}
}

func (s *storeImpl) Put(key string, value []byte, opts kv.PutOptions) error {
	headers := http.Header{}
	if opts.TTLSeconds > 0 {
		headers.Set(HeaderTTLSeconds, strconv.FormatUint(opts.TTLSeconds, 10))
	}
	if opts.ExpireAt > 0 {
		headers.Set(HeaderExpireAt, strconv.FormatInt(opts.ExpireAt, 10))
	}

	resp, err := s.send(http.MethodPut, s.keyURL(key), value, headers)
	if err != nil {
		return err
	}
	defer s.closeBody(resp)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return kv.NewError(kv.RetCUnavailable, fmt.Sprintf("unexpected status %s", resp.Status))
	}
	return nil
}

func (s *storeImpl) List(prefix, cursor string) (kv.Page, error) {
	query := url.Values{}
	query.Set("prefix", prefix)
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	resp, err := s.send(http.MethodGet, "/kv?"+query.Encode(), nil, nil)
	if err != nil {
		return kv.Page{}, err
	}
	defer s.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return kv.Page{}, kv.NewError(kv.RetCUnavailable, fmt.Sprintf("unexpected status %s", resp.Status))
	}

	var page kv.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return kv.Page{}, kv.NewError(kv.RetCUnavailable, fmt.Sprintf("malformed listing response: %v", err))
	}
	return page, nil
}

func (s *storeImpl) Delete(key string) error {
	resp, err := s.send(http.MethodDelete, s.keyURL(key), nil, nil)
	if err != nil {
		return err
	}
	defer s.closeBody(resp)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return kv.NewError(kv.RetCUnavailable, fmt.Sprintf("unexpected status %s", resp.Status))
	}
	return nil
}

func (s *storeImpl) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// keyURL builds the path for single-key operations. Keys are path-escaped so
// that colons and arbitrary project characters survive the round trip.
func (s *storeImpl) keyURL(key string) string {
	return "/kv/" + url.PathEscape(key)
}

// send issues one request against the next endpoint (round-robin) with retries.
func (s *storeImpl) send(method, path string, body []byte, headers http.Header) (*http.Response, error) {
	// Select the next server via round-robin
	idx := atomic.AddUint32(&s.counter, 1) % uint32(len(s.serverURLs))
	requestURL := s.serverURLs[idx].String() + path

	var (
		resp    *http.Response
		lastErr error
	)
	for i := 0; i < s.retryCount; i++ {
		req, err := http.NewRequest(method, requestURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for name, values := range headers {
			for _, value := range values {
				req.Header.Add(name, value)
			}
		}

		resp, lastErr = s.client.Do(req)
		if lastErr == nil {
			return resp, nil
		}
	}
	return nil, kv.NewError(kv.RetCUnavailable, lastErr.Error())
}

func (s *storeImpl) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Debug("failed to close response body", "err", err)
	}
}

package transport

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout               time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
}

// DefaultClientConfig returns the default client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:               30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// TransferClientConfig returns a configuration tuned for large media transfers
func TransferClientConfig() *ClientConfig {
	config := DefaultClientConfig()
	config.Timeout = 10 * time.Minute
	config.IdleConnTimeout = 120 * time.Second
	config.ResponseHeaderTimeout = 60 * time.Second
	return config
}

// newHTTPClient creates an HTTP client with pooled connections
func newHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// Options configures a transport Client
type Options struct {
	BaseURL string
	APIKey  string
	// BandwidthLimit caps transfer throughput in bytes per second; zero means
	// unlimited.
	BandwidthLimit int64
	ClientConfig   *ClientConfig
}

// Client talks to the media server: resolves stream URLs, fetches payloads
// whole or in byte ranges, and applies an optional bandwidth cap.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// NewClient creates a new transport client
func NewClient(opts Options) *Client {
	cfg := opts.ClientConfig
	if cfg == nil {
		cfg = TransferClientConfig()
	}

	var limiter *rate.Limiter
	if opts.BandwidthLimit > 0 {
		// The burst must cover one body read or WaitN can never succeed
		burst := int(opts.BandwidthLimit)
		if burst < readChunk {
			burst = readChunk
		}
		limiter = rate.NewLimiter(rate.Limit(opts.BandwidthLimit), burst)
	}

	return &Client{
		http:    newHTTPClient(cfg),
		baseURL: trimBase(opts.BaseURL),
		apiKey:  opts.APIKey,
		limiter: limiter,
	}
}

// trimBase drops a trailing slash so joined paths stay canonical
func trimBase(base string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base
}

// StreamURL builds the streaming URL for a track
func (c *Client) StreamURL(trackID string) string {
	return c.baseURL + "/api/tracks/" + trackID + "/stream"
}

// newRequest builds a request with the API key header attached
func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

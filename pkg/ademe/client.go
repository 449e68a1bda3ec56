// Package ademe queries the ADEME open-data registry (data-fair "lines"
// API) that publishes DPE records.
package ademe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dpe-search/internal/resilience"
)

// DefaultBaseURL is the public data-fair API root.
const DefaultBaseURL = "https://data.ademe.fr/data-fair/api/v1"

// ErrMalformedResponse is returned when the registry answers 200 with a body
// that has no results array.
var ErrMalformedResponse = eris.New("ademe: malformed response")

// Registry is the query surface the search engine depends on.
type Registry interface {
	Lines(ctx context.Context, dataset string, q Query) ([]json.RawMessage, error)
}

type linesResponse struct {
	Total   int                `json:"total"`
	Results *[]json.RawMessage `json:"results"`
}

// Client queries dataset lines with rate limiting, retries and a circuit
// breaker per dataset.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breakerCfg resilience.BreakerConfig
	timeout    time.Duration

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

var _ Registry = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBreaker sets the per-dataset circuit breaker policy.
func WithBreaker(cfg resilience.BreakerConfig) Option {
	return func(c *Client) {
		c.breakerCfg = cfg
	}
}

// WithTimeout bounds each call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a registry client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
		breakerCfg: resilience.DefaultBreakerConfig(),
		timeout:    20 * time.Second,
		breakers:   make(map[string]*resilience.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lines runs q against dataset and returns the raw result rows.
func (c *Client) Lines(ctx context.Context, dataset string, q Query) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.linesURL(dataset, q)
	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("ademe", dataset)

	return resilience.Call(ctx, c.breaker(dataset), func(ctx context.Context) ([]json.RawMessage, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]json.RawMessage, error) {
			return c.fetch(ctx, dataset, reqURL)
		})
	})
}

func (c *Client) fetch(ctx context.Context, dataset, reqURL string) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ademe: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ademe: build request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "ademe: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("ademe", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "ademe: read body"), 0)
	}

	var lr linesResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(ErrMalformedResponse, err.Error())
	}
	if lr.Results == nil {
		return nil, ErrMalformedResponse
	}

	zap.L().Debug("ademe: lines",
		zap.String("dataset", dataset),
		zap.Int("results", len(*lr.Results)),
		zap.Int("total", lr.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return *lr.Results, nil
}

func (c *Client) linesURL(dataset string, q Query) string {
	params := url.Values{}
	if q.Filter != "" {
		params.Set("qs", q.Filter.String())
	}
	if q.Size > 0 {
		params.Set("size", strconv.Itoa(q.Size))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if len(q.Select) > 0 {
		params.Set("select", strings.Join(q.Select, ","))
	}
	if q.Geo != nil {
		params.Set("geo_distance", q.Geo.String())
	}
	return c.baseURL + "/datasets/" + url.PathEscape(dataset) + "/lines?" + params.Encode()
}

func (c *Client) breaker(dataset string) *resilience.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[dataset]
	if !ok {
		b = resilience.NewBreaker("ademe:"+dataset, c.breakerCfg)
		c.breakers[dataset] = b
	}
	return b
}

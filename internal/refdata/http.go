package refdata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/dpe-search/internal/resilience"
)

// HTTPLoader fetches <baseURL>/<code>.json.
type HTTPLoader struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

var _ Loader = (*HTTPLoader)(nil)

// HTTPOption configures an HTTPLoader.
type HTTPOption func(*HTTPLoader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(l *HTTPLoader) {
		l.httpClient = hc
	}
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) HTTPOption {
	return func(l *HTTPLoader) {
		if rps > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) HTTPOption {
	return func(l *HTTPLoader) {
		l.retry = cfg
	}
}

// NewHTTPLoader creates a loader for a remote directory of department files.
func NewHTTPLoader(baseURL string, opts ...HTTPOption) *HTTPLoader {
	l := &HTTPLoader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 1),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, code string) (*Department, error) {
	cfg := l.retry
	cfg.OnRetry = resilience.RetryLogger("refdata", "load "+code)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Department, error) {
		return l.fetch(ctx, code)
	})
}

func (l *HTTPLoader) fetch(ctx context.Context, code string) (*Department, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+code+".json", nil)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "refdata: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "department %s", code)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.StatusError("refdata: "+code, resp.StatusCode)
	}
	return Decode(resp.Body, code)
}

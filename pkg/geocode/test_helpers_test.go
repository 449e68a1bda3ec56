package geocode

import (
	"context"
	"net/http"
	"strings"
)

// newRewriteClient creates an HTTP client that redirects requests for
// targetPrefix to a test server, so providers can keep their default URLs.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &rewriteTransport{
			base:         http.DefaultTransport,
			testServer:   testServerURL,
			targetPrefix: targetPrefix,
		},
	}
}

type rewriteTransport struct {
	base         http.RoundTripper
	testServer   string
	targetPrefix string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	if !strings.HasPrefix(origURL, t.targetPrefix) {
		return t.base.RoundTrip(req)
	}
	parsed, err := req.URL.Parse(t.testServer + origURL[len(t.targetPrefix):])
	if err != nil {
		return nil, err
	}
	newReq := req.Clone(req.Context())
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}

// fakeProvider implements Provider (and Reverser) for cascade tests.
type fakeProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	reverse   *ReverseResult
	calls     int
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Geocode(_ context.Context, _ string) (*Result, error) {
	f.calls++
	return f.result, f.err
}

// reversingProvider adds Reverser to fakeProvider.
type reversingProvider struct {
	fakeProvider
}

func (r *reversingProvider) Reverse(_ context.Context, _, _ float64) (*ReverseResult, error) {
	return r.reverse, nil
}

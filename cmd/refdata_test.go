//go:build !integration

package main

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dpe-search/internal/refdata"
	"github.com/sells-group/dpe-search/internal/store"
)

type stubLoader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (l *stubLoader) Load(_ context.Context, code string) (*refdata.Department, error) {
	l.mu.Lock()
	l.calls = append(l.calls, code)
	l.mu.Unlock()
	if l.fail[code] {
		return nil, eris.Errorf("boom %s", code)
	}
	return &refdata.Department{
		Code:     code,
		Communes: []refdata.Commune{{Insee: code + "001", Name: "Commune " + code, PostalCodes: []string{code + "000"}}},
	}, nil
}

func TestWarmDepartments(t *testing.T) {
	loader := &stubLoader{fail: map[string]bool{"2A": true}}
	rs := refdata.NewStore(loader, refdata.NewMemoryCache())

	loaded, failed := warmDepartments(context.Background(), rs, []string{"01", " 69 ", "2A", "75"}, 2)

	assert.Equal(t, 3, loaded)
	assert.Equal(t, 1, failed)
	assert.ElementsMatch(t, []string{"01", "69", "2A", "75"}, loader.calls)
	assert.Len(t, rs.Loaded(), 3)
}

func TestWarmDepartments_ZeroConcurrency(t *testing.T) {
	rs := refdata.NewStore(&stubLoader{}, nil)

	loaded, failed := warmDepartments(context.Background(), rs, []string{"01"}, 0)

	assert.Equal(t, 1, loaded)
	assert.Equal(t, 0, failed)
}

func TestPrintCacheStats(t *testing.T) {
	var buf bytes.Buffer
	printCacheStats(&buf, "dpe-cache.db", store.Stats{Total: 12, Expired: 3})

	out := buf.String()
	assert.Contains(t, out, "dpe-cache.db")
	assert.Contains(t, out, "Entries:  12")
	assert.Contains(t, out, "Expired:  3")
}

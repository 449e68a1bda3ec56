//go:build !integration

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/search"
)

func setSearchFlags(t *testing.T, values map[string]string) {
	t.Helper()
	for name, v := range values {
		require.NoError(t, searchCmd.Flags().Set(name, v))
	}
	t.Cleanup(func() {
		for name := range values {
			_ = searchCmd.Flags().Set(name, "")
		}
	})
}

func TestRequestFromFlags(t *testing.T) {
	setSearchFlags(t, map[string]string{
		"commune":      " Lyon ",
		"surface":      "75,5",
		"energy-class": "d",
		"ges":          ">30",
		"type":         "maison",
	})

	req, err := requestFromFlags(searchCmd)
	require.NoError(t, err)

	assert.Equal(t, "Lyon", req.Commune)
	require.NotNil(t, req.Surface)
	assert.Equal(t, 75.5, req.Surface.Value)
	assert.Equal(t, model.Class("D"), req.EnergyClass)
	require.NotNil(t, req.GES)
	assert.Equal(t, model.OpGT, req.GES.Op)
	assert.Nil(t, req.Consumption)
}

func TestRequestFromFlags_MissingCommune(t *testing.T) {
	setSearchFlags(t, map[string]string{"surface": "75"})

	_, err := requestFromFlags(searchCmd)
	assert.Error(t, err)
}

func TestRequestFromFlags_Exclusive(t *testing.T) {
	setSearchFlags(t, map[string]string{
		"commune":      "75001",
		"conso":        "150",
		"energy-class": "D",
	})

	_, err := requestFromFlags(searchCmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidRequest))
}

func TestFormatResults(t *testing.T) {
	surface, conso, dist := 75.0, 148.0, 0.42
	lat, lon := 48.86, 2.34
	resp := &search.Response{
		Commune: &model.CommuneCoordinates{Name: "Paris", PostalCode: "75001", Source: "refdata"},
		Tier:    model.TierStrict,
		Results: []model.Result{
			{
				ID:                  "2375E0000001A",
				Address:             "12 Rue de Rivoli 75001 Paris",
				SurfaceHabitable:    &surface,
				ConsommationEnergie: &conso,
				EnergyClass:         "C",
				Latitude:            &lat,
				Longitude:           &lon,
				Distance:            &dist,
				MatchScore:          96,
				Tier:                model.TierStrict,
			},
			{
				ID:                "0875L0000002B",
				Address:           strings.Repeat("x", 60),
				MatchScore:        0,
				Tier:              model.TierStrict,
				IsLegacyData:      true,
				HasIncompleteData: true,
			},
		},
	}

	var buf bytes.Buffer
	formatResults(&buf, resp)
	out := buf.String()

	assert.Contains(t, out, "Commune: Paris (75001) via refdata, tier strict")
	assert.Contains(t, out, "SCORE")
	assert.Contains(t, out, "NUMERO_DPE")
	assert.Contains(t, out, "2375E0000001A")
	assert.Contains(t, out, "12 Rue de Rivoli 75001 Paris")
	assert.Contains(t, out, "148")
	assert.Contains(t, out, "0.42")
	assert.Contains(t, out, "legacy/strict (incomplete)")
	assert.Contains(t, out, strings.Repeat("x", 37)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 41))
}

func TestOptional(t *testing.T) {
	v := 12.5
	assert.Equal(t, "-", optional(nil))
	assert.Equal(t, "12.5", optional(&v))
}

func TestSearchTimeout_Default(t *testing.T) {
	saved := cfg
	cfg = nil
	t.Cleanup(func() { cfg = saved })

	assert.Equal(t, "45s", searchTimeout().String())
}

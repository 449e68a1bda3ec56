package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpe-search/internal/model"
	"github.com/sells-group/dpe-search/internal/refdata"
)

// ResolveInsee returns the communes a legacy search is scoped to. For a
// postal code shared by several communes the most populous one is picked.
// A name is matched against the departments already loaded, then against
// each remaining department in turn until one matches. An empty result
// means unresolved; an error is returned only when ctx is done.
func (r *Resolver) ResolveInsee(ctx context.Context, input string) ([]refdata.Commune, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	var out []refdata.Commune
	if model.IsPostalCode(input) {
		out = r.inseeForPostalCode(ctx, input)
	} else {
		out = r.inseeForName(ctx, input)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "resolve: cancelled")
	}
	return out, nil
}

func (r *Resolver) inseeForPostalCode(ctx context.Context, pc string) []refdata.Commune {
	if d := r.department(ctx, pc); d != nil {
		if c := mostPopulous(d.CommunesFor(pc)); c != nil {
			return []refdata.Commune{*c}
		}
	}

	if res := r.geocode(ctx, pc); res != nil && res.CityCode != "" {
		return []refdata.Commune{{Insee: res.CityCode, Name: res.City, PostalCodes: []string{pc}}}
	}
	return nil
}

func (r *Resolver) inseeForName(ctx context.Context, name string) []refdata.Commune {
	// An exact match in any department beats a partial one, so partial hits
	// are only kept as a fallback while the scan continues.
	var partial *refdata.Commune
	check := func(d *refdata.Department) *refdata.Commune {
		if c := d.FindExact(name); c != nil {
			return c
		}
		if partial == nil {
			partial = d.FindContaining(name)
		}
		return nil
	}

	loaded := r.ref.Loaded()
	seen := make(map[string]bool, len(loaded))
	for _, d := range loaded {
		seen[d.Code] = true
		if c := check(d); c != nil {
			return []refdata.Commune{*c}
		}
	}

	for _, code := range refdata.AllDepartments() {
		if seen[code] {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		d, err := r.ref.Department(ctx, code)
		if err != nil {
			if !errors.Is(err, refdata.ErrNotFound) {
				zap.L().Debug("resolve: skipping department", zap.String("department", code), zap.Error(err))
			}
			continue
		}
		if c := check(d); c != nil {
			return []refdata.Commune{*c}
		}
	}

	if partial != nil {
		return []refdata.Commune{*partial}
	}
	return nil
}

func mostPopulous(communes []*refdata.Commune) *refdata.Commune {
	var best *refdata.Commune
	for _, c := range communes {
		if best == nil || c.Population > best.Population {
			best = c
		}
	}
	return best
}

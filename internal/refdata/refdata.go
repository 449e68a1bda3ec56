// Package refdata serves the geographic reference data the commune resolver
// reads: one Department per administrative division, listing its communes
// with centre and town hall coordinates and a postal code index.
package refdata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dpe-search/internal/geo"
	"github.com/sells-group/dpe-search/internal/model"
)

// ErrNotFound is returned when a division has no reference data.
var ErrNotFound = eris.New("refdata: department not found")

// Loader fetches one department's reference data.
type Loader interface {
	Load(ctx context.Context, code string) (*Department, error)
}

// Commune is one municipality of a department.
type Commune struct {
	Insee       string       `json:"insee"`
	Name        string       `json:"name"`
	PostalCodes []string     `json:"postalCodes"`
	Centre      *model.Point `json:"centre,omitempty"`
	Mairie      *model.Point `json:"mairie,omitempty"`
	Radius      float64      `json:"radius"`
	Population  int          `json:"population,omitempty"`
}

// Point returns the commune's best known location, centre first.
func (c *Commune) Point() (model.Point, bool) {
	switch {
	case c.Centre != nil:
		return *c.Centre, true
	case c.Mairie != nil:
		return *c.Mairie, true
	default:
		return model.Point{}, false
	}
}

// PostalGroup lists the communes sharing one postal code.
type PostalGroup struct {
	Communes       []string     `json:"communes"`
	Centre         *model.Point `json:"centre,omitempty"`
	CoverageRadius float64      `json:"coverageRadius,omitempty"`
}

// Department is the reference data for one division.
type Department struct {
	Code        string                 `json:"code"`
	Communes    []Commune              `json:"communes"`
	PostalCodes map[string]PostalGroup `json:"postalCodes,omitempty"`

	byInsee map[string]int
}

// Prepare indexes communes by INSEE code and fills in any postal group the
// source did not provide, computing the group centre and coverage radius.
// Loaders call it before a department is published.
func (d *Department) Prepare() {
	d.byInsee = make(map[string]int, len(d.Communes))
	for i, c := range d.Communes {
		d.byInsee[c.Insee] = i
	}

	derived := make(map[string][]string)
	for _, c := range d.Communes {
		for _, pc := range c.PostalCodes {
			derived[pc] = appendUnique(derived[pc], c.Insee)
		}
	}

	if d.PostalCodes == nil {
		d.PostalCodes = make(map[string]PostalGroup, len(derived))
	}
	for pc, members := range derived {
		g, ok := d.PostalCodes[pc]
		if !ok || len(g.Communes) == 0 {
			g.Communes = members
		}
		if len(g.Communes) > 1 && g.Centre == nil {
			d.fillGroupGeometry(&g)
		}
		d.PostalCodes[pc] = g
	}
}

func (d *Department) fillGroupGeometry(g *PostalGroup) {
	var points []model.Point
	var radii []float64
	for _, insee := range g.Communes {
		c := d.Commune(insee)
		if c == nil {
			continue
		}
		if p, ok := c.Point(); ok {
			points = append(points, p)
			radii = append(radii, c.Radius)
		}
	}
	centre, ok := geo.Centroid(points)
	if !ok {
		return
	}
	g.Centre = &centre
	if g.CoverageRadius == 0 {
		g.CoverageRadius = geo.CoverageRadiusKM(centre, points, radii)
	}
}

// Commune returns the commune with the given INSEE code, or nil.
func (d *Department) Commune(insee string) *Commune {
	if d.byInsee == nil {
		for i := range d.Communes {
			if d.Communes[i].Insee == insee {
				return &d.Communes[i]
			}
		}
		return nil
	}
	i, ok := d.byInsee[insee]
	if !ok {
		return nil
	}
	return &d.Communes[i]
}

// Group returns the postal group for pc.
func (d *Department) Group(pc string) (PostalGroup, bool) {
	g, ok := d.PostalCodes[pc]
	if !ok || len(g.Communes) == 0 {
		return PostalGroup{}, false
	}
	return g, true
}

// CommunesFor returns the communes sharing postal code pc.
func (d *Department) CommunesFor(pc string) []*Commune {
	g, ok := d.Group(pc)
	if !ok {
		return nil
	}
	out := make([]*Commune, 0, len(g.Communes))
	for _, insee := range g.Communes {
		if c := d.Commune(insee); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// PostalCodesFor returns every postal code whose group contains exactly
// the given communes, sorted. pc itself is always included.
func (d *Department) PostalCodesFor(pc string) []string {
	g, ok := d.Group(pc)
	if !ok {
		return []string{pc}
	}
	want := make(map[string]bool, len(g.Communes))
	for _, insee := range g.Communes {
		want[insee] = true
	}

	codes := []string{pc}
	for other, og := range d.PostalCodes {
		if other == pc || len(og.Communes) != len(want) {
			continue
		}
		same := true
		for _, insee := range og.Communes {
			if !want[insee] {
				same = false
				break
			}
		}
		if same {
			codes = append(codes, other)
		}
	}
	sort.Strings(codes)
	return codes
}

// FindByName returns the commune whose normalised name equals name, else
// the first whose name contains (or is contained in) it. Exact matches win
// so "Paris" does not resolve to "Cormeilles-en-Parisis". Callers searching
// several departments use FindExact across all of them first.
func (d *Department) FindByName(name string) *Commune {
	if c := d.FindExact(name); c != nil {
		return c
	}
	return d.FindContaining(name)
}

// FindExact returns the commune whose normalised name equals name.
func (d *Department) FindExact(name string) *Commune {
	want := geo.NormalizeName(name)
	if want == "" {
		return nil
	}
	for i := range d.Communes {
		if geo.NormalizeName(d.Communes[i].Name) == want {
			return &d.Communes[i]
		}
	}
	return nil
}

// FindContaining returns the first commune whose name contains, or is
// contained in, name.
func (d *Department) FindContaining(name string) *Commune {
	if geo.NormalizeName(name) == "" {
		return nil
	}
	for i := range d.Communes {
		if geo.NameMatches(d.Communes[i].Name, name) {
			return &d.Communes[i]
		}
	}
	return nil
}

// DepartmentForPostalCode returns the division owning a postal code:
// the first two digits, 2A/2B for Corsica and three digits overseas.
func DepartmentForPostalCode(pc string) (string, bool) {
	pc = strings.TrimSpace(pc)
	if !model.IsPostalCode(pc) {
		return "", false
	}
	switch {
	case pc[:2] == "00":
		return "", false
	case pc[:2] == "20":
		if pc[2] == '0' || pc[2] == '1' {
			return "2A", true
		}
		return "2B", true
	case pc[:2] == "97":
		return pc[:3], true
	case pc[:2] == "98":
		return "", false
	default:
		return pc[:2], true
	}
}

var allDepartments = buildDepartmentList()

func buildDepartmentList() []string {
	codes := make([]string, 0, 101)
	for i := 1; i <= 95; i++ {
		switch i {
		case 20:
			codes = append(codes, "2A", "2B")
		default:
			codes = append(codes, fmt.Sprintf("%02d", i))
		}
	}
	for _, c := range []string{"971", "972", "973", "974", "976"} {
		codes = append(codes, c)
	}
	return codes
}

// AllDepartments returns every metropolitan and overseas division code in
// canonical order. Callers must not modify the slice.
func AllDepartments() []string {
	return allDepartments
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

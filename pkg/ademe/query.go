package ademe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expr is one clause of a registry filter expression (the `qs` parameter).
// The zero value is an empty clause and is dropped by And.
type Expr string

// luceneSpecial lists characters escaped in unquoted term values.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/ `

// Term matches field:value with the value escaped.
func Term(field, value string) Expr {
	if value == "" {
		return ""
	}
	return Expr(field + ":" + escape(value))
}

// Quoted matches field:"value" exactly.
func Quoted(field, value string) Expr {
	if value == "" {
		return ""
	}
	return Expr(field + ":" + quote(value))
}

// Range matches field:[min TO max]. A nil bound is open and renders as *.
func Range(field string, min, max *float64) Expr {
	if min == nil && max == nil {
		return ""
	}
	return Expr(fmt.Sprintf("%s:[%s TO %s]", field, bound(min), bound(max)))
}

// Between is Range with both bounds set.
func Between(field string, min, max float64) Expr {
	return Range(field, &min, &max)
}

// AnyOf matches field:("a" OR "b"). A single value renders as Quoted.
func AnyOf(field string, values ...string) Expr {
	var quoted []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		quoted = append(quoted, quote(v))
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return Expr(field + ":" + quoted[0])
	default:
		return Expr(field + ":(" + strings.Join(quoted, " OR ") + ")")
	}
}

// And joins non-empty clauses with AND.
func And(exprs ...Expr) Expr {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, string(e))
		}
	}
	return Expr(strings.Join(parts, " AND "))
}

// Or joins non-empty clauses with OR inside parentheses.
func Or(exprs ...Expr) Expr {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != "" {
			parts = append(parts, string(e))
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return Expr(parts[0])
	default:
		return Expr("(" + strings.Join(parts, " OR ") + ")")
	}
}

func (e Expr) String() string { return string(e) }

// GeoDistance scopes a query to a circle, rendered lon:lat:meters.
type GeoDistance struct {
	Lon    float64
	Lat    float64
	Meters int
}

func (g GeoDistance) String() string {
	return fmt.Sprintf("%s:%s:%d",
		strconv.FormatFloat(g.Lon, 'f', 6, 64),
		strconv.FormatFloat(g.Lat, 'f', 6, 64),
		g.Meters,
	)
}

// KM builds a GeoDistance from a radius in km.
func KM(lat, lon, km float64) *GeoDistance {
	return &GeoDistance{Lon: lon, Lat: lat, Meters: int(math.Round(km * 1000))}
}

// Query is one request to a dataset's lines endpoint.
type Query struct {
	Filter Expr
	Size   int
	Sort   string
	Select []string
	Geo    *GeoDistance
}

func bound(v *float64) string {
	if v == nil {
		return "*"
	}
	return FormatNumber(*v)
}

// FormatNumber renders v with at most two decimals.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func quote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

func escape(v string) string {
	var b strings.Builder
	for _, r := range v {
		if strings.ContainsRune(luceneSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

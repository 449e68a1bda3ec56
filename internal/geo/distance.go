// Package geo provides distance, centroid and place-name helpers used to
// scope searches around a commune.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/dpe-search/internal/model"
)

// DistanceKM returns the great-circle distance between two points in km.
func DistanceKM(a, b model.Point) float64 {
	d := orbgeo.DistanceHaversine(toOrb(a), toOrb(b)) / 1000
	if math.IsNaN(d) {
		return 0
	}
	return d
}

// WithinKM reports whether b lies within km of a.
func WithinKM(a, b model.Point, km float64) bool {
	return DistanceKM(a, b) <= km
}

// Centroid returns the geometric centre of a group of points. It returns
// false when points is empty.
func Centroid(points []model.Point) (model.Point, bool) {
	if len(points) == 0 {
		return model.Point{}, false
	}
	if len(points) == 1 {
		return points[0], true
	}

	coords := make([]geom.Coord, 0, len(points))
	for _, p := range points {
		coords = append(coords, geom.Coord{p.Lon, p.Lat})
	}
	c := xy.MultiPointCentroid(geom.NewMultiPoint(geom.XY).MustSetCoords(coords))
	return model.Point{Lat: c.Y(), Lon: c.X()}, true
}

// CoverageRadiusKM returns the radius around center that covers every
// member point plus its own radius. radii may be shorter than members;
// missing entries count as zero.
func CoverageRadiusKM(center model.Point, members []model.Point, radii []float64) float64 {
	var cover float64
	for i, m := range members {
		d := DistanceKM(center, m)
		if i < len(radii) {
			d += radii[i]
		}
		if d > cover {
			cover = d
		}
	}
	return cover
}

// orb points are [lon, lat].
func toOrb(p model.Point) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

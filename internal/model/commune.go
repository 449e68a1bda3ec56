package model

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether p is the zero value.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// CommuneCoordinates is the resolved geography a search is scoped to.
// It is created once per search and read-only afterwards.
type CommuneCoordinates struct {
	Point

	// Centre is the geometric centre of the commune (or commune group).
	Centre *Point `json:"centre,omitempty"`
	// Mairie is the town hall location, preferred for result distances.
	Mairie *Point `json:"mairie,omitempty"`

	// Radius is the commune's own extent in km. Zero for multi-commune
	// shapes, which carry CoverageRadius instead.
	Radius         float64 `json:"radius"`
	CoverageRadius float64 `json:"coverageRadius,omitempty"`

	IsMultiCommune bool     `json:"isMultiCommune"`
	AllPostalCodes []string `json:"allPostalCodes,omitempty"`
	CommuneCount   int      `json:"communeCount,omitempty"`

	PostalCode string `json:"postalCode,omitempty"`
	InseeCode  string `json:"inseeCode,omitempty"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
	Source     string `json:"source"` // "refdata" or the geocoder name
}

// ReferencePoint is the point distances to results are measured from:
// the town hall when known, else the centre, else the query point.
func (c *CommuneCoordinates) ReferencePoint() Point {
	if c.Mairie != nil {
		return *c.Mairie
	}
	if c.Centre != nil {
		return *c.Centre
	}
	return c.Point
}

// SearchRadius is the km added to a tier's base radius.
func (c *CommuneCoordinates) SearchRadius() float64 {
	if c.IsMultiCommune {
		return c.CoverageRadius
	}
	return c.Radius
}

// PostalCodes returns every postal code the area covers, falling back to
// the single resolved postal code.
func (c *CommuneCoordinates) PostalCodes() []string {
	if len(c.AllPostalCodes) > 0 {
		return c.AllPostalCodes
	}
	if c.PostalCode != "" {
		return []string{c.PostalCode}
	}
	return nil
}

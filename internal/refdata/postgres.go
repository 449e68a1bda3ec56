package refdata

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dpe-search/internal/model"
)

// pool is the subset of pgxpool.Pool the loader uses.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresLoader reads reference data from the ref.communes table, which
// holds one row per (commune, postal code) pair.
type PostgresLoader struct {
	pool pool
}

var _ Loader = (*PostgresLoader)(nil)

// NewPostgresLoader connects to the reference database.
func NewPostgresLoader(ctx context.Context, url string) (*PostgresLoader, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: connect")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "refdata: ping")
	}
	return &PostgresLoader{pool: p}, nil
}

// Close releases the pool.
func (l *PostgresLoader) Close() {
	l.pool.Close()
}

const communesQuery = `SELECT insee, name, postal_code,
	COALESCE(centre_lat, 0), COALESCE(centre_lon, 0),
	COALESCE(mairie_lat, 0), COALESCE(mairie_lon, 0),
	COALESCE(radius_km, 0), COALESCE(population, 0)
FROM ref.communes
WHERE department = $1
ORDER BY insee, postal_code`

// Load implements Loader. Postal codes are grouped per commune in Go.
func (l *PostgresLoader) Load(ctx context.Context, code string) (*Department, error) {
	rows, err := l.pool.Query(ctx, communesQuery, code)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: query department %s", code)
	}
	defer rows.Close()

	d := &Department{Code: code}
	index := make(map[string]int)
	for rows.Next() {
		var (
			insee, name, pc                  string
			cLat, cLon, mLat, mLon, radiusKM float64
			population                       int
		)
		if err := rows.Scan(&insee, &name, &pc, &cLat, &cLon, &mLat, &mLon, &radiusKM, &population); err != nil {
			return nil, eris.Wrap(err, "refdata: scan commune")
		}

		i, ok := index[insee]
		if !ok {
			d.Communes = append(d.Communes, Commune{
				Insee:      insee,
				Name:       name,
				Centre:     optionalPoint(cLat, cLon),
				Mairie:     optionalPoint(mLat, mLon),
				Radius:     radiusKM,
				Population: population,
			})
			i = len(d.Communes) - 1
			index[insee] = i
		}
		if pc != "" {
			d.Communes[i].PostalCodes = appendUnique(d.Communes[i].PostalCodes, pc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "refdata: iterate communes")
	}
	if len(d.Communes) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "department %s", code)
	}
	return d, nil
}

func optionalPoint(lat, lon float64) *model.Point {
	if lat == 0 && lon == 0 {
		return nil
	}
	return &model.Point{Lat: lat, Lon: lon}
}

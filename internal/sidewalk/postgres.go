package sidewalk

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/bwise1/sidewalk_atlas/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// PostgresStore keeps reference geometries in PostGIS. The geometry
// column backs the ST_DWithin candidate pre-filter; the points column
// is the lossless polyline read back by the engine.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS reference_sidewalks (
    id UUID PRIMARY KEY,
    source_id BIGINT NOT NULL,
    side TEXT NOT NULL DEFAULT 'none',
    geom geometry(LineString, 4326) NOT NULL,
    points JSONB NOT NULL,
    street TEXT,
    surface TEXT,
    width_m DOUBLE PRECISION,
    tags JSONB NOT NULL DEFAULT '{}'::jsonb,
    status TEXT NOT NULL DEFAULT 'active',
    last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source_id, side)
);
CREATE INDEX IF NOT EXISTS reference_sidewalks_geog_idx
    ON reference_sidewalks USING GIST ((geom::geography));
`

// EnsureSchema creates the reference table and spatial index if they
// do not exist yet. Safe to run on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "ensuring reference_sidewalks schema")
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sw *model.ReferenceSidewalk) (UpsertOutcome, error) {
	if sw.ID == uuid.Nil {
		sw.ID = uuid.New()
	}

	pointsJSON, err := json.Marshal(sw.Geometry)
	if err != nil {
		return UpsertUnchanged, errors.Wrap(err, "marshal geometry points")
	}
	tagsJSON, err := json.Marshal(sw.Tags)
	if err != nil {
		return UpsertUnchanged, errors.Wrap(err, "marshal tags")
	}

	query := `
        INSERT INTO reference_sidewalks (
            id, source_id, side, geom, points, street, surface, width_m, tags, status, last_updated
        ) VALUES (
            $1, $2, $3, ST_SetSRID(ST_GeomFromText($4), 4326), $5, $6, $7, $8, $9, 'active', NOW()
        )
        ON CONFLICT (source_id, side) DO UPDATE SET
            geom = EXCLUDED.geom,
            points = EXCLUDED.points,
            street = EXCLUDED.street,
            surface = EXCLUDED.surface,
            width_m = EXCLUDED.width_m,
            tags = EXCLUDED.tags,
            status = 'active',
            last_updated = NOW()
        WHERE reference_sidewalks.points IS DISTINCT FROM EXCLUDED.points
           OR reference_sidewalks.street IS DISTINCT FROM EXCLUDED.street
           OR reference_sidewalks.surface IS DISTINCT FROM EXCLUDED.surface
           OR reference_sidewalks.width_m IS DISTINCT FROM EXCLUDED.width_m
           OR reference_sidewalks.tags IS DISTINCT FROM EXCLUDED.tags
           OR reference_sidewalks.status <> 'active'
        RETURNING id, (xmax = 0) AS inserted
    `
	var inserted bool
	err = s.DB.QueryRow(ctx, query,
		sw.ID, sw.SourceID, sw.Side, lineToWKT(sw.Geometry), pointsJSON,
		sw.Street, sw.Surface, sw.WidthMeters, tagsJSON,
	).Scan(&sw.ID, &inserted)
	if err == pgx.ErrNoRows {
		// Conflict row already carried identical content.
		return UpsertUnchanged, nil
	}
	if err != nil {
		log.Println("upsert reference sidewalk:", err)
		return UpsertUnchanged, errors.Wrapf(ErrStoreUnavailable, "upsert source %d/%s: %v", sw.SourceID, sw.Side, err)
	}
	if inserted {
		return UpsertInserted, nil
	}
	return UpsertUpdated, nil
}

const selectColumns = `
    id, source_id, side, points, street, surface, width_m, tags, status, last_updated
`

func (s *PostgresStore) QueryAll(ctx context.Context, bounds *model.BoundingBox) ([]model.ReferenceSidewalk, error) {
	query := `
        SELECT ` + selectColumns + `
        FROM reference_sidewalks
        WHERE status = 'active'
    `
	args := []interface{}{}
	if bounds != nil {
		query += ` AND geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)`
		args = append(args, bounds.West, bounds.South, bounds.East, bounds.North)
	}
	query += ` ORDER BY id`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "query all: %v", err)
	}
	defer rows.Close()
	return scanSidewalks(rows)
}

func (s *PostgresStore) QueryNear(ctx context.Context, point orb.Point, radiusMeters float64) ([]model.ReferenceSidewalk, error) {
	query := `
        SELECT ` + selectColumns + `
        FROM reference_sidewalks
        WHERE status = 'active'
        AND ST_DWithin(
            geom::geography,
            ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
            $3
        )
        ORDER BY id
    `
	rows, err := s.DB.Query(ctx, query, point.Lon(), point.Lat(), radiusMeters)
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "query near: %v", err)
	}
	defer rows.Close()
	return scanSidewalks(rows)
}

// Retire marks a geometry inactive without deleting it, so it drops
// out of snap and validate queries but stays for audit.
func (s *PostgresStore) Retire(ctx context.Context, sourceID int64, side model.Side) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE reference_sidewalks SET status = 'retired', last_updated = NOW()
         WHERE source_id = $1 AND side = $2`, sourceID, side)
	if err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "retire source %d/%s: %v", sourceID, side, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("no reference geometry for source %d side %s", sourceID, side)
	}
	return nil
}

func scanSidewalks(rows pgx.Rows) ([]model.ReferenceSidewalk, error) {
	var out []model.ReferenceSidewalk
	for rows.Next() {
		var (
			sw         model.ReferenceSidewalk
			pointsJSON []byte
			tagsJSON   []byte
		)
		err := rows.Scan(
			&sw.ID, &sw.SourceID, &sw.Side, &pointsJSON, &sw.Street,
			&sw.Surface, &sw.WidthMeters, &tagsJSON, &sw.Status, &sw.LastUpdated,
		)
		if err != nil {
			return nil, errors.Wrapf(ErrStoreUnavailable, "scan reference sidewalk: %v", err)
		}
		if err := json.Unmarshal(pointsJSON, &sw.Geometry); err != nil {
			return nil, errors.Wrap(err, "decode geometry points")
		}
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &sw.Tags); err != nil {
				return nil, errors.Wrap(err, "decode tags")
			}
		}
		out = append(out, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "iterate reference sidewalks: %v", err)
	}
	return out, nil
}

// lineToWKT renders the polyline as a WKT LINESTRING in lng lat
// order for ST_GeomFromText.
func lineToWKT(line orb.LineString) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, p := range line {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(p.Lon(), 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat(), 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}

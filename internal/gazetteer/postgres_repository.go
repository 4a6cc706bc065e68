package gazetteer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const recordColumns = `id, segment_id, street_class, street_name, street_name_normalized, street_name_key,
	house_number, number_suffix, postal_code, district_code, district_name, neighborhood_name,
	latitude, longitude, gazetteer_version, updated_at`

// trigramPrefilterFactor pg_trgm similarity runs lower than the edit-distance
// ratio for the same pair, so the SQL prefilter is looser than the threshold.
const trigramPrefilterFactor = 0.5

// PostgresRepository gazetteer in a PostgreSQL table (pg_trgm for fuzzy lookups)
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres opens and pings a lib/pq connection pool
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return db, nil
}

// NewPostgresRepository creates the repository
func NewPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) SearchByExactMatch(ctx context.Context, c Criteria) ([]models.GazetteerRecord, error) {
	where := []string{"street_name_key = $1"}
	args := []interface{}{c.NameKey}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if c.StreetClass != "" {
		add("street_class = $%d", c.StreetClass)
	}
	if c.HouseNumber != nil {
		add("house_number = $%d", *c.HouseNumber)
	}
	if c.PostalCode != "" {
		add("postal_code = $%d", c.PostalCode)
	}
	if c.DistrictCode != 0 {
		add("district_code = $%d", c.DistrictCode)
	}
	query := "SELECT " + recordColumns + " FROM gazetteer_addresses WHERE " +
		strings.Join(where, " AND ") + " ORDER BY house_number NULLS LAST"
	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) SearchByFuzzyMatch(ctx context.Context, c Criteria, threshold float64) ([]models.GazetteerRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM gazetteer_addresses
		WHERE similarity(street_name_normalized, $1) >= $3
		   OR similarity(street_name_key, $2) >= $3
		ORDER BY GREATEST(similarity(street_name_normalized, $1), similarity(street_name_key, $2)) DESC
		LIMIT 2000`
	return r.query(ctx, query, c.NameNormalized, c.NameKey, threshold*trigramPrefilterFactor)
}

func (r *PostgresRepository) SearchByGeographicProximity(ctx context.Context, lat, lon, radiusMeters float64) ([]models.GazetteerRecord, error) {
	minLat, minLon, maxLat, maxLon := geo.BoundingBox(lat, lon, radiusMeters*1.01)
	query := `SELECT ` + recordColumns + `
		FROM gazetteer_addresses
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4`
	return r.query(ctx, query, minLat, maxLat, minLon, maxLon)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.GazetteerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gazetteer_addresses: %w", err)
	}
	defer rows.Close()

	var out []models.GazetteerRecord
	for rows.Next() {
		var (
			rec         models.GazetteerRecord
			houseNumber sql.NullInt64
			suffix      sql.NullString
			neighbor    sql.NullString
			version     sql.NullString
			updatedAt   pq.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.SegmentID, &rec.StreetClass, &rec.StreetName,
			&rec.StreetNameNormalized, &rec.StreetNameKey, &houseNumber, &suffix,
			&rec.PostalCode, &rec.DistrictCode, &rec.DistrictName, &neighbor,
			&rec.Latitude, &rec.Longitude, &version, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning gazetteer row: %w", err)
		}
		if houseNumber.Valid {
			rec.HouseNumber = models.IntPtr(int(houseNumber.Int64))
		}
		rec.NumberSuffix = suffix.String
		rec.NeighborhoodName = neighbor.String
		rec.GazetteerVersion = version.String
		if updatedAt.Valid {
			rec.UpdatedAt = updatedAt.Time
		}
		rec.Location = models.NewGeoPoint(rec.Latitude, rec.Longitude)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Upsert INSERT ... ON CONFLICT in a single transaction
func (r *PostgresRepository) Upsert(ctx context.Context, records []models.GazetteerRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO gazetteer_addresses (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			segment_id = EXCLUDED.segment_id, street_class = EXCLUDED.street_class,
			street_name = EXCLUDED.street_name, street_name_normalized = EXCLUDED.street_name_normalized,
			street_name_key = EXCLUDED.street_name_key, house_number = EXCLUDED.house_number,
			number_suffix = EXCLUDED.number_suffix, postal_code = EXCLUDED.postal_code,
			district_code = EXCLUDED.district_code, district_name = EXCLUDED.district_name,
			neighborhood_name = EXCLUDED.neighborhood_name, latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude, gazetteer_version = EXCLUDED.gazetteer_version,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := records[i]
		PrepareRecord(&rec, "")
		var houseNumber interface{}
		if rec.HouseNumber != nil {
			houseNumber = *rec.HouseNumber
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.SegmentID, rec.StreetClass, rec.StreetName,
			rec.StreetNameNormalized, rec.StreetNameKey, houseNumber, rec.NumberSuffix,
			rec.PostalCode, rec.DistrictCode, rec.DistrictName, rec.NeighborhoodName,
			rec.Latitude, rec.Longitude, rec.GazetteerVersion, rec.UpdatedAt); err != nil {
			return 0, fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(records), nil
}

// EnsureIndexes creates the table, pg_trgm and the lookup indexes
func (r *PostgresRepository) EnsureIndexes(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		`CREATE TABLE IF NOT EXISTS gazetteer_addresses (
			id TEXT PRIMARY KEY,
			segment_id TEXT NOT NULL DEFAULT '',
			street_class TEXT NOT NULL,
			street_name TEXT NOT NULL,
			street_name_normalized TEXT NOT NULL,
			street_name_key TEXT NOT NULL,
			house_number INTEGER,
			number_suffix TEXT,
			postal_code CHAR(5) NOT NULL,
			district_code SMALLINT NOT NULL CHECK (district_code BETWEEN 1 AND 21),
			district_name TEXT NOT NULL,
			neighborhood_name TEXT,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			gazetteer_version TEXT,
			updated_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_exact ON gazetteer_addresses (street_name_key, street_class, house_number)`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_name_trgm ON gazetteer_addresses USING gin (street_name_normalized gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_key_trgm ON gazetteer_addresses USING gin (street_name_key gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_gazetteer_latlon ON gazetteer_addresses (latitude, longitude)`,
	}
	for i, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("gazetteer schema step %d: %w", i, err)
		}
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gazetteer_addresses`).Scan(&n)
	return n, err
}

package postgis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
	_ "github.com/lib/pq"
)

const insertQuery = `
	INSERT INTO media_points (position, id, location, city, region, country, natural_feature, media, attributes)
	VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326), $5, $6, $7, $8, $9)
`

// Store keeps media points in a PostGIS table and serves them as a dataset
type Store struct {
	db  *sql.DB
	log *slog.Logger
	// progress is called after every committed batch
	progress func(done, total int)
}

// Config holds the connection parameters
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the lib/pq connection string
func (c Config) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, ssl)
}

// Open connects to PostGIS
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, log), nil
}

// New wraps an open database handle
func New(db *sql.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}
}

// OnProgress registers fn to be called after every committed insert batch
func (s *Store) OnProgress(fn func(done, total int)) {
	s.progress = fn
}

func (s *Store) report(done, total int) {
	if s.progress != nil {
		s.progress(done, total)
	}
}

// InitSchema recreates the table and its spatial index
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`DROP TABLE IF EXISTS media_points`,
		`CREATE TABLE media_points (
			position INTEGER NOT NULL,
			id TEXT PRIMARY KEY,
			location GEOMETRY(POINT, 4326) NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			natural_feature TEXT NOT NULL DEFAULT '',
			media JSONB,
			attributes JSONB
		)`,
		`CREATE INDEX idx_media_points_location ON media_points USING GIST(location)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", q, err)
		}
	}
	return nil
}

func encodeJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BulkInsert stores points in order, committing every batchSize rows
func (s *Store) BulkInsert(ctx context.Context, points []models.MediaPoint) error {
	const batchSize = 5000
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	for i, p := range points {
		media, err := encodeJSON(p.Media, p.Media == nil)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode media of %s: %w", p.ID, err)
		}
		attrs, err := encodeJSON(p.Attributes, len(p.Attributes) == 0)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode attributes of %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, p.ID, p.Longitude, p.Latitude,
			p.City, p.Region, p.Country, p.NaturalFeature, media, attrs); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert point %s: %w", p.ID, err)
		}

		if (i+1)%batchSize == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			s.report(i+1, len(points))
			if tx, err = s.db.BeginTx(ctx, nil); err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			if stmt, err = tx.PrepareContext(ctx, insertQuery); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to prepare statement: %w", err)
			}
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}
	s.report(len(points), len(points))

	s.log.Info("postgis_bulk_insert", "points", len(points), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Load returns every stored point in insertion order
func (s *Store) Load(ctx context.Context) ([]models.MediaPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ST_X(location), ST_Y(location), city, region, country, natural_feature, media, attributes
		FROM media_points
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

// QueryBox returns the points inside box in insertion order
func (s *Store) QueryBox(ctx context.Context, box models.BoundingBox) ([]models.MediaPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ST_X(location), ST_Y(location), city, region, country, natural_feature, media, attributes
		FROM media_points
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY position
	`, box.BottomLeft.Lon, box.BottomLeft.Lat, box.TopRight.Lon, box.TopRight.Lat)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

func scanPoints(rows *sql.Rows) ([]models.MediaPoint, error) {
	var out []models.MediaPoint
	for rows.Next() {
		var (
			p            models.MediaPoint
			media, attrs sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Longitude, &p.Latitude, &p.City, &p.Region,
			&p.Country, &p.NaturalFeature, &media, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if media.Valid && media.String != "" {
			p.Media = &models.Media{}
			if err := json.Unmarshal([]byte(media.String), p.Media); err != nil {
				return nil, fmt.Errorf("failed to decode media of %s: %w", p.ID, err)
			}
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &p.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode attributes of %s: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Count returns the number of stored points
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_points").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// Stats returns table size, index size and row count
func (s *Store) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var tableSize, indexSize string
	err := s.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('media_points')),
			pg_size_pretty(pg_indexes_size('media_points'))
	`).Scan(&tableSize, &indexSize)
	if err != nil {
		// table might not exist yet
		stats["table_size"] = "0 bytes"
		stats["index_size"] = "0 bytes"
	} else {
		stats["table_size"] = tableSize
		stats["index_size"] = indexSize
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats["row_count"] = count
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

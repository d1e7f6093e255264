// Package store persists assembled echogram metadata records in DuckDB.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/ooi-uploader/backend/internal/models"
)

// MetadataStore is the DuckDB-backed time-series store for metadata records.
// One record is written per successful ingest.
type MetadataStore struct {
	db     *sql.DB
	dbPath string
}

// Options tunes the DuckDB instance.
type Options struct {
	Threads     int
	MemoryLimit string
}

// DefaultOptions returns the store defaults used when no config is present.
func DefaultOptions() Options {
	return Options{Threads: 2, MemoryLimit: "512MB"}
}

// Open opens (or creates) the metadata database at dbPath.
func Open(dbPath string, opts Options) (*MetadataStore, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("opening DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS echogram_metadata (
			echogram_path      VARCHAR NOT NULL,
			file_time          DOUBLE NOT NULL,
			internal_timestamp DOUBLE NOT NULL,
			driver_timestamp   DOUBLE NOT NULL,
			source_files       VARCHAR,
			generator_name     VARCHAR,
			generator_version  VARCHAR,
			conversion_time    VARCHAR,
			ingested_at        TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating echogram_metadata table: %w", err)
	}

	return &MetadataStore{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// Insert writes one metadata record.
func (s *MetadataStore) Insert(rec *models.MetadataRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO echogram_metadata
			(echogram_path, file_time, internal_timestamp, driver_timestamp,
			 source_files, generator_name, generator_version, conversion_time, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EchogramPath, rec.FileTime, rec.InternalTimestamp, rec.DriverTimestamp,
		rec.Provenance.SourceFiles, rec.Provenance.GeneratorName,
		rec.Provenance.GeneratorVersion, rec.Provenance.ConversionTime,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting metadata record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest internal timestamp first.
func (s *MetadataStore) Recent(limit int) ([]*models.MetadataRecord, error) {
	rows, err := s.db.Query(`
		SELECT echogram_path, file_time, internal_timestamp, driver_timestamp,
		       source_files, generator_name, generator_version, conversion_time
		FROM echogram_metadata
		ORDER BY internal_timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying metadata records: %w", err)
	}
	defer rows.Close()

	var out []*models.MetadataRecord
	for rows.Next() {
		var rec models.MetadataRecord
		err := rows.Scan(&rec.EchogramPath, &rec.FileTime, &rec.InternalTimestamp,
			&rec.DriverTimestamp, &rec.Provenance.SourceFiles,
			&rec.Provenance.GeneratorName, &rec.Provenance.GeneratorVersion,
			&rec.Provenance.ConversionTime)
		if err != nil {
			return nil, fmt.Errorf("scanning metadata record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Count returns the total number of stored records.
func (s *MetadataStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM echogram_metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting metadata records: %w", err)
	}
	return n, nil
}

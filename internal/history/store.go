// Package history keeps published meter records in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"meters-poller/internal/meter"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	device_id INTEGER NOT NULL,
	type      TEXT    NOT NULL,
	name      TEXT    NOT NULL,
	read_at   INTEGER NOT NULL,
	voltage   REAL,
	current   REAL,
	p_active  REAL,
	pf        REAL,
	freq      REAL,
	e_total   REAL,
	e_pos     REAL,
	e_rev     REAL
);
CREATE INDEX IF NOT EXISTS idx_readings_device_time ON readings(device_id, read_at);
`

// Store appends records to SQLite
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// One writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one record. NaN fields are stored as NULL.
func (s *Store) Record(ctx context.Context, rec meter.Record) error {
	readAt := rec.ReadAt
	if readAt.IsZero() {
		readAt = time.Now()
	}
	m := rec.Measurements

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (device_id, type, name, read_at, voltage, current, p_active, pf, freq, e_total, e_pos, e_rev)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DeviceID, rec.Type, rec.Name, readAt.UnixMilli(),
		toNull(m.Voltage), toNull(m.Current), toNull(m.ActivePower), toNull(m.PowerFactor),
		toNull(m.Frequency), toNull(m.EnergyTotal), toNull(m.EnergyImport), toNull(m.EnergyExport),
	)
	if err != nil {
		return fmt.Errorf("insert reading for device %d: %w", rec.DeviceID, err)
	}
	return nil
}

// Latest returns up to limit records for a device, newest first
func (s *Store) Latest(ctx context.Context, deviceID, limit int) ([]meter.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, type, name, read_at, voltage, current, p_active, pf, freq, e_total, e_pos, e_rev
		FROM readings
		WHERE device_id = ?
		ORDER BY read_at DESC, id DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query readings for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	var out []meter.Record
	for rows.Next() {
		var (
			rec    meter.Record
			readAt int64
			vals   [8]sql.NullFloat64
		)
		if err := rows.Scan(&rec.DeviceID, &rec.Type, &rec.Name, &readAt,
			&vals[0], &vals[1], &vals[2], &vals[3], &vals[4], &vals[5], &vals[6], &vals[7]); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rec.ReadAt = time.UnixMilli(readAt)
		rec.Measurements = meter.NewMeasurements()
		for i, f := range meter.MeasurementFields {
			if vals[i].Valid {
				rec.Measurements.Set(f, vals[i].Float64)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Package sqlite persists recorded laps and their telemetry samples so a
// past lap can be reloaded as the reference for a later session.
package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/apex-data/coach.report/internal/telemetry"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) a lap database at path. The base schema
// is bootstrapped inline; schema evolution beyond it goes through the
// migration files in migrations/.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS laps (
			id                TEXT PRIMARY KEY,
			session_id        TEXT NOT NULL,
			lap_number        BIGINT NOT NULL,
			track             TEXT,
			car               TEXT,
			lap_time_s        DOUBLE,
			sample_count      BIGINT NOT NULL,
			is_reference      BOOLEAN NOT NULL DEFAULT 0,
			created           TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS lap_samples (
			lap_id            TEXT NOT NULL,
			seq               BIGINT NOT NULL,
			timestamp_us      BIGINT NOT NULL,
			speed_mps         DOUBLE,
			throttle          DOUBLE,
			brake             DOUBLE,
			steering_rad      DOUBLE,
			slip_fl           DOUBLE,
			slip_fr           DOUBLE,
			slip_rl           DOUBLE,
			slip_rr           DOUBLE,
			g_lat             DOUBLE,
			g_long            DOUBLE,
			rpm               DOUBLE,
			gear              BIGINT,
			lap_number        BIGINT,
			lap_dist_pct      DOUBLE,
			world_x           DOUBLE,
			world_y           DOUBLE,
			PRIMARY KEY (lap_id, seq),
			FOREIGN KEY(lap_id) REFERENCES laps(id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// LapMeta is a lap's summary row.
type LapMeta struct {
	ID          string
	SessionID   string
	LapNumber   int
	Track       string
	Car         string
	LapTimeS    float64
	SampleCount int
	IsReference bool
	Created     time.Time
}

func (m LapMeta) String() string {
	ref := ""
	if m.IsReference {
		ref = " [reference]"
	}
	return fmt.Sprintf("lap %d (%s): %.3fs, %d samples%s", m.LapNumber, m.ID[:8], m.LapTimeS, m.SampleCount, ref)
}

// RecordLap stores a completed lap and all its samples in one transaction.
// Lap time is taken from the first and last sample timestamps.
func (db *DB) RecordLap(sessionID string, lapNumber int, trackName, car string, samples []telemetry.TelemetrySample) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("cannot record lap %d: no samples", lapNumber)
	}

	lapID := uuid.NewString()
	lapTimeS := float64(samples[len(samples)-1].TimestampUS-samples[0].TimestampUS) / 1e6

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO laps (id, session_id, lap_number, track, car, lap_time_s, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, lapID, sessionID, lapNumber, trackName, car, lapTimeS, len(samples))
	if err != nil {
		return "", fmt.Errorf("insert lap: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lap_samples (
			lap_id, seq, timestamp_us, speed_mps, throttle, brake, steering_rad,
			slip_fl, slip_fr, slip_rl, slip_rr, g_lat, g_long, rpm, gear,
			lap_number, lap_dist_pct, world_x, world_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		_, err := stmt.Exec(
			lapID, i, s.TimestampUS, s.SpeedMPS, s.Throttle, s.Brake, s.SteeringRad,
			s.Slip[telemetry.FrontLeft], s.Slip[telemetry.FrontRight],
			s.Slip[telemetry.RearLeft], s.Slip[telemetry.RearRight],
			s.GLat, s.GLong, s.RPM, s.Gear,
			s.LapNumber, nullableFloat(s.LapDistPct), s.WorldX, s.WorldY,
		)
		if err != nil {
			return "", fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return lapID, nil
}

// SetReference marks one lap as the reference for its session, clearing
// any previous reference in the same session.
func (db *DB) SetReference(lapID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sessionID string
	if err := tx.QueryRow(`SELECT session_id FROM laps WHERE id = ?`, lapID).Scan(&sessionID); err != nil {
		return fmt.Errorf("lap %s: %w", lapID, err)
	}
	if _, err := tx.Exec(`UPDATE laps SET is_reference = 0 WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE laps SET is_reference = 1 WHERE id = ?`, lapID); err != nil {
		return err
	}
	return tx.Commit()
}

// AutoSetReference marks the fastest complete lap of a session as the
// reference and returns its metadata.
func (db *DB) AutoSetReference(sessionID string) (LapMeta, error) {
	var id string
	err := db.QueryRow(`
		SELECT id FROM laps
		WHERE session_id = ? AND lap_time_s > 0
		ORDER BY lap_time_s ASC LIMIT 1
	`, sessionID).Scan(&id)
	if err != nil {
		return LapMeta{}, fmt.Errorf("no laps recorded for session %s: %w", sessionID, err)
	}
	if err := db.SetReference(id); err != nil {
		return LapMeta{}, err
	}
	return db.GetLap(id)
}

// GetLap loads one lap's metadata.
func (db *DB) GetLap(lapID string) (LapMeta, error) {
	row := db.QueryRow(`
		SELECT id, session_id, lap_number, track, car, lap_time_s, sample_count, is_reference, created
		FROM laps WHERE id = ?
	`, lapID)
	return scanLapMeta(row)
}

// GetReference returns the reference lap's metadata for a session.
func (db *DB) GetReference(sessionID string) (LapMeta, error) {
	row := db.QueryRow(`
		SELECT id, session_id, lap_number, track, car, lap_time_s, sample_count, is_reference, created
		FROM laps WHERE session_id = ? AND is_reference = 1
	`, sessionID)
	meta, err := scanLapMeta(row)
	if err != nil {
		return LapMeta{}, fmt.Errorf("no reference lap for session %s: %w", sessionID, err)
	}
	return meta, nil
}

// ListLaps returns all laps for a session ordered by lap number.
func (db *DB) ListLaps(sessionID string) ([]LapMeta, error) {
	rows, err := db.Query(`
		SELECT id, session_id, lap_number, track, car, lap_time_s, sample_count, is_reference, created
		FROM laps WHERE session_id = ? ORDER BY lap_number
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var laps []LapMeta
	for rows.Next() {
		meta, err := scanLapMeta(rows)
		if err != nil {
			return nil, err
		}
		laps = append(laps, meta)
	}
	return laps, rows.Err()
}

// LoadLapSamples loads a lap's full sample sequence in recorded order.
func (db *DB) LoadLapSamples(lapID string) ([]telemetry.TelemetrySample, error) {
	rows, err := db.Query(`
		SELECT timestamp_us, speed_mps, throttle, brake, steering_rad,
		       slip_fl, slip_fr, slip_rl, slip_rr, g_lat, g_long, rpm, gear,
		       lap_number, lap_dist_pct, world_x, world_y
		FROM lap_samples WHERE lap_id = ? ORDER BY seq
	`, lapID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.TelemetrySample
	for rows.Next() {
		var s telemetry.TelemetrySample
		var distPct sql.NullFloat64
		err := rows.Scan(
			&s.TimestampUS, &s.SpeedMPS, &s.Throttle, &s.Brake, &s.SteeringRad,
			&s.Slip[telemetry.FrontLeft], &s.Slip[telemetry.FrontRight],
			&s.Slip[telemetry.RearLeft], &s.Slip[telemetry.RearRight],
			&s.GLat, &s.GLong, &s.RPM, &s.Gear,
			&s.LapNumber, &distPct, &s.WorldX, &s.WorldY,
		)
		if err != nil {
			return nil, err
		}
		if distPct.Valid {
			s.LapDistPct = distPct.Float64
		} else {
			s.LapDistPct = math.NaN()
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("lap %s has no samples", lapID)
	}
	return samples, nil
}

// LoadReferenceLap loads the reference lap's samples for a session.
func (db *DB) LoadReferenceLap(sessionID string) (LapMeta, []telemetry.TelemetrySample, error) {
	meta, err := db.GetReference(sessionID)
	if err != nil {
		return LapMeta{}, nil, err
	}
	samples, err := db.LoadLapSamples(meta.ID)
	if err != nil {
		return LapMeta{}, nil, err
	}
	return meta, samples, nil
}

// nullableFloat maps NaN to NULL so unknown channel values round-trip.
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLapMeta(row rowScanner) (LapMeta, error) {
	var m LapMeta
	var created string
	err := row.Scan(&m.ID, &m.SessionID, &m.LapNumber, &m.Track, &m.Car,
		&m.LapTimeS, &m.SampleCount, &m.IsReference, &created)
	if err != nil {
		return LapMeta{}, err
	}
	if t, perr := time.Parse("2006-01-02 15:04:05", created); perr == nil {
		m.Created = t
	}
	return m, nil
}

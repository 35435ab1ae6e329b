package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"umap-replay/src/logger"
	"umap-replay/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteFrameStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteFrameStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteFrameStore, error) {
	return &SQLiteFrameStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteFrameStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteFrameStore) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS playback_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time_step INTEGER NOT NULL,
			label TEXT,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create playback_frames: %w", err)
	}

	if _, err := d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_frames_step ON playback_frames (time_step);"); err != nil {
		return fmt.Errorf("failed to create frame index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteFrameStore) SaveFrame(frame *models.MPlaybackFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	_, err = d.DB.Exec(
		"INSERT INTO playback_frames (time_step, label, payload, created_at) VALUES (?, ?, ?, ?)",
		frame.TimeStep, frame.Label, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteFrameStore) RecentFrames(limit int) ([]models.MPlaybackFrame, error) {
	rows, err := d.DB.Query(
		"SELECT payload FROM playback_frames ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []models.MPlaybackFrame
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var frame models.MPlaybackFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			d.Logger.Warning("skipping unreadable frame row: %v", err)
			continue
		}
		frames = append(frames, frame)
	}

	return frames, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteFrameStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

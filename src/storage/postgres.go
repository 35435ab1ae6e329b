package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"umap-replay/src/logger"
	"umap-replay/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresFrameStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresFrameStore(cfg *models.MConfig, log *logger.Logger) (*PostgresFrameStore, error) {
	return &PostgresFrameStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresFrameStore) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresFrameStore) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS playback_frames (
			id BIGSERIAL PRIMARY KEY,
			time_step INTEGER NOT NULL,
			label TEXT,
			payload TEXT NOT NULL,
			created_at BIGINT NOT NULL
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

func (d *PostgresFrameStore) SaveFrame(frame *models.MPlaybackFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	_, err = d.DB.Exec(
		"INSERT INTO playback_frames (time_step, label, payload, created_at) VALUES ($1, $2, $3, $4)",
		frame.TimeStep, frame.Label, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresFrameStore) RecentFrames(limit int) ([]models.MPlaybackFrame, error) {
	rows, err := d.DB.Query(
		"SELECT payload FROM playback_frames ORDER BY id DESC LIMIT $1", limit,
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

func (d *PostgresFrameStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

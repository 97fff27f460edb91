// internal/storage/postgres/client.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/fawad-mazhar/helios/internal/models"
	_ "github.com/lib/pq"
)

// Client archives terminal runs so batches can be inspected after the
// registry has been reset. The archive is optional; the dashboard
// works without it.
type Client struct {
	db *sql.DB
}

func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// EnsureSchema creates the archive table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_archive (
			id          BIGSERIAL PRIMARY KEY,
			port        INTEGER NOT NULL,
			status      TEXT NOT NULL,
			sim_time    DOUBLE PRECISION NOT NULL,
			wall_time   DOUBLE PRECISION NOT NULL,
			started_at  TIMESTAMPTZ,
			ended_at    TIMESTAMPTZ,
			error       TEXT,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	_, err := c.db.ExecContext(ctx, query)
	return err
}

// ArchiveRun stores the final state of a terminal run.
func (c *Client) ArchiveRun(ctx context.Context, state models.RunState) error {
	query := `
		INSERT INTO run_archive (port, status, sim_time, wall_time, started_at, ended_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`

	var startedAt interface{}
	if !state.StartedAt.IsZero() {
		startedAt = state.StartedAt
	}

	_, err := c.db.ExecContext(ctx, query,
		state.Port,
		state.Status,
		state.SimTime,
		state.WallTime,
		startedAt,
		state.EndedAt,
		state.Error,
	)
	return err
}

// ArchivedRun is one archived terminal run.
type ArchivedRun struct {
	Port       int              `json:"port"`
	Status     models.RunStatus `json:"status"`
	SimTime    float64          `json:"simtime"`
	WallTime   float64          `json:"walltime"`
	Error      string           `json:"error,omitempty"`
	ArchivedAt time.Time        `json:"archivedAt"`
}

// ListRuns returns the most recently archived runs, newest first.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]ArchivedRun, error) {
	query := `
		SELECT port, status, sim_time, wall_time, COALESCE(error, ''), archived_at
		FROM run_archive
		ORDER BY archived_at DESC
		LIMIT $1`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run archive: %w", err)
	}
	defer rows.Close()

	var runs []ArchivedRun
	for rows.Next() {
		var run ArchivedRun
		if err := rows.Scan(&run.Port, &run.Status, &run.SimTime, &run.WallTime, &run.Error, &run.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archived run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

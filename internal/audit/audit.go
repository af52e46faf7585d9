package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusAborted Status = "aborted"
	StatusFailure Status = "failure"
)

const createSyncRunsTableSQL = `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id                   UUID PRIMARY KEY,
		operator_id          TEXT NOT NULL,
		hub_id               TEXT NOT NULL,
		project_id           TEXT NOT NULL,
		status               TEXT NOT NULL,
		started_at           TIMESTAMPTZ NOT NULL,
		finished_at          TIMESTAMPTZ NOT NULL,
		created              INT NOT NULL DEFAULT 0,
		updated              INT NOT NULL DEFAULT 0,
		deleted              INT NOT NULL DEFAULT 0,
		skipped_admins       INT NOT NULL DEFAULT 0,
		skipped_non_existent INT NOT NULL DEFAULT 0,
		error_count          INT NOT NULL DEFAULT 0,
		aborted              BOOLEAN NOT NULL DEFAULT false,
		error_message        TEXT NOT NULL DEFAULT ''
	)`

// Event is one row of sync_runs.
type Event struct {
	ID                 uuid.UUID
	OperatorID         string
	HubID              string
	ProjectID          string
	Status             Status
	StartedAt          time.Time
	FinishedAt         time.Time
	Created            int
	Updated            int
	Deleted            int
	SkippedAdmins      int
	SkippedNonExistent int
	ErrorCount         int
	Aborted            bool
	ErrorMessage       string
}

// EventFromRun flattens a run record.
func EventFromRun(run reconcile.RunRecord) *Event {
	ev := &Event{
		ID:         run.ID,
		OperatorID: run.OperatorID,
		HubID:      run.HubID,
		ProjectID:  run.ProjectID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     StatusSuccess,
	}
	if run.Err != nil {
		ev.Status = StatusFailure
		ev.ErrorMessage = logger.SanitizeLogMessage(run.Err.Error())
	}
	if s := run.Summary; s != nil {
		ev.Created = s.Created
		ev.Updated = s.Updated
		ev.Deleted = s.Deleted
		ev.SkippedAdmins = s.SkippedAdmins
		ev.SkippedNonExistent = s.SkippedNonExistent
		ev.ErrorCount = len(s.Errors)
		ev.Aborted = s.Aborted
		switch {
		case s.Aborted:
			ev.Status = StatusAborted
		case len(s.Errors) > 0:
			ev.Status = StatusPartial
		}
	}
	return ev
}

// Logger writes sync runs to Postgres.
type Logger struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool, logger: log.Default()}
}

// EnsureSchema creates the sync_runs table if it does not exist.
func (l *Logger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, createSyncRunsTableSQL); err != nil {
		return fmt.Errorf("failed to create sync_runs table: %w", err)
	}
	return nil
}

// Log inserts event.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO sync_runs (
			id, operator_id, hub_id, project_id, status, started_at, finished_at,
			created, updated, deleted, skipped_admins, skipped_non_existent,
			error_count, aborted, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := l.pool.Exec(ctx, query,
		event.ID,
		event.OperatorID,
		event.HubID,
		event.ProjectID,
		event.Status,
		event.StartedAt,
		event.FinishedAt,
		event.Created,
		event.Updated,
		event.Deleted,
		event.SkippedAdmins,
		event.SkippedNonExistent,
		event.ErrorCount,
		event.Aborted,
		event.ErrorMessage,
	)
	return err
}

// RecordRun implements reconcile.Auditor. Write failures are logged only.
func (l *Logger) RecordRun(ctx context.Context, run reconcile.RunRecord) {
	if err := l.Log(ctx, EventFromRun(run)); err != nil {
		l.logger.Printf("audit log failed for run %s: %v", run.ID, err)
	}
}

// QueryFilter narrows Query.
type QueryFilter struct {
	OperatorID string
	ProjectID  string
	Limit      int
}

// Query returns the most recent runs, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	query := `
		SELECT id, operator_id, hub_id, project_id, status, started_at, finished_at,
		       created, updated, deleted, skipped_admins, skipped_non_existent,
		       error_count, aborted, error_message
		FROM sync_runs
		WHERE 1=1
	`
	args := []any{}
	argCount := 1

	if filter.OperatorID != "" {
		query += fmt.Sprintf(" AND operator_id = $%d", argCount)
		args = append(args, filter.OperatorID)
		argCount++
	}
	if filter.ProjectID != "" {
		query += fmt.Sprintf(" AND project_id = $%d", argCount)
		args = append(args, filter.ProjectID)
		argCount++
	}

	query += " ORDER BY started_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argCount)
	args = append(args, limit)

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev := &Event{}
		if err := rows.Scan(
			&ev.ID, &ev.OperatorID, &ev.HubID, &ev.ProjectID, &ev.Status, &ev.StartedAt, &ev.FinishedAt,
			&ev.Created, &ev.Updated, &ev.Deleted, &ev.SkippedAdmins, &ev.SkippedNonExistent,
			&ev.ErrorCount, &ev.Aborted, &ev.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}
	return events, nil
}

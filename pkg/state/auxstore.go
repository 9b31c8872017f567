package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/opnforge/opnforge/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// AuxStore is the auxiliary SQLite-backed history store for Plans, Runs,
// Events, and the audit trail, adapted from the teacher's stores.SQLiteStore.
// The Deployment document of record lives in FileStore; AuxStore exists so
// the Tool Surface can answer "what happened" questions without replaying
// the encrypted state file.
type AuxStore struct {
	db   *sql.DB
	path string
}

// NewAuxStore opens (creating if necessary) the SQLite database at path and
// runs pending migrations.
func NewAuxStore(ctx context.Context, path string) (*AuxStore, error) {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening aux store: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging aux store: %w", err)
	}

	s := &AuxStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AuxStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *AuxStore) Close() error { return s.db.Close() }

// RecordPlan persists plan's header fields for later lookup/listing.
func (s *AuxStore) RecordPlan(ctx context.Context, plan *engine.Plan) error {
	summary, err := json.Marshal(plan.Summary)
	if err != nil {
		return fmt.Errorf("encoding plan summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, deployment_id, state_version, summary_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		plan.ID, plan.DeploymentID, plan.StateVersion, string(summary), plan.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// RunStatus is the lifecycle of one apply/destroy invocation against a plan.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusRolledBack RunStatus = "rolled_back"
)

// StartRun inserts a new run row, under the caller-supplied id, in
// RunStatusRunning.
func (s *AuxStore) StartRun(ctx context.Context, id, planID string, dryRun bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, status, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, planID, RunStatusRunning, boolToInt(dryRun), time.Now().Format(time.RFC3339Nano))
	return err
}

// FinishRun transitions a run to a terminal status, optionally recording an
// error message.
func (s *AuxStore) FinishRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	var errVal interface{}
	if errMsg != "" {
		errVal = errMsg
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status, time.Now().Format(time.RFC3339Nano), errVal, id)
	return err
}

// AppendEvent records one structured progress line for a run.
func (s *AuxStore) AppendEvent(ctx context.Context, runID, resourceID, level, message string) error {
	var resourceVal interface{}
	if resourceID != "" {
		resourceVal = resourceID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, resource_id, level, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, resourceVal, level, message, time.Now().Format(time.RFC3339Nano))
	return err
}

// AuditEntry is one durable record of a privileged action (apply, rollback,
// checkpoint creation) for after-the-fact review.
type AuditEntry struct {
	Actor      string
	Action     string
	ResourceID string
	Detail     map[string]interface{}
	CreatedAt  time.Time
}

// RecordAudit appends an immutable audit trail entry.
func (s *AuxStore) RecordAudit(ctx context.Context, entry AuditEntry) error {
	var detailJSON interface{}
	if entry.Detail != nil {
		b, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("encoding audit detail: %w", err)
		}
		detailJSON = string(b)
	}
	var resourceVal interface{}
	if entry.ResourceID != "" {
		resourceVal = entry.ResourceID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (actor, action, resource_id, detail_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Actor, entry.Action, resourceVal, detailJSON, time.Now().Format(time.RFC3339Nano))
	return err
}

// ListAuditEntries returns up to limit audit entries (most recent first),
// optionally filtered by action.
func (s *AuxStore) ListAuditEntries(ctx context.Context, action string, limit int) ([]AuditEntry, error) {
	var rows *sql.Rows
	var err error
	if action != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT actor, action, resource_id, detail_json, created_at
			FROM audit_entries WHERE action = ? ORDER BY id DESC LIMIT ?`, action, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT actor, action, resource_id, detail_json, created_at
			FROM audit_entries ORDER BY id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var resourceID, detailJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&e.Actor, &e.Action, &resourceID, &detailJSON, &createdAt); err != nil {
			return nil, err
		}
		e.ResourceID = resourceID.String
		if detailJSON.Valid {
			if err := json.Unmarshal([]byte(detailJSON.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("decoding audit detail: %w", err)
			}
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

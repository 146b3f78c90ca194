package database

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"discleanse/models"
	"discleanse/utils"

	"github.com/google/uuid"
)

// AuditLog records what each run deleted. It is write-only while a run is in
// progress; nothing reads it back to resume work.
type AuditLog struct {
	db  *sql.DB
	now func() time.Time

	mu    sync.Mutex
	runID string // current run, empty between runs
}

// NewAuditLog wraps an initialized database.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db, now: time.Now}
}

// OpenAuditLog calls InitDB and wraps the result.
func OpenAuditLog(dbPath string) (*AuditLog, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	return NewAuditLog(db), nil
}

// Close closes the database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// StartRun inserts a running row and returns its id.
func (a *AuditLog) StartRun(guildID, guildName string) (string, error) {
	id := uuid.NewString()
	_, err := a.db.Exec(`INSERT INTO runs (run_id, guild_id, guild_name, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, guildID, guildName, a.now().UnixMilli(), models.RunRunning)
	if err != nil {
		return "", fmt.Errorf("failed to insert run for guild %s: %w", guildID, err)
	}
	return id, nil
}

// RecordContainer stores one drained container.
func (a *AuditLog) RecordContainer(runID string, s models.ContainerStats) error {
	_, err := a.db.Exec(`
    INSERT INTO containers (
        run_id, container_id, name, kind, bulk_deleted, individual_deleted, skipped, deleted, elapsed_ms
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, s.Container.ID, s.Container.Name, string(s.Container.Kind),
		s.BulkDeleted, s.IndividualDeleted, s.Skipped, s.Deleted, s.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record container %s: %w", s.Container.ID, err)
	}
	return nil
}

// FinishRun closes a run with its totals. A non-nil runErr marks it failed.
func (a *AuditLog) FinishRun(runID string, s models.RunStats, runErr error) error {
	status, message := models.RunFinished, ""
	if runErr != nil {
		status, message = models.RunFailed, runErr.Error()
	}
	res, err := a.db.Exec(`
    UPDATE runs SET finished_at = ?, status = ?, bulk_deleted = ?, individual_deleted = ?,
        skipped = ?, channels_deleted = ?, error = ?
    WHERE run_id = ?`,
		a.now().UnixMilli(), status, s.BulkDeleted, s.IndividualDeleted, s.Skipped, s.ChannelsDeleted, message, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (a *AuditLog) ListRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.Query(`
    SELECT run_id, guild_id, COALESCE(guild_name, ''), started_at, COALESCE(finished_at, 0), status,
        bulk_deleted, individual_deleted, skipped, channels_deleted, COALESCE(error, '')
    FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.GuildID, &r.GuildName, &started, &finished, &r.Status,
			&r.BulkDeleted, &r.IndividualDeleted, &r.Skipped, &r.ChannelsDeleted, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListContainers returns the containers recorded for a run in drain order.
func (a *AuditLog) ListContainers(runID string) ([]models.ContainerRecord, error) {
	rows, err := a.db.Query(`
    SELECT container_id, COALESCE(name, ''), COALESCE(kind, ''), bulk_deleted, individual_deleted, skipped, deleted, elapsed_ms
    FROM containers WHERE run_id = ? ORDER BY db_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []models.ContainerRecord
	for rows.Next() {
		c := models.ContainerRecord{RunID: runID}
		var kind string
		var elapsed int64
		if err := rows.Scan(&c.ContainerID, &c.Name, &kind, &c.BulkDeleted, &c.IndividualDeleted, &c.Skipped, &c.Deleted, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		c.Kind = models.ContainerKind(kind)
		c.Elapsed = time.Duration(elapsed) * time.Millisecond
		out = append(out, c)
	}
	return out, rows.Err()
}

// The methods below let an AuditLog observe a pipeline run. Write failures
// are logged and never interrupt the wipe.

func (a *AuditLog) RunStarted(tree models.GuildTree) {
	id, err := a.StartRun(tree.GuildID, tree.GuildName)
	if err != nil {
		utils.Warn("database", "start_run", err.Error())
	}
	a.mu.Lock()
	a.runID = id
	a.mu.Unlock()
}

func (a *AuditLog) PhaseStarted(models.Phase, int)                            {}
func (a *AuditLog) ContainerStarted(models.Container, models.Phase, int, int) {}
func (a *AuditLog) Progress(models.ProgressEvent)                             {}

func (a *AuditLog) ContainerFinished(s models.ContainerStats) {
	id := a.current()
	if id == "" {
		return
	}
	if err := a.RecordContainer(id, s); err != nil {
		utils.Warn("database", "record_container", err.Error())
	}
}

func (a *AuditLog) RunFinished(s models.RunStats, runErr error) {
	id := a.current()
	if id == "" {
		return
	}
	if err := a.FinishRun(id, s, runErr); err != nil {
		utils.Warn("database", "finish_run", err.Error())
	}
	a.mu.Lock()
	a.runID = ""
	a.mu.Unlock()
}

func (a *AuditLog) current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runID
}

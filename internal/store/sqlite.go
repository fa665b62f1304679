package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/1kastner/sherpa/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- time helpers ---

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339Nano)
	return &v
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, _ := time.Parse(time.RFC3339Nano, *s)
	return &t
}

// --- Study CRUD ---

func (s *SQLiteStore) CreateStudy(ctx context.Context, st *model.Study) error {
	s.logger.Debug("sql", "op", "insert", "table", "studies", "id", st.ID)

	labelsJSON, err := json.Marshal(st.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	definition := string(st.Definition)
	if definition == "" {
		definition = "{}"
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO studies (id, name, state, lower_is_better, min_resource, max_resource, eta,
		 max_finished_trials, seed, definition, labels, submitted_by, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, string(st.State), boolToInt(st.LowerIsBetter),
		st.MinResource, st.MaxResource, st.Eta,
		st.MaxFinishedTrials, st.Seed, definition, string(labelsJSON), st.SubmittedBy,
		st.CreatedAt.Format(time.RFC3339Nano), formatTimePtr(st.FinishedAt),
	)
	return err
}

func (s *SQLiteStore) GetStudy(ctx context.Context, id string) (*model.Study, error) {
	s.logger.Debug("sql", "op", "select", "table", "studies", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, state, lower_is_better, min_resource, max_resource, eta,
		 max_finished_trials, seed, definition, labels, submitted_by, created_at, finished_at
		 FROM studies WHERE id = ?`, id)

	st, err := scanStudy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

func (s *SQLiteStore) ListStudies(ctx context.Context, opts model.ListOptions) ([]*model.Study, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "studies", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var countArgs []any
	if opts.State != "" {
		where = " WHERE state = ?"
		countArgs = append(countArgs, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM studies`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(countArgs, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, state, lower_is_better, min_resource, max_resource, eta,
		 max_finished_trials, seed, definition, labels, submitted_by, created_at, finished_at
		 FROM studies`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var studies []*model.Study
	for rows.Next() {
		st, err := scanStudy(rows)
		if err != nil {
			return nil, 0, err
		}
		studies = append(studies, st)
	}
	return studies, total, rows.Err()
}

func (s *SQLiteStore) UpdateStudy(ctx context.Context, st *model.Study) error {
	s.logger.Debug("sql", "op", "update", "table", "studies", "id", st.ID)

	labelsJSON, err := json.Marshal(st.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE studies SET name=?, state=?, labels=?, finished_at=? WHERE id=?`,
		st.Name, string(st.State), string(labelsJSON), formatTimePtr(st.FinishedAt), st.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("study %s not found", st.ID)
	}
	return nil
}

func scanStudy(row scanner) (*model.Study, error) {
	var st model.Study
	var state, definition, labelsJSON, createdAt string
	var lowerIsBetter int
	var finishedAt *string

	err := row.Scan(&st.ID, &st.Name, &state, &lowerIsBetter,
		&st.MinResource, &st.MaxResource, &st.Eta,
		&st.MaxFinishedTrials, &st.Seed, &definition, &labelsJSON, &st.SubmittedBy,
		&createdAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	st.State = model.StudyState(state)
	st.LowerIsBetter = lowerIsBetter != 0
	st.Definition = json.RawMessage(definition)
	json.Unmarshal([]byte(labelsJSON), &st.Labels)
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	st.FinishedAt = parseTimePtr(finishedAt)

	return &st, nil
}

// --- Trial operations ---

func (s *SQLiteStore) CreateTrial(ctx context.Context, studyID string, t *model.Trial) error {
	s.logger.Debug("sql", "op", "insert", "table", "trials", "study_id", studyID, "id", t.ID)

	paramsJSON, err := json.Marshal(t.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trials (study_id, id, parameters, rung, resource_from, resource_to,
		 parent_id, state, worker_id, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		studyID, t.ID, string(paramsJSON), t.Rung, t.ResourceFrom, t.ResourceTo,
		t.ParentID, string(t.State), t.WorkerID,
		t.CreatedAt.Format(time.RFC3339Nano), formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) UpdateTrial(ctx context.Context, studyID string, t *model.Trial) error {
	s.logger.Debug("sql", "op", "update", "table", "trials", "study_id", studyID, "id", t.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE trials SET state=?, worker_id=?, started_at=?, completed_at=?
		 WHERE study_id=? AND id=?`,
		string(t.State), t.WorkerID, formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
		studyID, t.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("trial %d in study %s not found", t.ID, studyID)
	}
	return nil
}

func (s *SQLiteStore) GetTrial(ctx context.Context, studyID string, id int) (*model.Trial, error) {
	s.logger.Debug("sql", "op", "select", "table", "trials", "study_id", studyID, "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, parameters, rung, resource_from, resource_to, parent_id, state,
		 worker_id, created_at, started_at, completed_at
		 FROM trials WHERE study_id = ? AND id = ?`, studyID, id)

	t, err := scanTrial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) ListTrials(ctx context.Context, studyID string) ([]*model.Trial, error) {
	s.logger.Debug("sql", "op", "list", "table", "trials", "study_id", studyID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parameters, rung, resource_from, resource_to, parent_id, state,
		 worker_id, created_at, started_at, completed_at
		 FROM trials WHERE study_id = ? ORDER BY id`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trials []*model.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

func scanTrial(row scanner) (*model.Trial, error) {
	var t model.Trial
	var paramsJSON, state, createdAt string
	var startedAt, completedAt *string

	err := row.Scan(&t.ID, &paramsJSON, &t.Rung, &t.ResourceFrom, &t.ResourceTo,
		&t.ParentID, &state, &t.WorkerID, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.State = model.TrialState(state)
	json.Unmarshal([]byte(paramsJSON), &t.Parameters)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.StartedAt = parseTimePtr(startedAt)
	t.CompletedAt = parseTimePtr(completedAt)

	return &t, nil
}

// --- Observation log ---

func (s *SQLiteStore) AppendObservation(ctx context.Context, studyID string, obs *model.Observation) error {
	s.logger.Debug("sql", "op", "insert", "table", "observations", "study_id", studyID, "trial_id", obs.TrialID)

	contextJSON, err := json.Marshal(obs.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO observations (study_id, trial_id, rung, objective, context, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		studyID, obs.TrialID, obs.Rung, obs.Objective, string(contextJSON),
		obs.RecordedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) ListObservations(ctx context.Context, studyID string) ([]*model.Observation, error) {
	s.logger.Debug("sql", "op", "list", "table", "observations", "study_id", studyID)

	// rowid order is insertion order; restores depend on it.
	rows, err := s.db.QueryContext(ctx,
		`SELECT trial_id, rung, objective, context, recorded_at
		 FROM observations WHERE study_id = ? ORDER BY rowid`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*model.Observation
	for rows.Next() {
		var obs model.Observation
		var contextJSON, recordedAt string

		if err := rows.Scan(&obs.TrialID, &obs.Rung, &obs.Objective, &contextJSON, &recordedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(contextJSON), &obs.Context)
		obs.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)

		observations = append(observations, &obs)
	}
	return observations, rows.Err()
}

// --- Worker operations ---

func (s *SQLiteStore) CreateWorker(ctx context.Context, w *model.Worker) error {
	s.logger.Debug("sql", "op", "insert", "table", "workers", "id", w.ID)

	labelsJSON, err := json.Marshal(w.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workers (id, name, hostname, state, trainer, labels, last_seen,
		 current_trial, current_study, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.Hostname, string(w.State), string(w.Trainer),
		string(labelsJSON), w.LastSeen.Format(time.RFC3339Nano),
		w.CurrentTrial, w.CurrentStudy, w.RegisteredAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	s.logger.Debug("sql", "op", "select", "table", "workers", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hostname, state, trainer, labels, last_seen,
		 current_trial, current_study, registered_at
		 FROM workers WHERE id = ?`, id)

	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (s *SQLiteStore) UpdateWorker(ctx context.Context, w *model.Worker) error {
	s.logger.Debug("sql", "op", "update", "table", "workers", "id", w.ID)

	labelsJSON, err := json.Marshal(w.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE workers SET name=?, hostname=?, state=?, trainer=?, labels=?,
		 last_seen=?, current_trial=?, current_study=? WHERE id=?`,
		w.Name, w.Hostname, string(w.State), string(w.Trainer),
		string(labelsJSON), w.LastSeen.Format(time.RFC3339Nano),
		w.CurrentTrial, w.CurrentStudy, w.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("worker %s not found", w.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteWorker(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "workers", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("worker %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) ListWorkers(ctx context.Context) ([]*model.Worker, error) {
	s.logger.Debug("sql", "op", "list", "table", "workers")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, hostname, state, trainer, labels, last_seen,
		 current_trial, current_study, registered_at
		 FROM workers ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func scanWorker(row scanner) (*model.Worker, error) {
	var w model.Worker
	var state, trainer, labelsJSON, lastSeen, registeredAt string

	err := row.Scan(&w.ID, &w.Name, &w.Hostname, &state, &trainer,
		&labelsJSON, &lastSeen, &w.CurrentTrial, &w.CurrentStudy, &registeredAt)
	if err != nil {
		return nil, err
	}

	w.State = model.WorkerState(state)
	w.Trainer = model.TrainerType(trainer)
	json.Unmarshal([]byte(labelsJSON), &w.Labels)
	w.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
	w.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredAt)

	return &w, nil
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

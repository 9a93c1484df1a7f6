package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded, single-binary alternative to PostgresStore,
// for deployments with no external database. Shares PostgresStore's schema
// and query shapes, translated to SQLite's positional-placeholder syntax.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes writes through a single connection;
	// a larger pool just produces SQLITE_BUSY under concurrent tasks.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	target_hwnds TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_checkpoints (
	task_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	messages BLOB,
	blackboard TEXT,
	app_agents TEXT,
	saved_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateTask(ctx context.Context, id, text string, targetHwnds []int64) error {
	hwndsJSON, err := json.Marshal(targetHwnds)
	if err != nil {
		return fmt.Errorf("marshal target hwnds: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, text, target_hwnds, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, text, hwndsJSON, string(StatusPending), "", "", now, now)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, target_hwnds, status, result, error, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	task, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, notFoundErr(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) Transition(ctx context.Context, id string, to Status, result, errMsg string) error {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, to) {
		return transitionErr(current.Status, to)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, result = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(to), result, errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, taskID string, iteration int, cp Checkpoint) error {
	blackboardJSON, err := json.Marshal(cp.Blackboard)
	if err != nil {
		return fmt.Errorf("marshal blackboard: %w", err)
	}
	appAgentsJSON, err := json.Marshal(cp.AppAgents)
	if err != nil {
		return fmt.Errorf("marshal app agents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_checkpoints (task_id, iteration, messages, blackboard, app_agents, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, taskID, iteration, cp.Messages, blackboardJSON, appAgentsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, iteration, messages, blackboard, app_agents, saved_at
		FROM task_checkpoints
		WHERE task_id = ?
		ORDER BY iteration DESC
		LIMIT 1
	`, taskID)

	var (
		cp             Checkpoint
		blackboardJSON []byte
		appAgentsJSON  []byte
	)
	err := row.Scan(&cp.TaskID, &cp.Iteration, &cp.Messages, &blackboardJSON, &appAgentsJSON, &cp.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest checkpoint: %w", err)
	}

	if len(blackboardJSON) > 0 {
		if err := json.Unmarshal(blackboardJSON, &cp.Blackboard); err != nil {
			return nil, fmt.Errorf("unmarshal blackboard: %w", err)
		}
	}
	if len(appAgentsJSON) > 0 {
		if err := json.Unmarshal(appAgentsJSON, &cp.AppAgents); err != nil {
			return nil, fmt.Errorf("unmarshal app agents: %w", err)
		}
	}
	return &cp, nil
}

// PruneCheckpoints deletes every checkpoint older than olderThan, except
// each task's single most recent one, so Resume always has something to
// load even for a long-idle task.
func (s *SQLiteStore) PruneCheckpoints(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM task_checkpoints AS tc
		WHERE saved_at < ?
		AND iteration < (
			SELECT MAX(iteration) FROM task_checkpoints WHERE task_id = tc.task_id
		)
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}
	return int(n), nil
}

package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresConfig tunes the connection pool, grounded on
// internal/tasks/cockroach.go's CockroachConfig.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore persists tasks and checkpoints to a Postgres-compatible
// database, grounded on internal/tasks/cockroach.go's CockroachStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDSN opens the pool and applies cfg, pinging the
// database before returning so misconfiguration surfaces at startup.
func NewPostgresStoreFromDSN(dsn string, cfg *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) CreateTask(ctx context.Context, id, text string, targetHwnds []int64) error {
	hwndsJSON, err := json.Marshal(targetHwnds)
	if err != nil {
		return fmt.Errorf("marshal target hwnds: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, text, target_hwnds, status, result, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id, text, hwndsJSON, string(StatusPending), "", "", now, now,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, target_hwnds, status, result, error, created_at, updated_at
		FROM tasks WHERE id = $1
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

func (s *PostgresStore) Transition(ctx context.Context, id string, to Status, result, errMsg string) error {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.Status, to) {
		return transitionErr(current.Status, to)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $2, result = $3, error = $4, updated_at = $5
		WHERE id = $1
	`, id, string(to), result, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	if rows == 0 {
		return notFoundErr(id)
	}
	return nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, taskID string, iteration int, cp Checkpoint) error {
	blackboardJSON, err := json.Marshal(cp.Blackboard)
	if err != nil {
		return fmt.Errorf("marshal blackboard: %w", err)
	}
	appAgentsJSON, err := json.Marshal(cp.AppAgents)
	if err != nil {
		return fmt.Errorf("marshal app agents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_checkpoints (
			task_id, iteration, messages, blackboard, app_agents, saved_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, taskID, iteration, cp.Messages, blackboardJSON, appAgentsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestCheckpoint(ctx context.Context, taskID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, iteration, messages, blackboard, app_agents, saved_at
		FROM task_checkpoints
		WHERE task_id = $1
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
// each task's highest-iteration one, so Resume always has something to
// load even for a long-idle task.
func (s *PostgresStore) PruneCheckpoints(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM task_checkpoints tc
		WHERE saved_at < $1
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(s scanner) (*Task, error) {
	var (
		task        Task
		status      string
		hwndsJSON   []byte
	)
	if err := s.Scan(&task.ID, &task.Text, &hwndsJSON, &status, &task.Result, &task.Error, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Status = Status(status)
	if len(hwndsJSON) > 0 {
		if err := json.Unmarshal(hwndsJSON, &task.TargetHwnds); err != nil {
			return nil, fmt.Errorf("unmarshal target hwnds: %w", err)
		}
	}
	return &task, nil
}

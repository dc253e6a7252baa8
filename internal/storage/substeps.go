package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
)

const stepColumns = `id, execution_id, task_id, idx, description, thought,
	action, target, params_json, expected, depends_on_json,
	status, started_at, completed_at, duration_ms, result, error,
	prompt_tokens, completion_tokens, total_tokens, cost, stats_json`

const stepPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

func (s *Storage) CreateSteps(ctx context.Context, steps []*domain.SubStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sub_steps (`+stepColumns+`) VALUES (`+stepPlaceholders+`)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range steps {
		args, err := stepArgs(st)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert step %s: %w", st.TaskID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) GetSteps(ctx context.Context, executionID string) ([]*domain.SubStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM sub_steps WHERE execution_id = ? ORDER BY idx ASC
	`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*domain.SubStep
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *Storage) UpdateStep(ctx context.Context, st *domain.SubStep) error {
	return s.updateStep(ctx, s.db, st)
}

// RecordStepResult writes the step result and the execution counters in
// one transaction. If either write fails the whole record rolls back,
// so the store never reflects a step result without its aggregate
// contribution.
func (s *Storage) RecordStepResult(ctx context.Context, step *domain.SubStep, exec *domain.Execution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.updateStep(ctx, tx, step); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE executions SET
			status = ?, completed_at = ?, duration_ms = ?,
			completed_tasks = ?, failed_tasks = ?, waiting_tasks = ?,
			prompt_tokens = ?, completion_tokens = ?, total_tokens = ?, cost = ?
		WHERE id = ?
	`, exec.Status, nullTime(exec.CompletedAt), exec.Duration.Milliseconds(),
		exec.CompletedTasks, exec.FailedTasks, exec.WaitingTasks,
		exec.Usage.PromptTokens, exec.Usage.CompletionTokens, exec.Usage.TotalTokens, exec.Cost,
		exec.ID)
	if err != nil {
		return &domain.AggregationError{ExecutionID: exec.ID, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.AggregationError{ExecutionID: exec.ID, Cause: err}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) updateStep(ctx context.Context, db execer, st *domain.SubStep) error {
	statsJSON, err := marshalMap(st.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE sub_steps SET
			status = ?, started_at = ?, completed_at = ?, duration_ms = ?,
			result = ?, error = ?,
			prompt_tokens = ?, completion_tokens = ?, total_tokens = ?, cost = ?,
			stats_json = ?
		WHERE id = ?
	`, st.Status, nullTime(st.StartedAt), nullTime(st.CompletedAt), st.Duration.Milliseconds(),
		nullString(st.Result), nullString(st.Error),
		st.Usage.PromptTokens, st.Usage.CompletionTokens, st.Usage.TotalTokens, st.Cost,
		statsJSON, st.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "step", ID: st.ID}
	}
	return nil
}

func stepArgs(st *domain.SubStep) ([]any, error) {
	paramsJSON, err := marshalMap(st.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	statsJSON, err := marshalMap(st.Stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}
	var dependsJSON sql.NullString
	if len(st.DependsOn) > 0 {
		b, err := json.Marshal(st.DependsOn)
		if err != nil {
			return nil, fmt.Errorf("marshal depends_on: %w", err)
		}
		dependsJSON = sql.NullString{String: string(b), Valid: true}
	}

	return []any{
		st.ID, st.ExecutionID, st.TaskID, st.Index, st.Description, nullString(st.Thought),
		st.Action, st.Target, paramsJSON, nullString(st.Expected), dependsJSON,
		st.Status, nullTime(st.StartedAt), nullTime(st.CompletedAt), st.Duration.Milliseconds(),
		nullString(st.Result), nullString(st.Error),
		st.Usage.PromptTokens, st.Usage.CompletionTokens, st.Usage.TotalTokens, st.Cost,
		statsJSON,
	}, nil
}

func scanStep(row scannable) (*domain.SubStep, error) {
	var st domain.SubStep
	var thought, paramsJSON, expected, dependsJSON, result, errMsg, statsJSON sql.NullString
	var startedAt, completedAt sql.NullTime
	var durationMS int64

	err := row.Scan(&st.ID, &st.ExecutionID, &st.TaskID, &st.Index, &st.Description, &thought,
		&st.Action, &st.Target, &paramsJSON, &expected, &dependsJSON,
		&st.Status, &startedAt, &completedAt, &durationMS, &result, &errMsg,
		&st.Usage.PromptTokens, &st.Usage.CompletionTokens, &st.Usage.TotalTokens, &st.Cost,
		&statsJSON)
	if err != nil {
		return nil, err
	}

	st.Thought = thought.String
	st.Expected = expected.String
	st.Result = result.String
	st.Error = errMsg.String
	st.StartedAt = timePtr(startedAt)
	st.CompletedAt = timePtr(completedAt)
	st.Duration = time.Duration(durationMS) * time.Millisecond

	if paramsJSON.Valid {
		if err := json.Unmarshal([]byte(paramsJSON.String), &st.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if dependsJSON.Valid {
		if err := json.Unmarshal([]byte(dependsJSON.String), &st.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on: %w", err)
		}
	}
	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &st.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return &st, nil
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmlow/goalflow/internal/domain"
)

const executionColumns = `id, graph_id, request, intent, status,
	started_at, completed_at, duration_ms,
	total_tasks, completed_tasks, failed_tasks, waiting_tasks,
	final_result, synthesis, suspended_reason, suspended_at,
	retry_count, last_retry_at,
	prompt_tokens, completion_tokens, total_tokens, cost`

func (s *Storage) CreateExecution(ctx context.Context, e *domain.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, executionArgs(e)...)
	return err
}

func (s *Storage) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+executionColumns+` FROM executions WHERE id = ?
	`, id)

	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Kind: "execution", ID: id}
	}
	return e, err
}

func (s *Storage) ListExecutions(ctx context.Context, graphID string, limit int) ([]*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions`
	args := []any{}
	if graphID != "" {
		query += " WHERE graph_id = ?"
		args = append(args, graphID)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (s *Storage) UpdateExecution(ctx context.Context, e *domain.Execution) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE executions SET
			status = ?, completed_at = ?, duration_ms = ?,
			total_tasks = ?, completed_tasks = ?, failed_tasks = ?, waiting_tasks = ?,
			final_result = ?, synthesis = ?, suspended_reason = ?, suspended_at = ?,
			retry_count = ?, last_retry_at = ?,
			prompt_tokens = ?, completion_tokens = ?, total_tokens = ?, cost = ?
		WHERE id = ?
	`, e.Status, nullTime(e.CompletedAt), e.Duration.Milliseconds(),
		e.TotalTasks, e.CompletedTasks, e.FailedTasks, e.WaitingTasks,
		nullString(e.FinalResult), nullString(e.Synthesis), nullString(e.SuspendedReason), nullTime(e.SuspendedAt),
		e.RetryCount, nullTime(e.LastRetryAt),
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens, e.Cost,
		e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Kind: "execution", ID: e.ID}
	}
	return nil
}

func executionArgs(e *domain.Execution) []any {
	return []any{
		e.ID, nullString(e.GraphID), e.Request, nullString(e.Intent), e.Status,
		e.StartedAt, nullTime(e.CompletedAt), e.Duration.Milliseconds(),
		e.TotalTasks, e.CompletedTasks, e.FailedTasks, e.WaitingTasks,
		nullString(e.FinalResult), nullString(e.Synthesis), nullString(e.SuspendedReason), nullTime(e.SuspendedAt),
		e.RetryCount, nullTime(e.LastRetryAt),
		e.Usage.PromptTokens, e.Usage.CompletionTokens, e.Usage.TotalTokens, e.Cost,
	}
}

func scanExecution(row scannable) (*domain.Execution, error) {
	var e domain.Execution
	var graphID, intent, finalResult, synthesis, suspendedReason sql.NullString
	var completedAt, suspendedAt, lastRetryAt sql.NullTime
	var durationMS int64

	err := row.Scan(&e.ID, &graphID, &e.Request, &intent, &e.Status,
		&e.StartedAt, &completedAt, &durationMS,
		&e.TotalTasks, &e.CompletedTasks, &e.FailedTasks, &e.WaitingTasks,
		&finalResult, &synthesis, &suspendedReason, &suspendedAt,
		&e.RetryCount, &lastRetryAt,
		&e.Usage.PromptTokens, &e.Usage.CompletionTokens, &e.Usage.TotalTokens, &e.Cost)
	if err != nil {
		return nil, err
	}

	e.GraphID = graphID.String
	e.Intent = intent.String
	e.FinalResult = finalResult.String
	e.Synthesis = synthesis.String
	e.SuspendedReason = suspendedReason.String
	e.CompletedAt = timePtr(completedAt)
	e.SuspendedAt = timePtr(suspendedAt)
	e.LastRetryAt = timePtr(lastRetryAt)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return &e, nil
}

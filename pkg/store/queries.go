package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"resultdb/pkg/models"
)

// ExecutionFilter narrows ListExecutions. Zero values mean "no filter".
type ExecutionFilter struct {
	CreatedBy string
	Name      string
	TagPrefix string
	Limit     int
	Offset    int
}

// CreateExecution inserts a new execution row and returns it with the
// assigned id. A zero TimeCreated is replaced with the server clock.
func (s *Store) CreateExecution(ctx context.Context, in models.CreateExecution) (*models.Execution, error) {
	ts := in.TimeCreated
	if ts == 0 {
		ts = time.Now().Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO execution (name, tag, created_by, time_created) VALUES (?, ?, ?, ?)`,
		in.Name, in.Tag, in.CreatedBy, ts)
	if err != nil {
		return nil, fmt.Errorf("insert execution: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("execution id: %w", err)
	}
	return &models.Execution{
		ID:          id,
		Name:        in.Name,
		Tag:         in.Tag,
		CreatedBy:   in.CreatedBy,
		TimeCreated: ts,
	}, nil
}

// ListExecutions returns one page ordered by time_created DESC, id DESC,
// plus the total row count for the same filter.
func (s *Store) ListExecutions(ctx context.Context, f ExecutionFilter) ([]models.Execution, int64, error) {
	var conds []string
	var args []any
	if f.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	if f.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, f.Name)
	}
	if f.TagPrefix != "" {
		conds = append(conds, "tag LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.TagPrefix)+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM execution"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	items := []models.Execution{}
	q := "SELECT id, name, tag, created_by, time_created FROM execution" + where +
		" ORDER BY time_created DESC, id DESC LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &items, q, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	return items, total, nil
}

// escapeLike guards LIKE metacharacters in user-supplied prefixes.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ExecutionExists reports whether an execution row with the id exists.
func (s *Store) ExecutionExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM execution WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("execution exists: %w", err)
	}
	return true, nil
}

// AllExecutions streams every execution ordered newest first. Feeds the
// suggestion trie at startup.
func (s *Store) AllExecutions(ctx context.Context) ([]models.Execution, error) {
	items := []models.Execution{}
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, name, tag, created_by, time_created FROM execution ORDER BY time_created DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("all executions: %w", err)
	}
	return items, nil
}

// GetResult fetches one test result row by id, ErrNotFound when absent.
func (s *Store) GetResult(ctx context.Context, id int64) (*models.TestResult, error) {
	var r models.TestResult
	err := s.db.GetContext(ctx, &r, `SELECT * FROM test_result WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %d: %w", id, err)
	}
	return &r, nil
}

// ResultFilter narrows ListResults and SummarizeResults.
type ResultFilter struct {
	Status   string
	Platform string
}

func resultWhere(executionID int64, f ResultFilter) (string, []any) {
	conds := []string{"execution_id = ?"}
	args := []any{executionID}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Platform != "" {
		conds = append(conds, "platform = ?")
		args = append(args, f.Platform)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListResults returns every result for an execution matching the filter,
// ordered by name for stable output.
func (s *Store) ListResults(ctx context.Context, executionID int64, f ResultFilter) ([]models.TestResult, error) {
	where, args := resultWhere(executionID, f)
	items := []models.TestResult{}
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM test_result"+where+" ORDER BY name ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return items, nil
}

// ResultSummary aggregates status counts over a filtered result set.
type ResultSummary struct {
	Total int64 `json:"total" db:"total"`
	Pass  int64 `json:"pass" db:"pass"`
	Fail  int64 `json:"fail" db:"fail"`
	Ignor int64 `json:"ignor" db:"ignor"`
}

// SummarizeResults computes the summary in SQL over the same filtered set
// ListResults would return.
func (s *Store) SummarizeResults(ctx context.Context, executionID int64, f ResultFilter) (*ResultSummary, error) {
	where, args := resultWhere(executionID, f)
	q := `SELECT COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN status = 'P' THEN 1 ELSE 0 END), 0) AS pass,
	COALESCE(SUM(CASE WHEN status = 'F' THEN 1 ELSE 0 END), 0) AS fail,
	COALESCE(SUM(CASE WHEN status = 'I' THEN 1 ELSE 0 END), 0) AS ignor
	FROM test_result` + where
	var sum ResultSummary
	if err := s.db.GetContext(ctx, &sum, q, args...); err != nil {
		return nil, fmt.Errorf("summarize results: %w", err)
	}
	return &sum, nil
}

// UpdateResultStatus sets the status of one result row, ErrNotFound when
// the id matches nothing.
func (s *Store) UpdateResultStatus(ctx context.Context, id int64, st models.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE test_result SET status = ? WHERE id = ?`, string(st), id)
	if err != nil {
		return fmt.Errorf("update result status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update result status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const upsertResultSQL = `
INSERT INTO test_result
	(execution_id, name, platform, description, status, execution_time, counter, log, screenshot_id, created_by, time_created)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
ON CONFLICT (execution_id, name) DO UPDATE SET
	platform       = excluded.platform,
	description    = excluded.description,
	status         = excluded.status,
	execution_time = excluded.execution_time,
	counter        = counter + 1,
	log            = excluded.log,
	screenshot_id  = excluded.screenshot_id,
	created_by     = excluded.created_by,
	time_created   = excluded.time_created`

// UpsertResults applies one batch in a single transaction on the dedicated
// writer connection. Insert establishes counter=1; a natural-key conflict
// overwrites every mutable column and increments counter.
func (s *Store) UpsertResults(ctx context.Context, batch []*models.ResultRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.writer.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flush tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertResultSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	for _, r := range batch {
		if _, err := stmt.ExecContext(ctx,
			r.ExecutionID, r.Name, r.Platform, r.Description, string(r.Status),
			r.ExecutionTime, r.Log, r.ScreenshotID, r.CreatedBy, r.TimeCreated,
		); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("upsert result %d/%s: %w", r.ExecutionID, r.Name, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush tx: %w", err)
	}
	return nil
}

// DeleteResultsBefore removes result rows older than the cutoff epoch.
func (s *Store) DeleteResultsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM test_result WHERE time_created < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExecutionsBefore removes execution rows older than the cutoff
// epoch; dependent results go with them via the cascading foreign key.
func (s *Store) DeleteExecutionsBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM execution WHERE time_created < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete executions: %w", err)
	}
	return res.RowsAffected()
}

// Stats is a table-level snapshot for the inspect tool.
type Stats struct {
	Executions int64 `db:"executions"`
	Results    int64 `db:"results"`
	Passed     int64 `db:"passed"`
	Failed     int64 `db:"failed"`
	Ignored    int64 `db:"ignored"`
	OldestRun  int64 `db:"oldest_run"`
	NewestRun  int64 `db:"newest_run"`
}

// CollectStats aggregates row counts and the execution age range.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	var st Stats
	q := `SELECT
	(SELECT COUNT(*) FROM execution) AS executions,
	(SELECT COUNT(*) FROM test_result) AS results,
	(SELECT COALESCE(SUM(CASE WHEN status = 'P' THEN 1 ELSE 0 END), 0) FROM test_result) AS passed,
	(SELECT COALESCE(SUM(CASE WHEN status = 'F' THEN 1 ELSE 0 END), 0) FROM test_result) AS failed,
	(SELECT COALESCE(SUM(CASE WHEN status = 'I' THEN 1 ELSE 0 END), 0) FROM test_result) AS ignored,
	(SELECT COALESCE(MIN(time_created), 0) FROM execution) AS oldest_run,
	(SELECT COALESCE(MAX(time_created), 0) FROM execution) AS newest_run`
	if err := s.db.GetContext(ctx, &st, q); err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &st, nil
}

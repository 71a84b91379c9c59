package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/RepoWarden/internal/domain"
	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
	"github.com/Strob0t/RepoWarden/internal/port/store"
)

// Store implements store.Store on PostgreSQL. Durability comes from
// transactional writes; the record/index invariant of the filesystem
// adapter is a non-issue here since rows and indexes commit together.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

const pgUniqueViolation = "23505"

// --- Executions ---

func (s *Store) StartExecution(ctx context.Context, e *execution.Execution) error {
	inputJSON, err := marshalDoc(e.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO executions (id, agent_name, agent_class, repo_root, mode, status, caller, input, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.AgentName, string(e.AgentClass), e.RepoRoot, string(e.Mode), string(e.Status), e.Caller, inputJSON, e.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("start execution %s: id already exists", e.ID)
		}
		return fmt.Errorf("start execution %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) CompleteExecution(ctx context.Context, e *execution.Execution) error {
	outputJSON, err := marshalDoc(e.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE executions SET status = $2, output = $3, error = $4, error_kind = $5, duration_ns = $6, finished_at = $7
		 WHERE id = $1`,
		e.ID, string(e.Status), outputJSON, e.Error, e.ErrorKind, int64(e.Duration), e.FinishedAt)
	if err != nil {
		return fmt.Errorf("complete execution %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete execution %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*execution.Execution, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, agent_name, agent_class, repo_root, mode, status, caller, input, output, error, error_kind, duration_ns, started_at, finished_at
		 FROM executions WHERE id = $1`, id)

	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get execution %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return &e, nil
}

func (s *Store) ListExecutions(ctx context.Context, f store.ExecutionFilter) ([]execution.Execution, error) {
	q := strings.Builder{}
	q.WriteString(
		`SELECT id, agent_name, agent_class, repo_root, mode, status, caller, input, output, error, error_kind, duration_ns, started_at, finished_at
		 FROM executions`)

	var args []any
	var conds []string
	if f.RepoRoot != "" {
		args = append(args, f.RepoRoot)
		conds = append(conds, fmt.Sprintf("repo_root = $%d", len(args)))
	}
	if f.AgentName != "" {
		args = append(args, f.AgentName)
		conds = append(conds, fmt.Sprintf("agent_name = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString(" ORDER BY started_at DESC, id ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []execution.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (s *Store) DeleteExecution(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete execution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete execution %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Chain runs ---

func (s *Store) StartChainRun(ctx context.Context, r *chain.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chain_runs (id, chain_name, repo_root, caller, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ChainName, r.RepoRoot, r.Caller, string(r.Status), r.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("start chain run %s: id already exists", r.ID)
		}
		return fmt.Errorf("start chain run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) AppendStepResult(ctx context.Context, runID string, res chain.StepResult) error {
	outputJSON, err := marshalDoc(res.Output)
	if err != nil {
		return fmt.Errorf("marshal step output: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chain_steps (run_id, step_index, step_name, agent_name, execution_id, status, output, error, duration_ns)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		runID, res.Index, res.StepName, res.AgentName, res.ExecutionID, string(res.Status), outputJSON, res.Error, int64(res.Duration))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return fmt.Errorf("append step to run %s: %w", runID, domain.ErrNotFound)
		}
		return fmt.Errorf("append step to run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) CompleteChainRun(ctx context.Context, r *chain.Run) error {
	stateJSON, err := marshalDoc(r.FinalState)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE chain_runs SET status = $2, final_state = $3, error = $4, completed_at = $5
		 WHERE id = $1`,
		r.ID, string(r.Status), stateJSON, r.Error, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete chain run %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete chain run %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) GetChainRun(ctx context.Context, id string) (*chain.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, chain_name, repo_root, caller, status, final_state, error, started_at, completed_at
		 FROM chain_runs WHERE id = $1`, id)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get chain run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chain run %s: %w", id, err)
	}

	steps, err := s.loadSteps(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return &r, nil
}

func (s *Store) ListRuns(ctx context.Context, f store.RunFilter) ([]chain.Run, error) {
	q := strings.Builder{}
	q.WriteString(
		`SELECT id, chain_name, repo_root, caller, status, final_state, error, started_at, completed_at
		 FROM chain_runs`)

	var args []any
	var conds []string
	if f.RepoRoot != "" {
		args = append(args, f.RepoRoot)
		conds = append(conds, fmt.Sprintf("repo_root = $%d", len(args)))
	}
	if f.ChainName != "" {
		args = append(args, f.ChainName)
		conds = append(conds, fmt.Sprintf("chain_name = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		q.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString(" ORDER BY started_at DESC, id ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []chain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		steps, err := s.loadSteps(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Steps = steps
	}
	return runs, nil
}

func (s *Store) GetLastRun(ctx context.Context, repoRoot, chainName string) (*chain.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, chain_name, repo_root, caller, status, final_state, error, started_at, completed_at
		 FROM chain_runs WHERE repo_root = $1 AND chain_name = $2
		 ORDER BY started_at DESC, id ASC LIMIT 1`, repoRoot, chainName)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("last run of %s in %s: %w", chainName, repoRoot, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("last run of %s: %w", chainName, err)
	}

	steps, err := s.loadSteps(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	r.Steps = steps
	return &r, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	// Steps go with the run via ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx, `DELETE FROM chain_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete run %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) loadSteps(ctx context.Context, runID string) ([]chain.StepResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT step_index, step_name, agent_name, execution_id, status, output, error, duration_ns
		 FROM chain_steps WHERE run_id = $1 ORDER BY step_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("load steps for run %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []chain.StepResult
	for rows.Next() {
		var st chain.StepResult
		var outputJSON []byte
		var durationNS int64
		if err := rows.Scan(&st.Index, &st.StepName, &st.AgentName, &st.ExecutionID, &st.Status, &outputJSON, &st.Error, &durationNS); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Duration = time.Duration(durationNS)
		if st.Output, err = unmarshalDoc(outputJSON); err != nil {
			return nil, fmt.Errorf("unmarshal step output: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// --- Scanners ---

func scanExecution(row scannable) (execution.Execution, error) {
	var e execution.Execution
	var inputJSON, outputJSON []byte
	var durationNS int64
	err := row.Scan(&e.ID, &e.AgentName, &e.AgentClass, &e.RepoRoot, &e.Mode, &e.Status, &e.Caller,
		&inputJSON, &outputJSON, &e.Error, &e.ErrorKind, &durationNS, &e.StartedAt, &e.FinishedAt)
	if err != nil {
		return e, err
	}
	e.Duration = time.Duration(durationNS)
	if e.Input, err = unmarshalDoc(inputJSON); err != nil {
		return e, fmt.Errorf("unmarshal input: %w", err)
	}
	if e.Output, err = unmarshalDoc(outputJSON); err != nil {
		return e, fmt.Errorf("unmarshal output: %w", err)
	}
	return e, nil
}

func scanRun(row scannable) (chain.Run, error) {
	var r chain.Run
	var stateJSON []byte
	err := row.Scan(&r.ID, &r.ChainName, &r.RepoRoot, &r.Caller, &r.Status, &stateJSON, &r.Error, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return r, err
	}
	if r.FinalState, err = unmarshalDoc(stateJSON); err != nil {
		return r, fmt.Errorf("unmarshal final state: %w", err)
	}
	return r, nil
}

// marshalDoc serializes a document for a JSONB column; nil documents
// become SQL NULL.
func marshalDoc(d document.Document) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func unmarshalDoc(data []byte) (document.Document, error) {
	if data == nil {
		return nil, nil
	}
	var d document.Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

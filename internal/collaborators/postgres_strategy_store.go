package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// PGXPool is the subset of *pgxpool.Pool PostgresStrategyStore needs, so
// tests can substitute pgxmock.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStrategyStore implements gate.StrategyStore over a strategies
// table keyed by id, with params/approval stored as JSONB.
type PostgresStrategyStore struct {
	pool PGXPool
}

// NewPostgresStrategyStore wraps an existing pgxpool.Pool.
func NewPostgresStrategyStore(pool *pgxpool.Pool) *PostgresStrategyStore {
	return &PostgresStrategyStore{pool: pool}
}

// NewPostgresStrategyStoreWithPool wraps any PGXPool, primarily for tests
// substituting pgxmock.
func NewPostgresStrategyStoreWithPool(pool PGXPool) *PostgresStrategyStore {
	return &PostgresStrategyStore{pool: pool}
}

const strategyColumns = `id, kind, name, status, params, approval, updated_at`

// ListApproved returns every approved strategy of the given kind, most
// recently updated first.
func (s *PostgresStrategyStore) ListApproved(ctx context.Context, kind arbmodel.OpportunityKind) ([]arbmodel.Strategy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE kind = $1 AND status = $2 ORDER BY updated_at DESC`,
		string(kind), string(arbmodel.StrategyApproved))
	if err != nil {
		return nil, fmt.Errorf("querying approved strategies: %w", err)
	}
	defer rows.Close()

	var out []arbmodel.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating approved strategies: %w", err)
	}
	return out, nil
}

// GetByID fetches one strategy by id.
func (s *PostgresStrategyStore) GetByID(ctx context.Context, id uuid.UUID) (arbmodel.Strategy, bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = $1`, id)
	if err != nil {
		return arbmodel.Strategy{}, false, fmt.Errorf("querying strategy %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return arbmodel.Strategy{}, false, nil
	}
	st, err := scanStrategy(rows)
	if err != nil {
		return arbmodel.Strategy{}, false, err
	}
	return st, true, nil
}

// Upsert writes a strategy, inserting or replacing by id.
func (s *PostgresStrategyStore) Upsert(ctx context.Context, st arbmodel.Strategy) error {
	params, err := json.Marshal(st.Params)
	if err != nil {
		return fmt.Errorf("marshaling strategy params: %w", err)
	}
	approval, err := json.Marshal(st.Approval)
	if err != nil {
		return fmt.Errorf("marshaling strategy approval: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO strategies (id, kind, name, status, params, approval, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, name = EXCLUDED.name, status = EXCLUDED.status,
			params = EXCLUDED.params, approval = EXCLUDED.approval, updated_at = EXCLUDED.updated_at
	`, st.ID, string(st.Kind), st.Name, string(st.Status), params, approval, st.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("strategy_id", st.ID.String()).Msg("failed to upsert strategy")
		return fmt.Errorf("upserting strategy %s: %w", st.ID, err)
	}
	return nil
}

func scanStrategy(rows pgx.Rows) (arbmodel.Strategy, error) {
	var (
		st          arbmodel.Strategy
		kind        string
		status      string
		paramsRaw   []byte
		approvalRaw []byte
		updatedAt   time.Time
	)
	if err := rows.Scan(&st.ID, &kind, &st.Name, &status, &paramsRaw, &approvalRaw, &updatedAt); err != nil {
		return arbmodel.Strategy{}, fmt.Errorf("scanning strategy row: %w", err)
	}
	st.Kind = arbmodel.OpportunityKind(kind)
	st.Status = arbmodel.StrategyStatus(status)
	st.UpdatedAt = updatedAt

	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &st.Params); err != nil {
			return arbmodel.Strategy{}, fmt.Errorf("unmarshaling strategy params: %w", err)
		}
	}
	if len(approvalRaw) > 0 {
		if err := json.Unmarshal(approvalRaw, &st.Approval); err != nil {
			return arbmodel.Strategy{}, fmt.Errorf("unmarshaling strategy approval: %w", err)
		}
	}
	return st, nil
}

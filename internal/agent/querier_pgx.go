package agent

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolQuerier adapts a pgx connection pool to the Querier interface.
// Connections are acquired per execution and released on every exit
// path, including timeouts.
type PoolQuerier struct {
	pool *pgxpool.Pool
}

// NewPoolQuerier wraps pool as a Querier.
func NewPoolQuerier(pool *pgxpool.Pool) *PoolQuerier {
	return &PoolQuerier{pool: pool}
}

// Query runs sql and materializes up to maxRows rows. Reading stops one
// row past the cap so Truncated reflects that more rows were available
// without pulling the whole result set into memory.
func (p *PoolQuerier) Query(ctx context.Context, sql string, maxRows int) (*Result, error) {
	rows, err := p.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	res := &Result{Columns: columns}
	for rows.Next() {
		if res.RowCount >= maxRows {
			res.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
		res.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return res, nil
}

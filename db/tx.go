package db

import (
	"context"
	"database/sql"
)

// Tx wraps a sql.Tx so callers depend on this package's transaction type
// rather than database/sql directly.
type Tx struct {
	*sql.Tx
}

func NewTx(ctx context.Context, db DBer) (*Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Tx: tx,
	}, nil
}

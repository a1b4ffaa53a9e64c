package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type txKey struct{}

type TxManager struct {
	db          *DB
	lockTimeout time.Duration
}

func NewTxManager(db *DB, lockTimeout time.Duration) *TxManager {
	return &TxManager{db: db, lockTimeout: lockTimeout}
}

// RunInTx opens a READ COMMITTED transaction and stores it in ctx for the
// repositories. A ctx that already carries a transaction joins it, so the
// outermost caller owns commit and rollback.
func (tm *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := tm.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tm.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tm.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(context.WithValue(ctx, txKey{}, tx))
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})

	return classify(err)
}

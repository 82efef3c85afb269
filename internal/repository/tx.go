package repository

import (
	"context"

	"gorm.io/gorm"
)

// ITxManager runs a function inside one database transaction. Returning an
// error from fn rolls the transaction back.
type ITxManager interface {
	RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) ITxManager {
	return &TxManager{db: db}
}

func (m *TxManager) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TxManager выполняет fn внутри одной транзакции. Все обращения к репозиториям
// внутри fn должны использовать переданный ей ctx.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoTxManager struct {
	client *mongo.Client
}

// NewTxManager создаёт менеджер транзакций поверх сессий MongoDB.
// Транзакции требуют replica set.
func NewTxManager(client *mongo.Client) TxManager {
	return &mongoTxManager{client: client}
}

// WithinTransaction открывает сессию, стартует транзакцию и коммитит её, если fn
// вернула nil, иначе откатывает. Повторов нет: ошибка коммита возвращается как есть.
func (m *mongoTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "storage.TxManager.WithinTransaction"

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: failed to start session: %w", op, err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txOpts); err != nil {
			return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
		}

		if err := fn(sc); err != nil {
			// откат с отдельным контекстом: исходный может быть уже отменён
			if rbErr := session.AbortTransaction(context.WithoutCancel(sc)); rbErr != nil {
				return fmt.Errorf("%s: rollback failed: %v (original error: %w)", op, rbErr, err)
			}
			return err
		}

		if err := session.CommitTransaction(sc); err != nil {
			return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
		}
		return nil
	})
}

package storage

import (
	"context"

	"ammCore/internal/model"
)

// Storage is a sink for the operation journal.
type Storage interface {
	PutOperations(ctx context.Context, ops []model.OperationRecord) error
}

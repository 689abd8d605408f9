package storage

import (
	"context"

	"clmmScope/internal/model"
)

// Storage is a sink for operation results and rejected operations.
type Storage interface {
	PutResultBatch(ctx context.Context, results []model.OperationResult) error
	PutErrorBatch(ctx context.Context, failures []model.OperationError) error
}

package storage

import (
	"context"
	"errors"

	"liquidityTrade/internal/model"
)

// Recorder defines a sink for session snapshots.
type Recorder interface {
	PutSnapshots(ctx context.Context, records []model.SnapshotRecord) error
}

// Multi writes every batch to each recorder in turn and joins their errors.
type Multi []Recorder

func (m Multi) PutSnapshots(ctx context.Context, records []model.SnapshotRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.PutSnapshots(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

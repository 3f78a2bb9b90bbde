package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/queue"
)

// ArchiveJobType is the queue message type for deferred archive writes.
const ArchiveJobType = "archive_history"

// QueuedArchive defers StoreHistory to a background queue.
type QueuedArchive struct {
	q queue.Publisher
}

func NewQueuedArchive(q queue.Publisher) *QueuedArchive {
	return &QueuedArchive{q: q}
}

func (a *QueuedArchive) StoreHistory(ctx context.Context, h models.PriceHistory) error {
	if h.Len() == 0 {
		return nil
	}
	return a.q.Enqueue(ctx, ArchiveJobType, h)
}

// ArchiveJob drains queued histories into the real archive.
type ArchiveJob struct {
	archive domrepo.PriceArchive
}

func NewArchiveJob(archive domrepo.PriceArchive) *ArchiveJob {
	return &ArchiveJob{archive: archive}
}

func (j *ArchiveJob) Type() string { return ArchiveJobType }

func (j *ArchiveJob) Handle(ctx context.Context, payload json.RawMessage) error {
	var h models.PriceHistory
	if err := json.Unmarshal(payload, &h); err != nil {
		return fmt.Errorf("decode archive payload: %w", err)
	}
	return j.archive.StoreHistory(ctx, h)
}

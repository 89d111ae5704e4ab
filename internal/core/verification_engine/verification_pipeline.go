package verification_engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/Stratus/internal/core"
	"github.com/markdave123-py/Stratus/internal/metrics"
	"github.com/markdave123-py/Stratus/internal/models"
)

var _ Verifier = (*DocumentVerifier)(nil)

// NewDocumentVerifier constructs the verifier with a bounded job queue.
func NewDocumentVerifier(db core.DbClient, obj core.ObjectClient, cfg *VerifyConfig) *DocumentVerifier {
	if cfg == nil {
		cfg = DefaultVerifyConfig()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &DocumentVerifier{
		db: db, obj: obj, cfg: cfg,
		jobs: make(chan string, cfg.QueueSize),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel until ctx is done.
func (v *DocumentVerifier) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}

	for w := 1; w <= numWorkers; w++ {
		v.wg.Add(1)
		go func(w int) {
			defer v.wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.Debug().Int("worker", w).Msg("verifier worker shutting down")
					return
				case docID := <-v.jobs:
					status, err := v.ProcessOne(ctx, docID)
					if err != nil {
						log.Error().Err(err).Str("document_id", docID).Int("worker", w).Msg("verification failed")
						continue
					}
					log.Info().Str("document_id", docID).Str("status", status).Int("worker", w).Msg("document verified")
				}
			}
		}(w)
	}
}

// Wait blocks until every worker started by Start has returned.
func (v *DocumentVerifier) Wait() {
	v.wg.Wait()
}

// Enqueue schedules a document ID for verification. It reports false instead
// of blocking when the queue is full.
func (v *DocumentVerifier) Enqueue(docID string) bool {
	select {
	case v.jobs <- docID:
		return true
	default:
		return false
	}
}

// ProcessOne compares the stored object with its record and persists the
// resulting status.
func (v *DocumentVerifier) ProcessOne(ctx context.Context, docID string) (string, error) {
	procCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	doc, err := v.db.GetDocumentByID(procCtx, docID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("document %s: %w", docID, core.ErrRecordNotFound)
	}

	status := models.StatusVerified
	info, err := v.obj.StatFile(procCtx, doc.Bucket, doc.ObjectPath)
	switch {
	case errors.Is(err, core.ErrObjectNotFound):
		status = models.StatusMissing
	case err != nil:
		return "", fmt.Errorf("stat %s/%s: %w", doc.Bucket, doc.ObjectPath, err)
	case info.Size != doc.FileSize:
		status = models.StatusSizeMismatch
		log.Warn().
			Str("document_id", docID).
			Int64("recorded", doc.FileSize).
			Int64("stored", info.Size).
			Msg("stored object size differs from record")
	}

	if err := v.db.UpdateDocumentStatus(procCtx, docID, status); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	metrics.Verifications.WithLabelValues(status).Inc()
	return status, nil
}

package verification_engine

import "context"

type Verifier interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(docID string) bool
	ProcessOne(ctx context.Context, docID string) (string, error)
	Wait()
}

package verification_engine

import (
	"sync"
	"time"

	"github.com/markdave123-py/Stratus/internal/core"
)

// VerifyConfig tunes the verification workers.
//
// QueueSize: capacity of the in-memory job queue; Enqueue refuses work when full.
// Timeout:   upper bound for one record check (lookup, HEAD, status update).
type VerifyConfig struct {
	QueueSize int
	Timeout   time.Duration
}

func DefaultVerifyConfig() *VerifyConfig {
	return &VerifyConfig{QueueSize: 64, Timeout: time.Minute}
}

// DocumentVerifier reconciles upload records with the objects actually stored:
//
// db:   persistence for document records.
// obj:  object storage the records point into.
// jobs: queue of document IDs waiting for a check.
type DocumentVerifier struct {
	db   core.DbClient
	obj  core.ObjectClient
	cfg  *VerifyConfig
	jobs chan string
	wg   sync.WaitGroup
}

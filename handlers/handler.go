package handlers

import (
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Options carries the request-time settings handlers need.
type Options struct {
	SeedBatchSize int
	// SeedUserCount is the count used by the legacy create-db route.
	SeedUserCount int
	ReadOnly      bool
	BypassUser    string
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	db   *bun.DB
	log  *zap.Logger
	opts Options

	// seedMu serializes seeds so their delete and insert phases never interleave.
	seedMu sync.Mutex
}

// New creates a Handler with the given database connection and logger.
func New(db *bun.DB, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, log: log, opts: opts}
}

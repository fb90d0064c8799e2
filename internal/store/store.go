package store

import (
	"context"
	"errors"

	"github.com/pipelinesight/pipeline-rca/internal/models"
)

// ErrDocumentNotFound signals an explicit per-document "not found" for a
// date key. The analysis pipeline degrades the affected stage instead of
// aborting.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore is the storage access contract: the engine never touches a
// filesystem path format directly, only this lookup.
type DocumentStore interface {
	// Fetch returns the raw document of the given kind for a date key, or
	// ErrDocumentNotFound.
	Fetch(ctx context.Context, date string, kind models.DocKind) ([]byte, error)
	// Dates lists the date keys with at least one document, newest first.
	Dates(ctx context.Context) ([]string, error)
}

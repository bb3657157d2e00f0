package docstore

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrCollectionNotFound is returned for operations on an unknown collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when adding a collection whose name is taken.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrInvalidName is returned for collection names that cannot be a
	// directory name inside the database.
	ErrInvalidName = errors.New("invalid collection name")
	// ErrDocumentNotFound is returned by [DB.GetByID] when no document has the id.
	ErrDocumentNotFound = errors.New("document not found")
)

// Error is the error type returned by [DB] methods.
//
// The cause comes first, followed by context:
//
//	storage i/o failure: remove db/users/7.txt: permission denied (collection=users doc_id=7)
//
// Use [errors.Is] for the sentinel causes and [errors.As] for the fields.
type Error struct {
	// Collection is the collection the operation targeted.
	Collection string

	// ID is the document id, or 0 if unknown.
	ID uint64

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (collection=X doc_id=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Collection != "" {
		parts = append(parts, "collection="+e.Collection)
	}

	if e.ID != 0 {
		parts = append(parts, "doc_id="+strconv.FormatUint(e.ID, 10))
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// withContext wraps err in *Error. An existing *Error keeps its fields and
// only has missing ones filled in.
func withContext(err error, name string, id uint64) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.Collection == "" {
			existing.Collection = name
		}

		if existing.ID == 0 {
			existing.ID = id
		}

		return existing
	}

	return &Error{Collection: name, ID: id, Err: err}
}

package model

import (
	"errors"
	"fmt"

	"github.com/Saltoleto/consulta-produtos/internal/domain/valueobject"
)

// Error kinds surfaced by the import. Infrastructure wraps its failures with
// one of these so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrStore      = errors.New("store error")
	ErrSink       = errors.New("sink error")
	ErrTimeout    = errors.New("timeout")
)

// LotError reports the lot whose processing aborted an import.
type LotError struct {
	Err        error
	SourceType valueobject.SourceType
	Index      int
	Size       int
}

func (e *LotError) Error() string {
	return fmt.Sprintf("lot %d (%s, %d records): %v", e.Index, e.SourceType, e.Size, e.Err)
}

func (e *LotError) Unwrap() error {
	return e.Err
}

// RecordError reports an invalid record by its position in the input list.
type RecordError struct {
	Err        error
	SourceType valueobject.SourceType
	Position   int
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.SourceType, e.Position, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/local/slidenode/internal/storage"
	"github.com/local/slidenode/internal/store"
)

// Stable error codes surfaced on failed jobs.
const (
	CodeParseFailed        = "PARSE_FAILED"
	CodeDocTooLarge        = "DOC_TOO_LARGE"
	CodeLLMAPIError        = "LLM_API_ERROR"
	CodeLLMOutputInvalid   = "LLM_OUTPUT_INVALID"
	CodeCitationIncomplete = "CITATION_INCOMPLETE"
	CodeQualityGateFailed  = "QUALITY_GATE_FAILED"
	CodeGenTimeout         = "GEN_TIMEOUT"
	CodeStorageError       = "STORAGE_ERROR"
	CodeJobNotFound        = "JOB_NOT_FOUND"
)

// Error is a pipeline failure with a stable code.
type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string { return e.Code + ": " + e.Detail }

func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Classify maps any error to (code, detail). Typed pipeline errors keep
// their code; gateway errors are recognized by message prefix; storage
// failures get STORAGE_ERROR; everything else is GEN_TIMEOUT.
func Classify(err error) (string, string) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, pe.Detail
	}

	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, CodeLLMAPIError):
		return CodeLLMAPIError, msg
	case strings.HasPrefix(msg, CodeLLMOutputInvalid):
		return CodeLLMOutputInvalid, msg
	}

	var se *storage.Error
	if errors.As(err, &se) {
		return CodeStorageError, msg
	}
	if errors.Is(err, store.ErrNotFound) {
		return CodeJobNotFound, msg
	}
	return CodeGenTimeout, msg
}

package renamer

import (
	"errors"
	"fmt"
)

// Kind classifies why a file failed.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindUnsupportedType Kind = "UNSUPPORTED_TYPE"
	KindDecodeFailure   Kind = "DECODE_FAILURE"
	KindAnalysisFailure Kind = "ANALYSIS_FAILURE"
	KindIOFailure       Kind = "IO_FAILURE"
)

// FileError is the error recorded for a file that could not be processed.
// It never stops a batch.
type FileError struct {
	Kind    Kind
	Path    string
	Message string
	cause   error
}

func (e *FileError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FileError) Unwrap() error {
	return e.cause
}

func newFileError(kind Kind, path, message string, cause error) *FileError {
	return &FileError{Kind: kind, Path: path, Message: message, cause: cause}
}

// KindOf returns the kind of a FileError anywhere in err's chain, or ""
func KindOf(err error) Kind {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

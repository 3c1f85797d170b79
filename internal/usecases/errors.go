package usecases

import "errors"

var (
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNotEditable       = errors.New("format can be analyzed but not edited")
	ErrUnreadable        = errors.New("could not extract text from document")
	ErrTooShort          = errors.New("document text too short")
	ErrEmptyInstructions = errors.New("document instructions too short")
	ErrEmptyRemoteAnswer = errors.New("remote backend returned an empty answer")
	ErrRender            = errors.New("could not build result file")
	ErrTransportNotFound = errors.New("no transport registered for platform")
)

// rejectionReason labels validation errors for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrNotEditable):
		return "not_editable"
	case errors.Is(err, ErrUnreadable):
		return "unreadable"
	case errors.Is(err, ErrTooShort):
		return "too_short"
	case errors.Is(err, ErrEmptyInstructions):
		return "empty_instructions"
	}
	return "other"
}

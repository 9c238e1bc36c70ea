package docgen

import (
	"errors"
	"fmt"
)

// Sentinel errors for document generation failures. Callers classify errors
// with errors.Is; the generation entry point wraps them in GenerationError.
var (
	ErrNoTemplateConfigured  = errors.New("docgen: no template configured")
	ErrBackgroundUnavailable = errors.New("docgen: background document unavailable")
	ErrRenderTimeout         = errors.New("docgen: render step timed out")
	ErrMarkupCompilation     = errors.New("docgen: markup compilation failed")
	ErrFieldSkipped          = errors.New("docgen: field skipped")
	ErrInvalidTemplate       = errors.New("docgen: invalid template")
)

// Error kinds reported to callers of the outer surfaces.
const (
	KindNoTemplateConfigured  = "no_template_configured"
	KindBackgroundUnavailable = "background_unavailable"
	KindRenderTimeout         = "render_timeout"
	KindMarkupCompilation     = "markup_compilation_error"
	KindFieldSkipped          = "field_skipped"
	KindInvalidTemplate       = "invalid_template"
	KindInternal              = "internal"
)

// GenerationError represents an error that occurred during a specific
// generation step. It wraps an underlying error and names the step.
type GenerationError struct {
	Op  string // step name, e.g. "select", "fetch_background", "convert"
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docgen.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("docgen.%s: unknown error", e.Op)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps err with the name of the step that produced it.
// A nil err yields nil.
func NewGenerationError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GenerationError{Op: op, Err: err}
}

// Retryable reports whether a failed request may succeed when retried
// without changing the template.
func Retryable(err error) bool {
	return errors.Is(err, ErrBackgroundUnavailable) || errors.Is(err, ErrRenderTimeout)
}

// KindOf returns the stable kind string for err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTemplateConfigured):
		return KindNoTemplateConfigured
	case errors.Is(err, ErrBackgroundUnavailable):
		return KindBackgroundUnavailable
	case errors.Is(err, ErrRenderTimeout):
		return KindRenderTimeout
	case errors.Is(err, ErrMarkupCompilation):
		return KindMarkupCompilation
	case errors.Is(err, ErrFieldSkipped):
		return KindFieldSkipped
	case errors.Is(err, ErrInvalidTemplate):
		return KindInvalidTemplate
	default:
		return KindInternal
	}
}

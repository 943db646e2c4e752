package renderer

import (
	"errors"
	"fmt"

	"github.com/quillgfx/quill/shaders"
)

// ErrUnsupportedFeatureCombination mirrors the registry sentinel so callers
// only need this package to classify failures.
var ErrUnsupportedFeatureCombination = shaders.ErrUnsupportedFeatureCombination

// ErrResourceExhausted reports that a cache could not allocate a region even
// after eviction. Callers recover by degrading quality, not by failing the
// frame.
var ErrResourceExhausted = errors.New("renderer: cache cannot allocate a region")

// PipelineError reports that the backend rejected a specialized shader. It
// is fatal to that variant key only; the caller may fall back to a simpler
// flag combination or abort the draw.
type PipelineError struct {
	Key shaders.VariantKey
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("renderer: compiling pipeline %s: %s", e.Key, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

package surface

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential  = errors.New("missing map access token")
	ErrNoRenderingContext = errors.New("no rendering context")
	ErrBufferNotPreserved = errors.New("drawing buffer not preserved")
	ErrUnknownLayer       = errors.New("unknown layer")
	ErrUnknownSource      = errors.New("unknown source")
	ErrSourceExists       = errors.New("source already exists")
	ErrLayerExists        = errors.New("layer already exists")
	ErrRemoved            = errors.New("surface removed")
)

// InitError reports that a surface could not be created. It is shown to the
// user as a non-fatal notice.
type InitError struct {
	Engine string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s surface: %v", e.Engine, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// IsInitError reports whether err is or wraps an *InitError
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

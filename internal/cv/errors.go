package cv

import (
	"errors"
	"fmt"
	"strings"
)

// Error sentinels. Typed errors below match these through errors.Is.
var (
	ErrImageLoad            = errors.New("image load failed")
	ErrTemplateNotExist     = errors.New("template picture does not exist")
	ErrOutOfBounds          = errors.New("pixel coordinates out of bounds")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrNoMatchFound         = errors.New("template element not found on screen")
	ErrCaptureFailure       = errors.New("screen capture failed")
	ErrRemoteUnavailable    = errors.New("remote matcher unavailable")
)

// ImageLoadError reports a template or screen file that could not be
// resolved or decoded. It is never retried by the polling loop.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

func (e *ImageLoadError) Is(target error) bool { return target == ErrImageLoad }

// ConfigError is returned before any capture when polling parameters are invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfiguration }

// TemplateElementNotFoundError names every template tried by an exhausted search.
type TemplateElementNotFoundError struct {
	Templates []string
}

func (e *TemplateElementNotFoundError) Error() string {
	return fmt.Sprintf("template element not found on screen: %s", strings.Join(e.Templates, ", "))
}

func (e *TemplateElementNotFoundError) Is(target error) bool { return target == ErrNoMatchFound }

// CaptureError wraps a failure of a capture backend.
type CaptureError struct {
	Backend string
	Err     error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture via %s: %v", e.Backend, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool { return target == ErrCaptureFailure }

// RemoteError reports that the remote matcher could not be reached.
// It is distinct from an empty (not found) reply.
type RemoteError struct {
	Addr string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote matcher %s unreachable: %v", e.Addr, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteUnavailable }

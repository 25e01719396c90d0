package errors

import "errors"

var (
	ErrDockerUnavailable    = errors.New("docker daemon unavailable")
	ErrImagePullFailed      = errors.New("image pull failed")
	ErrContainerStartFailed = errors.New("container start failed")
	ErrContainerStopFailed  = errors.New("container stop failed")
	ErrPortMappingFailed    = errors.New("port mapping failed")
	ErrDatabaseNotReady     = errors.New("database not ready")
	ErrMigrationFailed      = errors.New("migration failed")
	ErrConfigInvalid        = errors.New("configuration invalid")
	ErrStateFailed          = errors.New("state file operation failed")
)

// DockerTesterError carries a user-facing explanation alongside the underlying failure.
type DockerTesterError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *DockerTesterError) Error() string {
	if e.OriginalErr == nil {
		return e.Type.Error()
	}
	return e.OriginalErr.Error()
}

func (e *DockerTesterError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the error category, so errors.Is(err, ErrMigrationFailed) works through wrapping.
func (e *DockerTesterError) Is(target error) bool {
	return e.Type == target
}

func NewDockerTesterError(errorType error, context, cause, suggestion string, originalErr error) *DockerTesterError {
	return &DockerTesterError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewDockerError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrDockerUnavailable, context, cause, suggestion, originalErr)
}

func NewPullError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrImagePullFailed, context, cause, suggestion, originalErr)
}

func NewStartError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrContainerStartFailed, context, cause, suggestion, originalErr)
}

func NewStopError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrContainerStopFailed, context, cause, suggestion, originalErr)
}

func NewPortError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrPortMappingFailed, context, cause, suggestion, originalErr)
}

func NewDatabaseError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrDatabaseNotReady, context, cause, suggestion, originalErr)
}

func NewMigrationError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrMigrationFailed, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewStateError(context, cause, suggestion string, originalErr error) *DockerTesterError {
	return NewDockerTesterError(ErrStateFailed, context, cause, suggestion, originalErr)
}

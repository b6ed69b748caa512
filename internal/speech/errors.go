package speech

import "errors"

// Common errors for the speech pipeline.
var (
	// Engine errors
	ErrEngineNotAvailable = errors.New("speech engine is not available")
	ErrNoEngines          = errors.New("no speech engines configured")
	ErrAllEnginesFailed   = errors.New("all speech engines failed")
	ErrVoiceNotFound      = errors.New("requested voice not found")
	ErrSynthesisFailed    = errors.New("audio synthesis failed")
	ErrEngineClosed       = errors.New("engine has been closed")

	// Input errors
	ErrEmptyText = errors.New("no text to speak")

	// Audio errors
	ErrInvalidAudio   = errors.New("invalid audio data")
	ErrUnsupportedWAV = errors.New("unsupported wav encoding")
)

// IsRecoverable reports whether a later attempt with another engine may
// succeed. Missing binaries and closed engines are permanent for the
// life of the process.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, ErrEngineNotAvailable),
		errors.Is(err, ErrEngineClosed),
		errors.Is(err, ErrEmptyText):
		return false
	}
	return true
}

// EngineError wraps a synthesis failure with the engine that produced it.
type EngineError struct {
	Engine string // Engine name
	Action string // Action being performed
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err == nil {
		return e.Engine + ": " + e.Action + " failed"
	}
	return e.Engine + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with engine and action context.
func NewEngineError(engine, action string, err error) *EngineError {
	return &EngineError{Engine: engine, Action: action, Err: err}
}

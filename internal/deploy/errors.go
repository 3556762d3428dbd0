package deploy

type Kind int

const (
	// Client faults: the upload itself was unusable.
	KindInvalidInput Kind = iota
	KindExtraction
	KindManifestNotFound
	// Server faults: the tooling misbehaved.
	KindBuild
	KindDeploy
	KindInternal
)

// Error is a pipeline stage failure. Message is the user-facing
// sentence returned to the uploader; Err keeps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientFault reports whether the failure was caused by the upload
// rather than by the build/deploy tooling.
func (e *Error) ClientFault() bool {
	switch e.Kind {
	case KindInvalidInput, KindExtraction, KindManifestNotFound:
		return true
	default:
		return false
	}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
}

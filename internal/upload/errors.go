package upload

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrSizeExceeded is wrapped by a ValidationError when the file is larger than allowed.
	ErrSizeExceeded = errors.New("upload: file size exceeds limit")

	// ErrUnsupportedType is wrapped by a ValidationError when the extension is not allowed.
	ErrUnsupportedType = errors.New("upload: unsupported file type")

	// ErrTargetAcquisition marks a failure while requesting the upload target.
	ErrTargetAcquisition = errors.New("upload: target acquisition failed")

	// ErrTransfer marks a failure while sending the bytes to the object store.
	ErrTransfer = errors.New("upload: transfer failed")

	// ErrConfirmation marks a failure while registering the stored object with the backend.
	// The object may already exist in the bucket when this is returned.
	ErrConfirmation = errors.New("upload: confirmation failed")

	errMalformedTarget = errors.New("malformed upload target")
)

// ValidationError reports why a file was rejected before any network activity.
type ValidationError struct {
	Reason    error
	Name      string
	Extension string
	Size      int64
	Limit     int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ErrSizeExceeded:
		return fmt.Sprintf("upload: %s: file size %s exceeds maximum allowed size of %s",
			e.Name, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
	case ErrUnsupportedType:
		return fmt.Sprintf("upload: %s: file type %q not supported", e.Name, e.Extension)
	}
	return fmt.Sprintf("upload: %s: %v", e.Name, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// PhaseError is returned when an attempt fails after validation. Kind is one of
// ErrTargetAcquisition, ErrTransfer or ErrConfirmation.
type PhaseError struct {
	Kind      error
	Phase     State
	AttemptID string

	// Bucket and ObjectKey are empty when the target was never acquired.
	Bucket    string
	ObjectKey string

	// StatusCode is zero for transport failures.
	StatusCode int
	Err        error
}

func (e *PhaseError) Error() string {
	msg := e.Kind.Error()
	if e.ObjectKey != "" {
		msg = fmt.Sprintf("%s (object %s/%s)", msg, e.Bucket, e.ObjectKey)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PhaseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Orphaned reports whether the bytes may be stored without a backend record.
func (e *PhaseError) Orphaned() bool {
	return e.Kind == ErrConfirmation && e.ObjectKey != ""
}

// StatusError is a non-2xx response from one of the HTTP collaborators.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

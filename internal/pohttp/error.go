package pohttp

// InvalidParcelError indicates that the recipient refused the parcel. The
// delivery must not be retried.
type InvalidParcelError struct {
	Message string
}

func (e InvalidParcelError) Error() string {
	if e.Message == "" {
		return "parcel was refused by the recipient"
	}
	return "parcel was refused by the recipient: " + e.Message
}

// BindingError indicates that the delivery violated the HTTP binding, for
// example because the recipient address is not a valid URL. The delivery must
// not be retried.
type BindingError struct {
	Message string
}

func (e BindingError) Error() string {
	return "parcel delivery binding violation: " + e.Message
}

// TransientError indicates that the delivery failed but may succeed if it is
// retried.
type TransientError struct {
	Cause error
}

func (e TransientError) Error() string {
	return "parcel delivery failed: " + e.Cause.Error()
}

func (e TransientError) Unwrap() error {
	return e.Cause
}

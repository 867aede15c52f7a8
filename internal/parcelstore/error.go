package parcelstore

// ValidationError indicates that a parcel was rejected because it is invalid
// or is not trusted.
type ValidationError struct {
	Cause error
}

func (e ValidationError) Error() string {
	return "invalid parcel: " + e.Cause.Error()
}

func (e ValidationError) Unwrap() error {
	return e.Cause
}

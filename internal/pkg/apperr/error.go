package apperr

import "errors"

// BaseError defines the interface for application-specific errors.
type BaseError interface {
	error
	Code() string
	Message() string
	Cause() error
}

// CodeOf returns the code of the first BaseError in err's chain, or an empty
// string when there is none.
func CodeOf(err error) string {
	var be BaseError
	if errors.As(err, &be) {
		return be.Code()
	}
	return ""
}

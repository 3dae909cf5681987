// Package errors provides custom error types.

package errors

import "fmt"

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	InvalidSignatureError struct {
		Msg string
	}
	SignatureMismatchError struct {
		Claimed   string
		Recovered string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *InvalidSignatureError) Error() string {
	return e.Msg
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature was produced by %s, not by claimed %s", e.Recovered, e.Claimed)
}

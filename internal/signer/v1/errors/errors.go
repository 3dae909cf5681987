// Package errors provides custom error types.

package errors

import (
	"fmt"
)

type (
	// UnavailableError reports a remote key service response missing the requested material.
	UnavailableError struct {
		Msg string
		Err error
	}
	// MismatchError reports that no recovery candidate reproduced the signer address.
	MismatchError struct {
		Address string
	}
	// MalformedKeyError reports undecodable key or signature material.
	MalformedKeyError struct {
		Err error
	}
)

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote signer unavailable: %s", e.Msg)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("signature is invalid: recovered address does not match %s", e.Address)
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("%s: could not decode key material", e.Err.Error())
}

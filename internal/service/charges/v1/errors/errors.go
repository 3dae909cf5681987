// Package errors provides custom error types.

package errors

import (
	"fmt"
)

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// MalformedPayloadError reports an undecodable queue message body.
	MalformedPayloadError struct {
		Err error
	}
	// NotAnEventError reports a payload whose resource is not an event.
	NotAnEventError struct {
		Resource string
	}
	// OrphanChargeError reports a lifecycle event for a charge the ledger
	// never recorded; the charge must have been created at top-up time.
	OrphanChargeError struct {
		ChargeID string
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: could not parse payload", e.Err.Error())
}

func (e *NotAnEventError) Error() string {
	return fmt.Sprintf("resource %q is not an event", e.Resource)
}

func (e *OrphanChargeError) Error() string {
	return fmt.Sprintf("unable to find charge %s", e.ChargeID)
}

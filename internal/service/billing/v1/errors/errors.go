// Package errors provides custom error types.

package errors

import "fmt"

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	IllegalAmountError struct {
		Amount int64
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *IllegalAmountError) Error() string {
	return fmt.Sprintf("charge amount must be a positive number of dollars, got %d", e.Amount)
}

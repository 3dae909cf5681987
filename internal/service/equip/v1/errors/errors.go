// Package errors provides custom error types.

package errors

import (
	"fmt"
)

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// NoSelectionError rejects a request with an empty accessory set.
	NoSelectionError struct{}
	// UnknownActionError rejects an action type outside Equip/Unequip.
	UnknownActionError struct {
		ActionType string
	}
	// UnknownAsunaError rejects a target the indexer has no record of.
	UnknownAsunaError struct {
		AsunaID int64
	}
	// AlreadyEquippedError rejects equipping accessories the target already carries.
	AlreadyEquippedError struct {
		AccessoryIDs []int64
	}
	// NotEquippedError rejects unequipping accessories the target does not carry.
	NotEquippedError struct {
		AccessoryIDs []int64
	}
	// ConflictingPendingRequestError rejects admission while matching requests are in flight.
	ConflictingPendingRequestError struct {
		AccessoryIDs []int64
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *NoSelectionError) Error() string {
	return "must select accessories"
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action type %s", e.ActionType)
}

func (e *UnknownAsunaError) Error() string {
	return fmt.Sprintf("asuna %d does not exist", e.AsunaID)
}

func (e *AlreadyEquippedError) Error() string {
	return fmt.Sprintf("items already equipped: %v", e.AccessoryIDs)
}

func (e *NotEquippedError) Error() string {
	return fmt.Sprintf("items not equipped: %v", e.AccessoryIDs)
}

func (e *ConflictingPendingRequestError) Error() string {
	return fmt.Sprintf("cannot make a new request because of pending items: %v", e.AccessoryIDs)
}

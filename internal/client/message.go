package client

import (
	"errors"

	"hrms/internal/apperror"
)

const (
	unavailableMessage = "The service is temporarily unavailable. Please try again."
	genericMessage     = "Something went wrong. Please try again."
)

// Message turns an error into text for the user. Input, lookup and conflict
// failures show the server's own explanation; anything else is generic.
// A superseded request shows nothing.
func Message(err error) string {
	if err == nil || errors.Is(err, ErrSuperseded) {
		return ""
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindNotFound, apperror.KindConflict:
		return err.Error()
	case apperror.KindStoreUnavailable:
		return unavailableMessage
	}
	return genericMessage
}

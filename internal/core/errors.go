package core

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateKeyword = errors.New("keyword already exists")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrTransport        = errors.New("carrier transport failure")
	ErrStorage          = errors.New("storage unavailable")
)

// DuplicateKeywordError is returned by Registry.Create when the normalized
// keyword is already taken.
type DuplicateKeywordError struct {
	Keyword string
}

func (e *DuplicateKeywordError) Error() string {
	return fmt.Sprintf("keyword %q already exists", e.Keyword)
}

func (e *DuplicateKeywordError) Is(target error) bool { return target == ErrDuplicateKeyword }

// TransportError means the carrier did not accept the reply.
type TransportError struct {
	Carrier string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Carrier == "" {
		return "carrier: " + e.Err.Error()
	}
	return e.Carrier + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StorageError wraps a failure of the registry or log backend.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// AsTransportError returns err unchanged if it already is a TransportError,
// otherwise wraps it.
func AsTransportError(carrier string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Carrier: carrier, Err: err}
}

package powermeter

import (
	"errors"
	"fmt"
)

// NotFoundError reports a GATT resource missing from the peer.
type NotFoundError struct {
	Resource string // "service" or "characteristic"
	UUID     uint16
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s 0x%04x not found", e.Resource, e.UUID)
}

// Sentinels reported through Options.OnFailure. Both are recovered by the
// next connection cycle, never by retrying discovery in place.
var (
	ErrServiceNotFound        = errors.New("target service not found")
	ErrCharacteristicNotFound = errors.New("target characteristic not found")
)

// Configuration errors returned by NewClient.
var (
	ErrEmptyTargetName = errors.New("target name is empty")
	ErrZeroUUID        = errors.New("target UUID must be non-zero")
	ErrNilHost         = errors.New("host stack is nil")
	ErrEventsClosed    = errors.New("host event channel closed")
)

package powermeter

import (
	"time"

	"github.com/go-ble/ble"
)

// DiscoveryState is the position of the GATT discovery pipeline.
type DiscoveryState int

const (
	StateIdle DiscoveryState = iota
	StateDiscoveringServices
	StateDiscoveringCharacteristics
	StateSubscribing
	StateSubscribed
)

func (s DiscoveryState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscoveringServices:
		return "discovering_services"
	case StateDiscoveringCharacteristics:
		return "discovering_characteristics"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// LinkPhase is the connection supervisor phase.
type LinkPhase int

const (
	LinkIdle LinkPhase = iota
	LinkScanning
	LinkConnecting
	LinkConnected
)

func (p LinkPhase) String() string {
	switch p {
	case LinkIdle:
		return "idle"
	case LinkScanning:
		return "scanning"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Service is the retained primary service of the target.
type Service struct {
	Start AttHandle
	End   AttHandle
	UUID  ble.UUID
}

// Characteristic is the retained target characteristic.
type Characteristic struct {
	ValueHandle AttHandle
	UUID        ble.UUID
}

// Status is a point-in-time copy of the client state, safe to share.
type Status struct {
	Phase     LinkPhase
	State     DiscoveryState
	Handle    ConnHandle
	Connected bool
	Address   string
	LastSeen  time.Time
}

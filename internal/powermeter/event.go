package powermeter

import (
	"fmt"

	"github.com/go-ble/ble"
)

// Event is a host stack event delivered to Client.HandleEvent.
// The set of implementations is closed; see the types below.
type Event interface {
	isEvent()
}

// StackReady fires once after PowerOn when the host stack accepts commands.
type StackReady struct{}

// AdvertisementReport carries one received advertising PDU.
type AdvertisementReport struct {
	Address     string
	AddressType AddressType
	EventType   AdvEventType
	RSSI        int
	Data        []byte // raw advertising data: length-prefixed, type-tagged fields
}

// ConnectionComplete reports an established link.
type ConnectionComplete struct {
	Handle ConnHandle
}

// DisconnectionComplete reports a dropped link or a failed connect attempt.
type DisconnectionComplete struct {
	Handle ConnHandle
	Reason uint8
}

// ServiceFound reports one primary service during service discovery.
type ServiceFound struct {
	Handle ConnHandle
	UUID   ble.UUID
	Start  AttHandle
	End    AttHandle
}

// CharacteristicFound reports one characteristic during characteristic discovery.
type CharacteristicFound struct {
	Handle      ConnHandle
	UUID        ble.UUID
	ValueHandle AttHandle
	Properties  ble.Property
}

// DiscoveryComplete ends a discovery or CCCD write procedure.
// A non-zero Status is an ATT error code.
type DiscoveryComplete struct {
	Handle ConnHandle
	Status uint8
}

// Notification carries a characteristic value notification.
type Notification struct {
	Handle      ConnHandle
	ValueHandle AttHandle
	Payload     []byte
}

func (StackReady) isEvent()            {}
func (AdvertisementReport) isEvent()   {}
func (ConnectionComplete) isEvent()    {}
func (DisconnectionComplete) isEvent() {}
func (ServiceFound) isEvent()          {}
func (CharacteristicFound) isEvent()   {}
func (DiscoveryComplete) isEvent()     {}
func (Notification) isEvent()          {}

// Disconnection reason codes used by the host adapter (Bluetooth Core Vol 1, Part F).
const (
	ReasonConnectionTimeout    uint8 = 0x08
	ReasonRemoteUserTerminated uint8 = 0x13
	ReasonLocalHostTerminated  uint8 = 0x16
	ReasonConnectionFailed     uint8 = 0x3E
)

// StatusUnlikelyError is reported for failures that carry no ATT error code.
const StatusUnlikelyError uint8 = 0x0E

// EventName returns a short name for log fields.
func EventName(ev Event) string {
	switch ev.(type) {
	case StackReady:
		return "stack_ready"
	case AdvertisementReport:
		return "advertisement_report"
	case ConnectionComplete:
		return "connection_complete"
	case DisconnectionComplete:
		return "disconnection_complete"
	case ServiceFound:
		return "service_found"
	case CharacteristicFound:
		return "characteristic_found"
	case DiscoveryComplete:
		return "discovery_complete"
	case Notification:
		return "notification"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

package powermeter

// ConnHandle identifies an established link.
type ConnHandle uint16

// InvalidHandle denotes "no connection".
const InvalidHandle ConnHandle = 0xFFFF

// AttHandle is an attribute handle in the peer's GATT table.
type AttHandle uint16

// AddressType is the LE address type reported with an advertisement.
type AddressType uint8

const (
	AddressPublic AddressType = 0
	AddressRandom AddressType = 1
)

// AdvEventType is the advertising report event type.
type AdvEventType uint8

const (
	AdvInd        AdvEventType = 0
	AdvDirectInd  AdvEventType = 1
	AdvScanInd    AdvEventType = 2
	AdvNonconnInd AdvEventType = 3
	AdvScanRsp    AdvEventType = 4
)

// Connectable reports whether a report with this event type may be answered
// with a connect request. Scan responses count, they are only sent by
// scannable advertisers that were answered with ADV_IND.
func (t AdvEventType) Connectable() bool {
	switch t {
	case AdvInd, AdvDirectInd, AdvScanRsp:
		return true
	default:
		return false
	}
}

// ScanParams are the LE scan parameters; Interval and Window are in 0.625 ms units.
type ScanParams struct {
	Active   bool
	Interval uint16
	Window   uint16
}

// DefaultScanParams returns active scanning at 30 ms interval and window.
func DefaultScanParams() ScanParams {
	return ScanParams{
		Active:   true,
		Interval: 0x0030,
		Window:   0x0030,
	}
}

// Subscription is the token binding a characteristic value handle to the
// notification sink.
type Subscription struct {
	ID          uint32
	ValueHandle AttHandle
}

// HostStack is the outbound command surface of the BLE host.
//
// Every command is fire-and-forget: its result arrives later as an Event.
// A returned error only means the command was rejected immediately.
type HostStack interface {
	PowerOn() error
	SetScanParameters(params ScanParams) error
	StartScan() error
	StopScan() error
	Connect(address string, addrType AddressType) error
	DiscoverPrimaryServices(handle ConnHandle) error
	DiscoverCharacteristics(handle ConnHandle, service Service) error
	RegisterNotificationListener(handle ConnHandle, char Characteristic) (Subscription, error)
	WriteClientCharacteristicConfig(handle ConnHandle, char Characteristic, enableNotify bool) error
	Disconnect(handle ConnHandle) error
}

package powermeter

import (
	"bytes"
	"unicode/utf8"
)

// Advertising data types (CSS v6, Part A).
const (
	ADTypeFlags            byte = 0x01
	ADTypeSomeUUID16       byte = 0x02
	ADTypeAllUUID16        byte = 0x03
	ADTypeAllUUID32        byte = 0x05
	ADTypeAllUUID128       byte = 0x07
	ADTypeShortName        byte = 0x08
	ADTypeCompleteName     byte = 0x09
	ADTypeServiceData16    byte = 0x16
	ADTypeServiceData32    byte = 0x20
	ADTypeServiceData128   byte = 0x21
	ADTypeManufacturerData byte = 0xFF
)

// maxSightingName bounds names handed to the sighting sink.
const maxSightingName = 31

// ADField is one advertising data structure.
type ADField struct {
	Type byte
	Data []byte
}

// WalkAD calls fn for every well-formed field of data in order until fn
// returns false. A zero length or truncated field ends the walk; the rest of
// the record cannot be resynchronised.
func WalkAD(data []byte, fn func(ADField) bool) {
	for i := 0; i < len(data); {
		l := int(data[i])
		if l == 0 || i+1+l > len(data) {
			return
		}
		if !fn(ADField{Type: data[i+1], Data: data[i+2 : i+1+l]}) {
			return
		}
		i += 1 + l
	}
}

// LocalName returns the first Complete or Shortened Local Name in data.
func LocalName(data []byte) (string, bool) {
	var name string
	found := false
	WalkAD(data, func(f ADField) bool {
		if isNameField(f.Type) {
			name, found = string(f.Data), true
			return false
		}
		return true
	})
	return name, found
}

func isNameField(t byte) bool {
	return t == ADTypeCompleteName || t == ADTypeShortName
}

// sightingName renders a name field for display: at most 31 bytes, invalid
// UTF-8 replaced.
func sightingName(b []byte) string {
	if len(b) > maxSightingName {
		b = b[:maxSightingName]
	}
	return string(bytes.ToValidUTF8(b, []byte(string(utf8.RuneError))))
}

// handleAdvertisement is the scan filter. Only connectable reports are
// parsed: each name field is reported as a sighting and the first exact
// match connects.
func (c *Client) handleAdvertisement(ev AdvertisementReport) {
	if c.phase != LinkScanning || !ev.EventType.Connectable() {
		return
	}

	WalkAD(ev.Data, func(f ADField) bool {
		if !isNameField(f.Type) {
			return true
		}

		if c.onSighting != nil {
			c.onSighting(ev.Address, sightingName(f.Data))
		}

		if !bytes.Equal(f.Data, c.targetName) {
			return true
		}

		c.connectTo(ev.Address, ev.AddressType)
		return false
	})
}

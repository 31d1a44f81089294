package hostble

import (
	"github.com/go-ble/ble"

	"github.com/srg/powerlight/internal/powermeter"
)

// maxFieldData is the largest payload a length byte can describe.
const maxFieldData = 254

// packet accumulates advertising data fields.
type packet []byte

func (p packet) appendField(typ byte, b []byte) packet {
	if len(b) > maxFieldData {
		b = b[:maxFieldData]
	}
	p = append(p, byte(len(b)+1), typ)
	return append(p, b...)
}

func (p packet) appendUUIDs(uuids []ble.UUID) packet {
	var u16, u32, u128 []byte
	for _, u := range uuids {
		switch len(u) {
		case 2:
			u16 = append(u16, u...)
		case 4:
			u32 = append(u32, u...)
		case 16:
			u128 = append(u128, u...)
		}
	}
	if len(u16) > 0 {
		p = p.appendField(powermeter.ADTypeAllUUID16, u16)
	}
	if len(u32) > 0 {
		p = p.appendField(powermeter.ADTypeAllUUID32, u32)
	}
	if len(u128) > 0 {
		p = p.appendField(powermeter.ADTypeAllUUID128, u128)
	}
	return p
}

func (p packet) appendServiceData(sd ble.ServiceData) packet {
	var typ byte
	switch len(sd.UUID) {
	case 2:
		typ = powermeter.ADTypeServiceData16
	case 4:
		typ = powermeter.ADTypeServiceData32
	case 16:
		typ = powermeter.ADTypeServiceData128
	default:
		return p
	}
	b := make([]byte, 0, len(sd.UUID)+len(sd.Data))
	b = append(b, sd.UUID...)
	b = append(b, sd.Data...)
	return p.appendField(typ, b)
}

// EncodeAD rebuilds raw advertising data from a parsed go-ble advertisement.
// go-ble merges the scan response into the advertisement, so the result may
// exceed the 31 bytes of a single PDU. The local name is always written as a
// Complete Local Name since go-ble does not keep the distinction.
func EncodeAD(adv ble.Advertisement) []byte {
	var p packet
	if name := adv.LocalName(); name != "" {
		p = p.appendField(powermeter.ADTypeCompleteName, []byte(name))
	}
	p = p.appendUUIDs(adv.Services())
	for _, sd := range adv.ServiceData() {
		p = p.appendServiceData(sd)
	}
	if md := adv.ManufacturerData(); len(md) > 0 {
		p = p.appendField(powermeter.ADTypeManufacturerData, md)
	}
	return p
}

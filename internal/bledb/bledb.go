// Package bledb names well-known Bluetooth SIG UUIDs and parses UUID strings
// given in configuration.
//
// The table is curated for fitness peripherals: the services and
// characteristics a trainer, power meter or heart rate strap exposes, plus
// the generic ones every peripheral has.
package bledb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// sigBaseSuffix is the Bluetooth SIG base UUID without its first 8 hex digits.
const sigBaseSuffix = "00001000800000805f9b34fb"

var (
	services = map[string]string{
		"1800": "Generic Access",
		"1801": "Generic Attribute",
		"180a": "Device Information",
		"180d": "Heart Rate",
		"180f": "Battery Service",
		"1814": "Running Speed and Cadence",
		"1816": "Cycling Speed and Cadence",
		"1818": "Cycling Power",
		"1826": "Fitness Machine",
		"fe59": "Nordic DFU",
	}

	characteristics = map[string]string{
		"2a00": "Device Name",
		"2a01": "Appearance",
		"2a04": "Peripheral Preferred Connection Parameters",
		"2a05": "Service Changed",
		"2a19": "Battery Level",
		"2a23": "System ID",
		"2a24": "Model Number String",
		"2a25": "Serial Number String",
		"2a26": "Firmware Revision String",
		"2a27": "Hardware Revision String",
		"2a28": "Software Revision String",
		"2a29": "Manufacturer Name String",
		"2a37": "Heart Rate Measurement",
		"2a38": "Body Sensor Location",
		"2a39": "Heart Rate Control Point",
		"2a5b": "CSC Measurement",
		"2a5c": "CSC Feature",
		"2a5d": "Sensor Location",
		"2a63": "Cycling Power Measurement",
		"2a65": "Cycling Power Feature",
		"2a66": "Cycling Power Control Point",
		"2acc": "Fitness Machine Feature",
		"2ad2": "Indoor Bike Data",
		"2ad3": "Training Status",
		"2ad6": "Supported Resistance Level Range",
		"2ad8": "Supported Power Range",
		"2ad9": "Fitness Machine Control Point",
		"2ada": "Fitness Machine Status",
	}

	descriptors = map[string]string{
		"2900": "Characteristic Extended Properties",
		"2901": "Characteristic User Descriptor",
		"2902": "Client Characteristic Configuration",
		"2903": "Server Characteristic Configuration",
		"2904": "Characteristic Presentation Format",
	}

	vendors = map[uint16]string{
		0x0001: "Nokia Mobile Phones",
		0x0006: "Microsoft",
		0x004c: "Apple, Inc.",
		0x0059: "Nordic Semiconductor ASA",
		0x0075: "Samsung Electronics Co. Ltd.",
		0x0087: "Garmin International, Inc.",
	}
)

// ErrInvalidUUID is returned for strings that are not a UUID.
var ErrInvalidUUID = errors.New("invalid UUID")

// NormalizeUUID lowercases u and strips braces, dashes and a 0x prefix.
// UUIDs on the SIG base collapse to their 16-bit (or 32-bit) short form.
func NormalizeUUID(u string) string {
	s := strings.ToLower(strings.TrimSpace(u))
	s = strings.Trim(s, "{}")
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")

	if len(s) == 32 && strings.HasSuffix(s, sigBaseSuffix) {
		s = s[:8]
		if strings.HasPrefix(s, "0000") {
			s = s[4:]
		}
	}
	return s
}

// ShortUUID parses a 16-bit UUID in any accepted notation, including the
// full form on the SIG base.
func ShortUUID(u string) (uint16, error) {
	s := NormalizeUUID(u)
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: %q is not a 16-bit UUID", ErrInvalidUUID, u)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidUUID, u, err)
	}
	return uint16(v), nil
}

// LookupService returns the name of a service UUID, or "" if unknown.
func LookupService(u string) string {
	return services[NormalizeUUID(u)]
}

// LookupCharacteristic returns the name of a characteristic UUID, or "" if unknown.
func LookupCharacteristic(u string) string {
	return characteristics[NormalizeUUID(u)]
}

// LookupDescriptor returns the name of a descriptor UUID, or "" if unknown.
func LookupDescriptor(u string) string {
	return descriptors[NormalizeUUID(u)]
}

// LookupVendor returns the company name for a manufacturer data company ID.
func LookupVendor(id uint16) string {
	return vendors[id]
}

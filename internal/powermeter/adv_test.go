package powermeter_test

import (
	"testing"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/powerlight/internal/powermeter"
)

func TestWalkAD(t *testing.T) {
	data := []byte{
		0x02, 0x01, 0x06,
		0x03, 0x03, 0x18, 0x18,
		0x06, 0x09, 'K', 'I', 'C', 'K', 'R',
	}

	var fields []powermeter.ADField
	powermeter.WalkAD(data, func(f powermeter.ADField) bool {
		fields = append(fields, f)
		return true
	})

	require.Len(t, fields, 3)
	assert.Equal(t, powermeter.ADTypeFlags, fields[0].Type)
	assert.Equal(t, []byte{0x06}, fields[0].Data)
	assert.Equal(t, byte(0x03), fields[1].Type)
	assert.Equal(t, []byte("KICKR"), fields[2].Data)
}

func TestWalkADStopsOnMalformedField(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"zero length terminates", []byte{0x02, 0x01, 0x06, 0x00, 0x02, 0x09, 'A'}, 1},
		{"length past end", []byte{0x02, 0x01, 0x06, 0x05, 0x09, 'A'}, 1},
		{"lone length byte", []byte{0x01}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			powermeter.WalkAD(tt.data, func(powermeter.ADField) bool { n++; return true })
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestLocalName(t *testing.T) {
	name, ok := powermeter.LocalName(append([]byte{0x02, 0x01, 0x06}, adName(powermeter.ADTypeShortName, "KICKR")...))
	assert.True(t, ok)
	assert.Equal(t, "KICKR", name)

	_, ok = powermeter.LocalName([]byte{0x02, 0x01, 0x06})
	assert.False(t, ok, "record without name MUST report no name")
}

func TestShortUUID(t *testing.T) {
	tests := []struct {
		name   string
		uuid   ble.UUID
		want   uint16
		wantOK bool
	}{
		{"16-bit", ble.UUID16(0x1818), 0x1818, true},
		{"128-bit base", uuid128(0x2A63), 0x2A63, true},
		{"128-bit vendor", ble.MustParse("a026e005-0a7d-4ab3-97fa-f1500f9feb8b"), 0xe005, true},
		{"32-bit", ble.UUID{0x18, 0x18, 0x00, 0x00}, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := powermeter.ShortUUID(tt.uuid)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePower(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    uint16
		wantOK  bool
	}{
		{"100 W", []byte{0x00, 0x00, 0x64, 0x00}, 100, true},
		{"little endian", []byte{0x00, 0x00, 0x2C, 0x01}, 300, true},
		{"extra fields ignored", []byte{0x34, 0x00, 0xFA, 0x00, 0x11, 0x22, 0x33}, 250, true},
		{"negative reinterpreted", []byte{0x00, 0x00, 0x9C, 0xFF}, 0xFF9C, true},
		{"three bytes", []byte{0x00, 0x00, 0x64}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := powermeter.ParsePower(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectableEventTypes(t *testing.T) {
	assert.True(t, powermeter.AdvInd.Connectable())
	assert.True(t, powermeter.AdvDirectInd.Connectable())
	assert.True(t, powermeter.AdvScanRsp.Connectable())
	assert.False(t, powermeter.AdvScanInd.Connectable())
	assert.False(t, powermeter.AdvNonconnInd.Connectable())
}

func TestNewClientValidation(t *testing.T) {
	host := newFakeHost()

	_, err := powermeter.NewClient(nil, powermeter.DefaultTarget(), nil)
	assert.ErrorIs(t, err, powermeter.ErrNilHost)

	_, err = powermeter.NewClient(host, powermeter.Target{Service: 1, Characteristic: 1}, nil)
	assert.ErrorIs(t, err, powermeter.ErrEmptyTargetName)

	_, err = powermeter.NewClient(host, powermeter.Target{Name: "x", Characteristic: 1}, nil)
	assert.ErrorIs(t, err, powermeter.ErrZeroUUID)

	c, err := powermeter.NewClient(host, powermeter.DefaultTarget(), nil)
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
	assert.Equal(t, powermeter.InvalidHandle, c.Status().Handle)
	assert.Equal(t, powermeter.LinkIdle, c.Status().Phase)
	assert.Equal(t, "idle", c.Status().State.String())
}

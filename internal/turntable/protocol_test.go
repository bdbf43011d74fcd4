package turntable

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestCRC16(t *testing.T) {
	// Standard check value for CRC-16/XMODEM.
	if got := crc16([]byte("123456789")); got != 0x31C3 {
		t.Errorf("crc16(123456789) = %#04x, want 0x31c3", got)
	}
}

func TestFrameLayout(t *testing.T) {
	f := SetSpeedFrame(math.Pi)

	if len(f) != 1+2+4+2 {
		t.Fatalf("len = %d, want 9", len(f))
	}
	if f[0] != opSetSpeed || f[1] != 0 || f[2] != 0 {
		t.Errorf("header = %x", f[:3])
	}
	if got := math.Float32frombits(binary.BigEndian.Uint32(f[3:7])); got != float32(math.Pi) {
		t.Errorf("payload = %v, want pi", got)
	}
	if got := binary.BigEndian.Uint16(f[7:]); got != crc16(f[:7]) {
		t.Errorf("crc = %#04x, want %#04x", got, crc16(f[:7]))
	}

	if f := EnableActionFrame(); len(f) != 5 {
		t.Errorf("enable frame len = %d, want 5", len(f))
	}
	if f := SetLEDFrame(0, 0, 0, 0); len(f) != 9 || f[0] != opSetLED {
		t.Errorf("led frame = %x", f)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "30 rpm", got: RPMToRadPerSec(30), want: math.Pi},
		{name: "60 rpm", got: RPMToRadPerSec(60), want: 2 * math.Pi},
		{name: "180 deg", got: DegToRad(180), want: math.Pi},
		{name: "-90 deg", got: DegToRad(-90), want: -math.Pi / 2},
		{name: "settle 90 deg at 30 rpm", got: SettleTime(90, 30), want: 0.5},
		{name: "settle negative degrees", got: SettleTime(-360, 60), want: 1},
		{name: "settle zero rpm", got: SettleTime(90, 0), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

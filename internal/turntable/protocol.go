package turntable

import (
	"encoding/binary"
	"math"
)

// Command opcodes for the Keigan motor serial protocol.
const (
	opSetCurveType  byte = 0x05
	opDisableAction byte = 0x50
	opEnableAction  byte = 0x51
	opSetSpeed      byte = 0x58
	opMoveByDist    byte = 0x68
	opSetLED        byte = 0xE0
)

// ledOff is the set-LED state that switches the LED off.
const ledOff byte = 0

// frame builds opcode | identifier(2) | payload | crc16(2).
// The identifier is unused by the motor and always zero.
func frame(op byte, payload []byte) []byte {
	b := make([]byte, 0, 1+2+len(payload)+2)
	b = append(b, op, 0x00, 0x00)
	b = append(b, payload...)
	return binary.BigEndian.AppendUint16(b, crc16(b))
}

func float32Payload(v float64) []byte {
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(v)))
}

// SetSpeedFrame sets the maximum rotation speed in rad/s.
func SetSpeedFrame(radPerSec float64) []byte {
	return frame(opSetSpeed, float32Payload(radPerSec))
}

// MoveByDistFrame rotates by a relative distance in radians. Positive is
// counter-clockwise.
func MoveByDistFrame(rad float64) []byte {
	return frame(opMoveByDist, float32Payload(rad))
}

// EnableActionFrame allows the motor to move.
func EnableActionFrame() []byte {
	return frame(opEnableAction, nil)
}

// DisableActionFrame stops and holds the motor.
func DisableActionFrame() []byte {
	return frame(opDisableAction, nil)
}

// SetCurveTypeFrame selects the acceleration curve (0 = none).
func SetCurveTypeFrame(curve uint8) []byte {
	return frame(opSetCurveType, []byte{curve})
}

// SetLEDFrame sets the status LED. A zero state turns it off.
func SetLEDFrame(state, r, g, b uint8) []byte {
	return frame(opSetLED, []byte{state, r, g, b})
}

// RPMToRadPerSec converts revolutions per minute to radians per second.
func RPMToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// SettleTime is how long a relative turn of deg degrees takes at rpm.
// One revolution per minute is six degrees per second.
func SettleTime(deg float64, rpm int) float64 {
	if rpm <= 0 {
		return 0
	}
	return math.Abs(deg / (float64(rpm) * 6))
}

// crc16 is CRC-16/XMODEM (poly 0x1021, init 0x0000).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

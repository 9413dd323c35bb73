package midealan

import (
	"fmt"

	"github.com/mholland/senville-sync/internal/model"
)

// Appliance message types carried inside the encrypted payload.
const (
	msgTypeSet    = 0x40
	msgTypeQuery  = 0x41
	msgTypeStatus = 0xC0
)

const (
	applianceAC = 0xAC
	msgHeader   = 0xAA

	statusBodyLen = 12

	// The appliance encodes target temperature as a 4-bit offset from 16C.
	minTargetC = 16
	maxTargetC = 31
)

// Status body layout (shared by set commands and status reports):
//
//	[0]  message type
//	[1]  bit0 power
//	[2]  bits5-7 mode, bits0-3 target temp minus 16
//	[3]  fan speed code
//	[7]  bits2-3 vertical swing, bits0-1 horizontal swing
//	[11] indoor temp, half degrees offset by 50 (status reports only)
//
// Remaining bytes are reserved and zero.

// buildQueryBody produces the 0x41 state-query body.
func buildQueryBody() []byte {
	body := make([]byte, statusBodyLen)
	body[0] = msgTypeQuery
	return body
}

// buildSetBody encodes a full state snapshot as a 0x40 set command.
func buildSetBody(st model.DeviceState) []byte {
	body := make([]byte, statusBodyLen)
	body[0] = msgTypeSet

	if st.Running {
		body[1] |= 0x01
	}

	target := st.TargetTempC
	if target < minTargetC {
		target = minTargetC
	}
	if target > maxTargetC {
		target = maxTargetC
	}
	body[2] = byte(st.Mode&0x7)<<5 | byte(target-minTargetC)&0x0F

	body[3] = byte(st.FanSpeed)

	if st.VerticalSwing {
		body[7] |= 0x0C
	}
	if st.HorizontalSwing {
		body[7] |= 0x03
	}

	return body
}

// parseStatusBody decodes a 0xC0 status report into a DeviceState.
func parseStatusBody(body []byte) (model.DeviceState, error) {
	if len(body) < statusBodyLen {
		return model.DeviceState{}, fmt.Errorf("status body too short: %d bytes", len(body))
	}
	if body[0] != msgTypeStatus {
		return model.DeviceState{}, fmt.Errorf("unexpected message type 0x%02x", body[0])
	}

	return model.DeviceState{
		Running:         body[1]&0x01 != 0,
		Mode:            int(body[2] >> 5 & 0x7),
		TargetTempC:     int(body[2]&0x0F) + minTargetC,
		FanSpeed:        int(body[3]),
		VerticalSwing:   body[7]&0x0C != 0,
		HorizontalSwing: body[7]&0x03 != 0,
		IndoorTempC:     (int(body[11]) - 50) / 2,
	}, nil
}

// encodeStatusBody is the inverse of parseStatusBody, used by the session
// tests and by the set path's post-apply expectations.
func encodeStatusBody(st model.DeviceState) []byte {
	body := buildSetBody(st)
	body[0] = msgTypeStatus
	body[11] = byte(st.IndoorTempC*2 + 50)
	return body
}

// wrapMessage frames an appliance body with the 0xAA header, CRC8 over the
// body, and the trailing two's-complement checksum over everything after the
// header byte.
func wrapMessage(body []byte) []byte {
	// length byte counts itself through the checksum
	msg := make([]byte, 0, len(body)+12)
	msg = append(msg, msgHeader, byte(len(body)+11), applianceAC)
	msg = append(msg, 0, 0, 0, 0, 0, 0, 0) // reserved
	msg = append(msg, body...)
	msg = append(msg, crc8(body))
	msg = append(msg, checksum(msg[1:]))
	return msg
}

// unwrapMessage validates header, CRC and checksum and returns the body.
func unwrapMessage(msg []byte) ([]byte, error) {
	if len(msg) < 12 {
		return nil, fmt.Errorf("message too short: %d bytes", len(msg))
	}
	if msg[0] != msgHeader {
		return nil, fmt.Errorf("bad message header 0x%02x", msg[0])
	}
	if msg[2] != applianceAC {
		return nil, fmt.Errorf("unexpected appliance type 0x%02x", msg[2])
	}
	if int(msg[1]) != len(msg)-1 {
		return nil, fmt.Errorf("message length mismatch: header says %d, have %d", msg[1], len(msg)-1)
	}

	if got, want := checksum(msg[1:len(msg)-1]), msg[len(msg)-1]; got != want {
		return nil, fmt.Errorf("checksum mismatch: computed 0x%02x, message has 0x%02x", got, want)
	}

	body := msg[10 : len(msg)-2]
	if got, want := crc8(body), msg[len(msg)-2]; got != want {
		return nil, fmt.Errorf("crc mismatch: computed 0x%02x, message has 0x%02x", got, want)
	}
	return body, nil
}

// checksum is the two's complement of the byte sum, as used by the appliance.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return byte(-sum)
}

var crcTable = makeCRCTable()

func makeCRCTable() [256]byte {
	var table [256]byte
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc = crcTable[crc^b]
	}
	return crc
}

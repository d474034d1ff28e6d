// SPDX-License-Identifier: MIT

// Package hdhr implements the HDHomeRun discovery protocol: the binary
// request/reply codec, the UDP broadcast probe and the device registry that
// keeps discovered appliances across discovery cycles.
package hdhr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Discovery protocol constants.
const (
	DiscoverUDPPort = 65001

	TypeDiscoverReq   uint16 = 0x0002
	TypeDiscoverReply uint16 = 0x0003

	TagDeviceType       byte = 0x01
	TagDeviceID         byte = 0x02
	TagErrorMessage     byte = 0x05
	TagTunerCount       byte = 0x10
	TagLineupURL        byte = 0x27
	TagStorageURL       byte = 0x28
	TagDeviceAuthBin    byte = 0x29
	TagBaseURL          byte = 0x2A
	TagDeviceAuthString byte = 0x2B
	TagStorageID        byte = 0x2C

	DeviceTypeTuner    uint32 = 0x00000001
	DeviceTypeStorage  uint32 = 0x00000005
	DeviceTypeWildcard uint32 = 0xFFFFFFFF
	DeviceIDWildcard   uint32 = 0xFFFFFFFF

	headerLen   = 4
	checksumLen = 4
	maxValueLen = 0xFF
)

// ErrMalformedReply is returned for any structurally invalid discovery reply.
// Callers discard the packet; it never fails a discovery cycle.
var ErrMalformedReply = errors.New("hdhr: malformed discovery reply")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum computes the packet trailer over header and payload bytes.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Reply is the decoded content of a discovery reply. Optional tags that were
// absent decode to their zero value; the Has* flags record presence where the
// zero value is meaningful.
type Reply struct {
	DeviceType       uint32
	DeviceID         uint32
	HasDeviceID      bool
	TunerCount       int
	LineupURL        string
	StorageURL       string
	BaseURL          string
	DeviceAuth       string
	DeviceAuthString string
	StorageID        string
}

// EncodeDiscoverRequest builds a broadcast probe for the given device type
// and id. Use DeviceTypeWildcard/DeviceIDWildcard to probe every appliance.
func EncodeDiscoverRequest(deviceType, deviceID uint32) []byte {
	var payload []byte
	payload = appendUint32Tag(payload, TagDeviceType, deviceType)
	payload = appendUint32Tag(payload, TagDeviceID, deviceID)
	return frame(TypeDiscoverReq, payload)
}

// EncodeReply builds a discovery reply packet. Appliances send these; the
// encoder exists for responders used in tests and tooling.
func EncodeReply(r Reply) ([]byte, error) {
	var payload []byte
	payload = appendUint32Tag(payload, TagDeviceType, r.DeviceType)
	if r.HasDeviceID {
		payload = appendUint32Tag(payload, TagDeviceID, r.DeviceID)
	}
	if r.TunerCount > 0 {
		if r.TunerCount > 0xFF {
			return nil, fmt.Errorf("tuner count %d out of range", r.TunerCount)
		}
		payload = append(payload, TagTunerCount, 1, byte(r.TunerCount))
	}
	strTags := []struct {
		tag   byte
		value string
	}{
		{TagLineupURL, r.LineupURL},
		{TagStorageURL, r.StorageURL},
		{TagDeviceAuthBin, r.DeviceAuth},
		{TagBaseURL, r.BaseURL},
		{TagDeviceAuthString, r.DeviceAuthString},
		{TagStorageID, r.StorageID},
	}
	for _, st := range strTags {
		if st.value == "" {
			continue
		}
		if len(st.value) > maxValueLen {
			return nil, fmt.Errorf("tag 0x%02X: value length %d exceeds %d", st.tag, len(st.value), maxValueLen)
		}
		payload = append(payload, st.tag, byte(len(st.value)))
		payload = append(payload, st.value...)
	}
	return frame(TypeDiscoverReply, payload), nil
}

// DecodeRequest validates a discovery request and returns the probed device
// type and id.
func DecodeRequest(packet []byte) (deviceType, deviceID uint32, err error) {
	payload, err := unframe(packet, TypeDiscoverReq)
	if err != nil {
		return 0, 0, err
	}
	deviceType, deviceID = DeviceTypeWildcard, DeviceIDWildcard
	err = walkTags(payload, func(tag byte, value []byte) error {
		switch tag {
		case TagDeviceType:
			v, err := uint32Value(value)
			if err != nil {
				return err
			}
			deviceType = v
		case TagDeviceID:
			v, err := uint32Value(value)
			if err != nil {
				return err
			}
			deviceID = v
		}
		return nil
	})
	return deviceType, deviceID, err
}

// DecodeReply validates and decodes a discovery reply. Unknown tags are
// skipped by their declared length. Every structural problem yields an error
// wrapping ErrMalformedReply.
func DecodeReply(packet []byte) (Reply, error) {
	var r Reply
	payload, err := unframe(packet, TypeDiscoverReply)
	if err != nil {
		return r, err
	}

	hasType := false
	err = walkTags(payload, func(tag byte, value []byte) error {
		switch tag {
		case TagDeviceType:
			v, err := uint32Value(value)
			if err != nil {
				return err
			}
			r.DeviceType = v
			hasType = true
		case TagDeviceID:
			v, err := uint32Value(value)
			if err != nil {
				return err
			}
			r.DeviceID = v
			r.HasDeviceID = true
		case TagTunerCount:
			if len(value) == 0 {
				return fmt.Errorf("%w: empty tuner count", ErrMalformedReply)
			}
			n := 0
			for _, b := range value {
				n = n<<8 | int(b)
			}
			r.TunerCount = n
		case TagLineupURL:
			r.LineupURL = string(value)
		case TagStorageURL:
			r.StorageURL = string(value)
		case TagDeviceAuthBin:
			r.DeviceAuth = string(value)
		case TagBaseURL:
			r.BaseURL = string(value)
		case TagDeviceAuthString:
			r.DeviceAuthString = string(value)
		case TagStorageID:
			r.StorageID = string(value)
		}
		return nil
	})
	if err != nil {
		return Reply{}, err
	}
	if !hasType {
		return Reply{}, fmt.Errorf("%w: missing device type", ErrMalformedReply)
	}
	if r.DeviceType != DeviceTypeTuner && r.DeviceType != DeviceTypeStorage {
		return Reply{}, fmt.Errorf("%w: unknown device type 0x%08X", ErrMalformedReply, r.DeviceType)
	}
	return r, nil
}

func frame(msgType uint16, payload []byte) []byte {
	packet := make([]byte, 0, headerLen+len(payload)+checksumLen)
	packet = binary.BigEndian.AppendUint16(packet, msgType)
	packet = binary.BigEndian.AppendUint16(packet, uint16(len(payload)))
	packet = append(packet, payload...)
	return binary.BigEndian.AppendUint32(packet, Checksum(packet))
}

func unframe(packet []byte, wantType uint16) ([]byte, error) {
	if len(packet) < headerLen+checksumLen {
		return nil, fmt.Errorf("%w: short packet (%d bytes)", ErrMalformedReply, len(packet))
	}
	msgType := binary.BigEndian.Uint16(packet[0:2])
	if msgType != wantType {
		return nil, fmt.Errorf("%w: message type 0x%04X, want 0x%04X", ErrMalformedReply, msgType, wantType)
	}
	declared := int(binary.BigEndian.Uint16(packet[2:4]))
	body := packet[:len(packet)-checksumLen]
	payload := body[headerLen:]
	if declared != len(payload) {
		return nil, fmt.Errorf("%w: declared payload %d bytes, got %d", ErrMalformedReply, declared, len(payload))
	}
	sum := binary.BigEndian.Uint32(packet[len(packet)-checksumLen:])
	if sum != Checksum(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedReply)
	}
	return payload, nil
}

func walkTags(payload []byte, fn func(tag byte, value []byte) error) error {
	for i := 0; i < len(payload); {
		if len(payload)-i < 2 {
			return fmt.Errorf("%w: truncated tag header at offset %d", ErrMalformedReply, i)
		}
		tag, length := payload[i], int(payload[i+1])
		i += 2
		if len(payload)-i < length {
			return fmt.Errorf("%w: tag 0x%02X declares %d bytes, %d remain", ErrMalformedReply, tag, length, len(payload)-i)
		}
		if err := fn(tag, payload[i:i+length]); err != nil {
			return err
		}
		i += length
	}
	return nil
}

func appendUint32Tag(b []byte, tag byte, v uint32) []byte {
	b = append(b, tag, 4)
	return binary.BigEndian.AppendUint32(b, v)
}

func uint32Value(value []byte) (uint32, error) {
	if len(value) != 4 {
		return 0, fmt.Errorf("%w: expected 4-byte value, got %d", ErrMalformedReply, len(value))
	}
	return binary.BigEndian.Uint32(value), nil
}

/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ptp

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// MajorVersion/MinorVersion are the only PTP protocol version this
// codec speaks; any other major version on receive is UnsupportedVersion.
const (
	MajorVersion     uint8 = 2
	MinorVersion     uint8 = 1
	Version          uint8 = MinorVersion<<4 | MajorVersion
	MajorVersionMask uint8 = 0x0f
)

// Flags used in Header.FlagField, Table 37.
const (
	FlagAlternateMaster  uint16 = 1 << (8 + 0)
	FlagTwoStep          uint16 = 1 << (8 + 1)
	FlagUnicast          uint16 = 1 << (8 + 2)
	FlagProfileSpecific1 uint16 = 1 << (8 + 5)
	FlagProfileSpecific2 uint16 = 1 << (8 + 6)

	FlagLeap61                   uint16 = 1 << 0
	FlagLeap59                   uint16 = 1 << 1
	FlagCurrentUTCOffsetValid    uint16 = 1 << 2
	FlagPTPTimescale             uint16 = 1 << 3
	FlagTimeTraceable            uint16 = 1 << 4
	FlagFrequencyTraceable       uint16 = 1 << 5
	FlagSynchronizationUncertain uint16 = 1 << 6
)

// HeaderSize is the fixed size in bytes of the common PTP header.
const HeaderSize = 34

// Header is the common PTP message header, Table 35.
type Header struct {
	SdoIDAndMsgType    SdoIDAndMsgType
	Version            uint8
	MessageLength      uint16
	DomainNumber       uint8
	MinorSdoID         uint8
	FlagField          uint16
	CorrectionField    Correction
	SourcePortIdentity PortIdentity
	SequenceID         uint16
	ControlField       uint8
	LogMessageInterval int8
}

// MessageType extracts the message type from SdoIDAndMsgType.
func (h Header) MessageType() MessageType { return h.SdoIDAndMsgType.MsgType() }

func marshalHeader(h *Header, b []byte) {
	b[0] = byte(h.SdoIDAndMsgType)
	b[1] = h.Version
	binary.BigEndian.PutUint16(b[2:], h.MessageLength)
	b[4] = h.DomainNumber
	b[5] = h.MinorSdoID
	binary.BigEndian.PutUint16(b[6:], h.FlagField)
	binary.BigEndian.PutUint64(b[8:], uint64(h.CorrectionField))
	binary.BigEndian.PutUint32(b[16:], 0) // reserved, zero on send per §4.1 policy
	binary.BigEndian.PutUint64(b[20:], uint64(h.SourcePortIdentity.ClockIdentity))
	binary.BigEndian.PutUint16(b[28:], h.SourcePortIdentity.PortNumber)
	binary.BigEndian.PutUint16(b[30:], h.SequenceID)
	b[32] = h.ControlField
	b[33] = byte(h.LogMessageInterval)
}

func unmarshalHeader(h *Header, b []byte) error {
	if len(b) < HeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for header, got %d", HeaderSize, len(b))
	}
	h.SdoIDAndMsgType = SdoIDAndMsgType(b[0])
	h.Version = b[1]
	if h.Version&MajorVersionMask != MajorVersion {
		return wireerr.New(wireerr.UnsupportedVersion, "got PTP major version %d, want %d", h.Version&MajorVersionMask, MajorVersion)
	}
	h.MessageLength = binary.BigEndian.Uint16(b[2:])
	h.DomainNumber = b[4]
	h.MinorSdoID = b[5]
	h.FlagField = binary.BigEndian.Uint16(b[6:])
	h.CorrectionField = Correction(binary.BigEndian.Uint64(b[8:]))
	// bytes 16:20 are reserved; ignored on receive per §4.1 policy
	h.SourcePortIdentity.ClockIdentity = ClockIdentity(binary.BigEndian.Uint64(b[20:]))
	h.SourcePortIdentity.PortNumber = binary.BigEndian.Uint16(b[28:])
	h.SequenceID = binary.BigEndian.Uint16(b[30:])
	h.ControlField = b[32]
	h.LogMessageInterval = int8(b[33])
	if int(h.MessageLength) > len(b) {
		return wireerr.New(wireerr.LengthMismatch, "header claims messageLength %d, buffer has %d", h.MessageLength, len(b))
	}
	return nil
}

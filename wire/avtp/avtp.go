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

// Package avtp implements the wire codec for the IEEE 1722 Audio/Video
// Transport Protocol common header and its AAF/CVF/CRF subtype bodies,
// following the same header-struct-plus-MarshalBinary/UnmarshalBinary shape
// as wire/ptp.
package avtp

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// Subtype identifies the AVTPDU variant carried after the common header.
type Subtype uint8

// AVTP subtypes this codec implements, IEEE 1722-2016 Table 5.
const (
	SubtypeAAF Subtype = 0x02 // AVTP Audio Format
	SubtypeCVF Subtype = 0x03 // Compressed Video Format
	SubtypeCRF Subtype = 0x04 // Clock Reference Format
)

// Version is the only avtp_version this codec speaks; decode rejects anything else.
const Version uint8 = 0

// CommonHeaderSize is the fixed size of the AVTP common header: subtype,
// flags, sequence_num, flags, stream_id, avtp_timestamp.
const CommonHeaderSize = 16

// CommonHeader is the subtype-independent prefix of every AVTPDU, §4.7/§3.
type CommonHeader struct {
	Subtype            Subtype
	StreamValid        bool
	Version             uint8
	MediaClockRestart  bool
	GatewayValid       bool
	TimestampValid     bool
	SequenceNum        uint8
	TimestampUncertain bool
	StreamID           uint64
	AVTPTimestamp      uint32
}

// Validate checks the common-header invariants from spec §3/§4.7:
// version must be 0, and stream_valid implies a non-zero stream id.
func (h CommonHeader) Validate() error {
	if h.Version != Version {
		return wireerr.New(wireerr.UnsupportedVersion, "avtp version %d, want %d", h.Version, Version)
	}
	if h.StreamValid && h.StreamID == 0 {
		return wireerr.New(wireerr.LengthMismatch, "stream_valid set but stream_id is zero")
	}
	return nil
}

func encodeCommon(h *CommonHeader, b []byte) {
	b[0] = byte(h.Subtype)
	flags0 := h.Version << 4
	if h.StreamValid {
		flags0 |= 0x80
	}
	b[1] = flags0
	b[2] = h.SequenceNum
	flags1 := byte(0)
	if h.MediaClockRestart {
		flags1 |= 0x80
	}
	if h.GatewayValid {
		flags1 |= 0x40
	}
	if h.TimestampValid {
		flags1 |= 0x20
	}
	if h.TimestampUncertain {
		flags1 |= 0x10
	}
	b[3] = flags1
	binary.BigEndian.PutUint64(b[4:], h.StreamID)
	binary.BigEndian.PutUint32(b[12:], h.AVTPTimestamp)
}

func decodeCommon(b []byte) (CommonHeader, error) {
	if len(b) < CommonHeaderSize {
		return CommonHeader{}, wireerr.New(wireerr.Truncated, "need %d bytes for AVTP common header, got %d", CommonHeaderSize, len(b))
	}
	h := CommonHeader{
		Subtype:            Subtype(b[0]),
		StreamValid:        b[1]&0x80 != 0,
		Version:            (b[1] >> 4) & 0x7,
		SequenceNum:        b[2],
		MediaClockRestart:  b[3]&0x80 != 0,
		GatewayValid:       b[3]&0x40 != 0,
		TimestampValid:     b[3]&0x20 != 0,
		TimestampUncertain: b[3]&0x10 != 0,
		StreamID:           binary.BigEndian.Uint64(b[4:]),
		AVTPTimestamp:      binary.BigEndian.Uint32(b[12:]),
	}
	if err := h.Validate(); err != nil {
		return CommonHeader{}, err
	}
	return h, nil
}

// Decode dispatches on the common header's subtype byte and decodes the
// full AVTPDU. No partial decode: returns either a complete frame or an error.
func Decode(b []byte) (any, error) {
	if len(b) < 1 {
		return nil, wireerr.New(wireerr.Truncated, "need at least 1 byte to probe AVTP subtype")
	}
	switch Subtype(b[0]) {
	case SubtypeAAF:
		f := &AAF{}
		if err := f.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return f, nil
	case SubtypeCVF:
		f := &CVF{}
		if err := f.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return f, nil
	case SubtypeCRF:
		f := &CRF{}
		if err := f.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, wireerr.New(wireerr.UnknownSubtype, "avtp subtype 0x%x", b[0])
	}
}

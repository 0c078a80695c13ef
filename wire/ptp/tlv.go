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

// TLVType identifies the kind of an Announce-suffix TLV, Table 52.
type TLVType uint16

// TLVPathTrace is the only TLV this profile carries: an ordered list
// of the clock identities an Announce message has passed through,
// used to detect topology loops and report steps-removed trace.
const TLVPathTrace TLVType = 0x0008

const tlvHeadSize = 4

// TLV is implemented by every TLV type this codec knows how to encode.
type TLV interface {
	Type() TLVType
	MarshalBinaryTo([]byte) (int, error)
}

// PathTraceTLV is the TLVPathTrace TLV: a sequence of ClockIdentity.
type PathTraceTLV struct {
	PathSequence []ClockIdentity
}

// Type implements TLV.
func (t *PathTraceTLV) Type() TLVType { return TLVPathTrace }

// MarshalBinaryTo encodes the TLV (header + path sequence) into b.
func (t *PathTraceTLV) MarshalBinaryTo(b []byte) (int, error) {
	need := tlvHeadSize + 8*len(t.PathSequence)
	if len(b) < need {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for PathTraceTLV")
	}
	binary.BigEndian.PutUint16(b, uint16(TLVPathTrace))
	binary.BigEndian.PutUint16(b[2:], uint16(8*len(t.PathSequence)))
	pos := tlvHeadSize
	for _, id := range t.PathSequence {
		binary.BigEndian.PutUint64(b[pos:], uint64(id))
		pos += 8
	}
	return pos, nil
}

func unmarshalPathTraceTLV(length int, b []byte) (*PathTraceTLV, error) {
	if length%8 != 0 {
		return nil, wireerr.New(wireerr.LengthMismatch, "PathTraceTLV length %d not a multiple of 8", length)
	}
	if len(b) < length {
		return nil, wireerr.New(wireerr.Truncated, "PathTraceTLV needs %d bytes, got %d", length, len(b))
	}
	t := &PathTraceTLV{PathSequence: make([]ClockIdentity, 0, length/8)}
	for pos := 0; pos < length; pos += 8 {
		t.PathSequence = append(t.PathSequence, ClockIdentity(binary.BigEndian.Uint64(b[pos:])))
	}
	return t, nil
}

// UnknownTLV preserves an unrecognized TLV's raw bytes so round-trip
// re-encoding doesn't silently drop it (§8 invariant 1/2).
type UnknownTLV struct {
	RawType TLVType
	Value   []byte
}

// Type implements TLV.
func (t *UnknownTLV) Type() TLVType { return t.RawType }

// MarshalBinaryTo encodes the raw TLV bytes back out unchanged.
func (t *UnknownTLV) MarshalBinaryTo(b []byte) (int, error) {
	need := tlvHeadSize + len(t.Value)
	if len(b) < need {
		return 0, wireerr.New(wireerr.Truncated, "buffer too small for UnknownTLV")
	}
	binary.BigEndian.PutUint16(b, uint16(t.RawType))
	binary.BigEndian.PutUint16(b[2:], uint16(len(t.Value)))
	copy(b[tlvHeadSize:], t.Value)
	return tlvHeadSize + len(t.Value), nil
}

func tlvBudget(tlvs []TLV) int {
	n := 0
	for _, t := range tlvs {
		switch v := t.(type) {
		case *PathTraceTLV:
			n += tlvHeadSize + 8*len(v.PathSequence)
		case *UnknownTLV:
			n += tlvHeadSize + len(v.Value)
		}
	}
	return n
}

func writeTLVs(tlvs []TLV, b []byte) (int, error) {
	pos := 0
	for _, t := range tlvs {
		n, err := t.MarshalBinaryTo(b[pos:])
		if err != nil {
			return 0, err
		}
		pos += n
	}
	return pos, nil
}

func readTLVs(totalLen int, b []byte) ([]TLV, error) {
	if totalLen <= 0 {
		return nil, nil
	}
	if len(b) < totalLen {
		return nil, wireerr.New(wireerr.Truncated, "TLV suffix needs %d bytes, got %d", totalLen, len(b))
	}
	var tlvs []TLV
	pos := 0
	for pos < totalLen {
		if totalLen-pos < tlvHeadSize {
			return nil, wireerr.New(wireerr.Truncated, "incomplete TLV header")
		}
		typ := TLVType(binary.BigEndian.Uint16(b[pos:]))
		length := int(binary.BigEndian.Uint16(b[pos+2:]))
		body := b[pos+tlvHeadSize:]
		if len(body) < length {
			return nil, wireerr.New(wireerr.Truncated, "TLV body needs %d bytes, got %d", length, len(body))
		}
		switch typ {
		case TLVPathTrace:
			t, err := unmarshalPathTraceTLV(length, body)
			if err != nil {
				return nil, err
			}
			tlvs = append(tlvs, t)
		default:
			raw := make([]byte, length)
			copy(raw, body[:length])
			tlvs = append(tlvs, &UnknownTLV{RawType: typ, Value: raw})
		}
		pos += tlvHeadSize + length
	}
	return tlvs, nil
}

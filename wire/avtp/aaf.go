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

package avtp

import (
	"encoding/binary"

	"github.com/ptpavb/endpoint/wire/wireerr"
)

// Format is the AAF sample encoding, IEEE 1722-2016 Table 9.
type Format uint8

// AAF sample encodings this codec carries.
const (
	FormatUser      Format = 0x00
	FormatFloat32   Format = 0x01
	FormatInt32     Format = 0x02
	FormatInt24     Format = 0x03
	FormatInt16     Format = 0x04
	FormatAES3_32   Format = 0x05
)

// NominalSampleRate enumerates the base-profile sample rates, §4.7.
type NominalSampleRate uint8

// Sample rate enumerants; value is an index, not the Hz value itself,
// matching IEEE 1722's nsr nibble encoding.
const (
	Rate8kHz     NominalSampleRate = 1
	Rate16kHz    NominalSampleRate = 2
	Rate32kHz    NominalSampleRate = 3
	Rate44_1kHz  NominalSampleRate = 4
	Rate48kHz    NominalSampleRate = 5
	Rate88_2kHz  NominalSampleRate = 6
	Rate96kHz    NominalSampleRate = 7
	Rate176_4kHz NominalSampleRate = 8
	Rate192kHz   NominalSampleRate = 9
)

// RateHz returns the nominal sample rate in Hz, or 0 if unknown.
func (r NominalSampleRate) RateHz() int {
	switch r {
	case Rate8kHz:
		return 8000
	case Rate16kHz:
		return 16000
	case Rate32kHz:
		return 32000
	case Rate44_1kHz:
		return 44100
	case Rate48kHz:
		return 48000
	case Rate88_2kHz:
		return 88200
	case Rate96kHz:
		return 96000
	case Rate176_4kHz:
		return 176400
	case Rate192kHz:
		return 192000
	default:
		return 0
	}
}

// aafHeaderSize is the AAF-specific fixed header appended after the
// common 16-byte header: format, nominal sample rate, channels, bit
// depth, stream_data_length, format_specific_data — 8 bytes, §4.7.
const aafHeaderSize = 8

// AAF is a full AVTP Audio Format packet.
type AAF struct {
	CommonHeader
	Format            Format
	NominalSampleRate NominalSampleRate
	Channels          uint8
	BitDepth          uint8
	StreamDataLength  uint16
	FormatSpecificData uint16
	Payload           []byte
}

// bitDepthOK reports whether bd is one of the profile's allowed bit depths.
func bitDepthOK(bd uint8) bool {
	return bd == 16 || bd == 24 || bd == 32
}

// Validate checks the AAF-specific invariants from §4.7: bit_depth is
// one of {16,24,32} and channels*samples_per_frame*(bit_depth/8) equals
// the advertised audio_data_size (here, the payload length for one frame).
func (f *AAF) Validate(samplesPerFrame int, mtu int) error {
	if err := f.CommonHeader.Validate(); err != nil {
		return err
	}
	if !bitDepthOK(f.BitDepth) {
		return wireerr.New(wireerr.LengthMismatch, "AAF bit_depth %d not in {16,24,32}", f.BitDepth)
	}
	want := int(f.Channels) * samplesPerFrame * int(f.BitDepth) / 8
	if want != len(f.Payload) {
		return wireerr.New(wireerr.LengthMismatch, "AAF audio_data_size %d != channels*samples*bytes %d", len(f.Payload), want)
	}
	if CommonHeaderSize+aafHeaderSize+len(f.Payload) > mtu {
		return wireerr.New(wireerr.LengthMismatch, "AAF payload exceeds MTU budget %d", mtu)
	}
	return nil
}

// MarshalBinary encodes the AAF packet into a freshly allocated buffer.
func (f *AAF) MarshalBinary() ([]byte, error) {
	b := make([]byte, CommonHeaderSize+aafHeaderSize+len(f.Payload))
	encodeCommon(&f.CommonHeader, b)
	n := CommonHeaderSize
	b[n] = byte(f.Format)
	b[n+1] = byte(f.NominalSampleRate)
	b[n+2] = f.Channels
	b[n+3] = f.BitDepth
	binary.BigEndian.PutUint16(b[n+4:], f.StreamDataLength)
	binary.BigEndian.PutUint16(b[n+6:], f.FormatSpecificData)
	copy(b[n+aafHeaderSize:], f.Payload)
	return b, nil
}

// UnmarshalBinary decodes an AAF packet from b.
func (f *AAF) UnmarshalBinary(b []byte) error {
	if len(b) < CommonHeaderSize+aafHeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for AAF header, got %d", CommonHeaderSize+aafHeaderSize, len(b))
	}
	ch, err := decodeCommon(b)
	if err != nil {
		return err
	}
	f.CommonHeader = ch
	n := CommonHeaderSize
	f.Format = Format(b[n])
	f.NominalSampleRate = NominalSampleRate(b[n+1])
	f.Channels = b[n+2]
	f.BitDepth = b[n+3]
	f.StreamDataLength = binary.BigEndian.Uint16(b[n+4:])
	f.FormatSpecificData = binary.BigEndian.Uint16(b[n+6:])
	payloadStart := n + aafHeaderSize
	if int(f.StreamDataLength) > len(b)-payloadStart {
		return wireerr.New(wireerr.LengthMismatch, "stream_data_length %d exceeds remaining %d bytes", f.StreamDataLength, len(b)-payloadStart)
	}
	f.Payload = append([]byte(nil), b[payloadStart:payloadStart+int(f.StreamDataLength)]...)
	return nil
}

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

// VideoFormat is the CVF compressed video encoding.
type VideoFormat uint8

// CVF video formats this codec carries.
const (
	VideoFormatH264 VideoFormat = 0x01
	VideoFormatMJPEG VideoFormat = 0x02
)

// cvfHeaderSize is the CVF-specific fixed header, §4.7: format, width,
// height, frame_rate, interlaced + reserved, stream_data_length,
// format_specific_data — 12 bytes.
const cvfHeaderSize = 12

// CVF is a full AVTP Compressed Video Format packet.
type CVF struct {
	CommonHeader
	Format             VideoFormat
	Width              uint16
	Height             uint16
	FrameRate          uint8
	Interlaced         bool
	StreamDataLength   uint16
	FormatSpecificData uint16
	Payload            []byte
}

// MarshalBinary encodes the CVF packet into a freshly allocated buffer.
func (f *CVF) MarshalBinary() ([]byte, error) {
	b := make([]byte, CommonHeaderSize+cvfHeaderSize+len(f.Payload))
	encodeCommon(&f.CommonHeader, b)
	n := CommonHeaderSize
	b[n] = byte(f.Format)
	binary.BigEndian.PutUint16(b[n+1:], f.Width)
	binary.BigEndian.PutUint16(b[n+3:], f.Height)
	b[n+5] = f.FrameRate
	interlacedByte := byte(0)
	if f.Interlaced {
		interlacedByte = 1
	}
	b[n+6] = interlacedByte
	// b[n+7] reserved, zero on send
	binary.BigEndian.PutUint16(b[n+8:], f.StreamDataLength)
	binary.BigEndian.PutUint16(b[n+10:], f.FormatSpecificData)
	copy(b[n+cvfHeaderSize:], f.Payload)
	return b, nil
}

// UnmarshalBinary decodes a CVF packet from b.
func (f *CVF) UnmarshalBinary(b []byte) error {
	if len(b) < CommonHeaderSize+cvfHeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for CVF header, got %d", CommonHeaderSize+cvfHeaderSize, len(b))
	}
	ch, err := decodeCommon(b)
	if err != nil {
		return err
	}
	f.CommonHeader = ch
	n := CommonHeaderSize
	f.Format = VideoFormat(b[n])
	f.Width = binary.BigEndian.Uint16(b[n+1:])
	f.Height = binary.BigEndian.Uint16(b[n+3:])
	f.FrameRate = b[n+5]
	f.Interlaced = b[n+6] != 0
	f.StreamDataLength = binary.BigEndian.Uint16(b[n+8:])
	f.FormatSpecificData = binary.BigEndian.Uint16(b[n+10:])
	payloadStart := n + cvfHeaderSize
	if int(f.StreamDataLength) > len(b)-payloadStart {
		return wireerr.New(wireerr.LengthMismatch, "stream_data_length %d exceeds remaining %d bytes", f.StreamDataLength, len(b)-payloadStart)
	}
	f.Payload = append([]byte(nil), b[payloadStart:payloadStart+int(f.StreamDataLength)]...)
	return nil
}

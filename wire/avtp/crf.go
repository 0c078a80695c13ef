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

// CRFType is the kind of clock reference a CRF stream carries, §4.7.
type CRFType uint8

// CRF types this codec carries.
const (
	CRFTypeAudioSample  CRFType = 0x00
	CRFTypeVideoFrame   CRFType = 0x01
	CRFTypeMachineCycle CRFType = 0x02
)

// crfHeaderSize is the CRF-specific fixed header: crf_type, reserved,
// base_frequency, stream_data_length — 8 bytes, §4.7.
const crfHeaderSize = 8

// CRF is a full AVTP Clock Reference Format packet: a periodic train
// of timestamps used for media-clock recovery at the listener.
type CRF struct {
	CommonHeader
	CRFType         CRFType
	BaseFrequency   uint32
	TimestampTrain  []uint64
}

// MarshalBinary encodes the CRF packet into a freshly allocated buffer.
func (f *CRF) MarshalBinary() ([]byte, error) {
	payloadLen := 8 * len(f.TimestampTrain)
	b := make([]byte, CommonHeaderSize+crfHeaderSize+payloadLen)
	encodeCommon(&f.CommonHeader, b)
	n := CommonHeaderSize
	b[n] = byte(f.CRFType)
	b[n+1] = 0 // reserved
	binary.BigEndian.PutUint32(b[n+2:], f.BaseFrequency)
	binary.BigEndian.PutUint16(b[n+6:], uint16(payloadLen))
	pos := n + crfHeaderSize
	for _, ts := range f.TimestampTrain {
		binary.BigEndian.PutUint64(b[pos:], ts)
		pos += 8
	}
	return b, nil
}

// UnmarshalBinary decodes a CRF packet from b.
func (f *CRF) UnmarshalBinary(b []byte) error {
	if len(b) < CommonHeaderSize+crfHeaderSize {
		return wireerr.New(wireerr.Truncated, "need %d bytes for CRF header, got %d", CommonHeaderSize+crfHeaderSize, len(b))
	}
	ch, err := decodeCommon(b)
	if err != nil {
		return err
	}
	f.CommonHeader = ch
	n := CommonHeaderSize
	f.CRFType = CRFType(b[n])
	f.BaseFrequency = binary.BigEndian.Uint32(b[n+2:])
	dataLen := int(binary.BigEndian.Uint16(b[n+6:]))
	if dataLen%8 != 0 {
		return wireerr.New(wireerr.LengthMismatch, "CRF stream_data_length %d not a multiple of 8", dataLen)
	}
	payloadStart := n + crfHeaderSize
	if dataLen > len(b)-payloadStart {
		return wireerr.New(wireerr.LengthMismatch, "stream_data_length %d exceeds remaining %d bytes", dataLen, len(b)-payloadStart)
	}
	train := make([]uint64, 0, dataLen/8)
	for pos := payloadStart; pos < payloadStart+dataLen; pos += 8 {
		train = append(train, binary.BigEndian.Uint64(b[pos:]))
	}
	f.TimestampTrain = train
	return nil
}

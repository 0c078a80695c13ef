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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAAFRoundTrip(t *testing.T) {
	payload := make([]byte, 2*8*(24/8)) // 2 channels, 8 samples/frame, 24-bit
	f := &AAF{
		CommonHeader: CommonHeader{
			Subtype:     SubtypeAAF,
			StreamValid: true,
			Version:     Version,
			StreamID:    0x0011223344556677,
			SequenceNum: 5,
		},
		Format:            FormatInt24,
		NominalSampleRate: Rate48kHz,
		Channels:          2,
		BitDepth:          24,
		StreamDataLength:  uint16(len(payload)),
		Payload:           payload,
	}
	require.NoError(t, f.Validate(8, 1500))
	b, err := f.MarshalBinary()
	require.NoError(t, err)

	var got AAF
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, f.StreamID, got.StreamID)
	require.Equal(t, f.Channels, got.Channels)
	require.Equal(t, f.BitDepth, got.BitDepth)
	require.Equal(t, f.Payload, got.Payload)

	decoded, err := Decode(b)
	require.NoError(t, err)
	_, ok := decoded.(*AAF)
	require.True(t, ok)
}

func TestAAFRejectsStreamValidWithZeroStreamID(t *testing.T) {
	f := &AAF{CommonHeader: CommonHeader{Subtype: SubtypeAAF, StreamValid: true, Version: Version, StreamID: 0}}
	_, err := f.MarshalBinary() // marshal doesn't validate by itself
	require.NoError(t, err)
	require.Error(t, f.Validate(1, 1500))
}

func TestAAFRejectsBadBitDepth(t *testing.T) {
	f := &AAF{CommonHeader: CommonHeader{Subtype: SubtypeAAF, Version: Version, StreamID: 1}, BitDepth: 20, Channels: 1}
	require.Error(t, f.Validate(1, 1500))
}

func TestCVFRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	f := &CVF{
		CommonHeader: CommonHeader{Subtype: SubtypeCVF, Version: Version, StreamID: 9, StreamValid: true},
		Format:       VideoFormatH264,
		Width:        1920,
		Height:       1080,
		FrameRate:    30,
		Interlaced:   false,
		StreamDataLength: uint16(len(payload)),
		Payload:      payload,
	}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	var got CVF
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, f.Width, got.Width)
	require.Equal(t, f.Height, got.Height)
	require.Equal(t, f.Payload, got.Payload)
}

func TestCRFRoundTrip(t *testing.T) {
	f := &CRF{
		CommonHeader:  CommonHeader{Subtype: SubtypeCRF, Version: Version, StreamID: 3, StreamValid: true},
		CRFType:       CRFTypeAudioSample,
		BaseFrequency: 48000,
		TimestampTrain: []uint64{1, 2, 3, 4},
	}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	var got CRF
	require.NoError(t, got.UnmarshalBinary(b))
	require.Equal(t, f.TimestampTrain, got.TimestampTrain)
	require.Equal(t, f.BaseFrequency, got.BaseFrequency)
}

func TestDecodeUnknownSubtype(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{})
	require.Error(t, err)
}

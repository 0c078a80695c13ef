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

	wire "github.com/ptpavb/endpoint/wire/avtp"
)

func testConfig() StreamConfig {
	return StreamConfig{
		StreamID:        0x0011223344556677,
		Format:          wire.FormatInt16,
		SampleRate:      wire.Rate48kHz,
		Channels:        2,
		BitDepth:        16,
		SamplesPerFrame: 6,
		MTU:             1500,
	}
}

func TestTalkerListenerRoundTrip(t *testing.T) {
	cfg := testConfig()
	var ts uint32
	talker := NewTalkerStream(cfg, func() uint32 { ts += 1000; return ts })
	listener := NewListenerStream(cfg)

	samples := make([]byte, cfg.bytesPerFrame())
	for i := range samples {
		samples[i] = byte(i)
	}

	for i := 0; i < 3; i++ {
		f, err := talker.Frame(samples, true)
		require.NoError(t, err)
		b, err := f.MarshalBinary()
		require.NoError(t, err)

		got, lost, err := listener.Accept(b)
		require.NoError(t, err)
		require.Equal(t, 0, lost)
		require.Equal(t, samples, got.Payload)
	}
	received, lost := listener.Stats()
	require.EqualValues(t, 3, received)
	require.EqualValues(t, 0, lost)
}

func TestTalkerFrameRejectsWrongSampleSize(t *testing.T) {
	cfg := testConfig()
	talker := NewTalkerStream(cfg, func() uint32 { return 0 })
	_, err := talker.Frame(make([]byte, 3), true)
	require.Error(t, err)
}

func TestListenerDetectsLoss(t *testing.T) {
	cfg := testConfig()
	talker := NewTalkerStream(cfg, func() uint32 { return 0 })
	listener := NewListenerStream(cfg)
	samples := make([]byte, cfg.bytesPerFrame())

	f1, err := talker.Frame(samples, true)
	require.NoError(t, err)
	b1, err := f1.MarshalBinary()
	require.NoError(t, err)
	_, _, err = listener.Accept(b1)
	require.NoError(t, err)

	// skip one sequence number to simulate loss
	_, err = talker.Frame(samples, true)
	require.NoError(t, err)
	f3, err := talker.Frame(samples, true)
	require.NoError(t, err)
	b3, err := f3.MarshalBinary()
	require.NoError(t, err)

	_, lost, err := listener.Accept(b3)
	require.NoError(t, err)
	require.Equal(t, 1, lost)
}

func TestListenerRejectsStreamIDMismatch(t *testing.T) {
	cfg := testConfig()
	other := cfg
	other.StreamID = 0xdead
	talker := NewTalkerStream(other, func() uint32 { return 0 })
	listener := NewListenerStream(cfg)

	f, err := talker.Frame(make([]byte, cfg.bytesPerFrame()), true)
	require.NoError(t, err)
	b, err := f.MarshalBinary()
	require.NoError(t, err)

	_, _, err = listener.Accept(b)
	require.Error(t, err)
}

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

package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ptpavb/endpoint/gptp"
	adecc "github.com/ptpavb/endpoint/wire/adecc"
	ptp "github.com/ptpavb/endpoint/wire/ptp"
)

// fakeClock is an in-memory gptp.HardwareClock for tests, grounded on
// the same interface clock.PHCClock implements.
type fakeClock struct {
	now  time.Time
	freq float64
}

func (c *fakeClock) CaptureTimestamp() (ptp.Timestamp, error) { return ptp.NewTimestamp(c.now), nil }
func (c *fakeClock) ResolutionNS() uint32                      { return 1 }
func (c *fakeClock) AdjustPhase(offset ptp.TimeInterval) error {
	c.now = c.now.Add(time.Duration(offset.Nanoseconds()))
	return nil
}
func (c *fakeClock) AdjustFrequency(ppb float64) error { c.freq = ppb; return nil }
func (c *fakeClock) SetTime(ts ptp.Timestamp) error    { c.now = ts.Time(); return nil }

// fakeNetworkPort is an in-memory gptp.NetworkPort for tests; Sent
// frames are captured rather than transmitted.
type fakeNetworkPort struct {
	mac  [6]byte
	cb   func(b []byte, rxTimestamp time.Time)
	sent [][]byte
}

func (p *fakeNetworkPort) SendFrame(b []byte) error {
	p.sent = append(p.sent, append([]byte(nil), b...))
	return nil
}
func (p *fakeNetworkPort) OnReceive(cb func(b []byte, rxTimestamp time.Time)) { p.cb = cb }
func (p *fakeNetworkPort) MACAddress() [6]byte                               { return p.mac }

func testConfig() *Config {
	return &Config{
		Domain: 0,
		Ports:  []PortConfig{DefaultPortConfig("eth0")},
		Entity: EntityConfig{Name: "test-endpoint", StreamInputs: 1, StreamOutputs: 1, Milan: true},
	}
}

func TestNewWiresOnePortPerConfigEntry(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetworkPort{}
	clk := &fakeClock{now: time.Now()}
	b, err := New(cfg, clk, map[string]gptp.NetworkPort{"eth0": net}, gptp.EventSinkFunc(func(gptp.Event) {}))
	require.NoError(t, err)
	require.Len(t, b.Ports, 1)
	require.NotNil(t, b.Entity)
	require.NotNil(t, b.Discovery)
	require.NotNil(t, b.Milan)
	require.NotZero(t, b.EntityID)
}

func TestNewRequiresNetworkPortPerConfiguredPort(t *testing.T) {
	cfg := testConfig()
	clk := &fakeClock{now: time.Now()}
	_, err := New(cfg, clk, map[string]gptp.NetworkPort{}, gptp.EventSinkFunc(func(gptp.Event) {}))
	require.Error(t, err)
}

func TestRunRegistersReceiveCallbackAndTicks(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetworkPort{}
	clk := &fakeClock{now: time.Now()}
	b, err := New(cfg, clk, map[string]gptp.NetworkPort{"eth0": net}, gptp.EventSinkFunc(func(gptp.Event) {}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = b.Run(ctx)

	require.NotNil(t, net.cb)
	require.Equal(t, gptp.StateListening, b.Ports["eth0"].Port.State())
}

func TestDispatchFrameRoutesAnnounceToPortFSM(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetworkPort{}
	clk := &fakeClock{now: time.Now()}
	b, err := New(cfg, clk, map[string]gptp.NetworkPort{"eth0": net}, gptp.EventSinkFunc(func(gptp.Event) {}))
	require.NoError(t, err)
	pr := b.Ports["eth0"]
	pr.Port.HandleEvent(gptp.EventInitialize)

	foreign := ptp.ClockIdentity(0xAABBCCDDEEFF0011)
	a := &ptp.Announce{
		Header: ptp.Header{SdoIDAndMsgType: ptp.NewSdoIDAndMsgType(ptp.MessageAnnounce, 0), Version: ptp.Version, SourcePortIdentity: ptp.PortIdentity{ClockIdentity: foreign, PortNumber: 1}},
		GrandmasterIdentity:    foreign,
		GrandmasterPriority1:   100,
		GrandmasterPriority2:   100,
		GrandmasterClockQuality: ptp.ClockQuality{ClockClass: 6, ClockAccuracy: 0x20},
		StepsRemoved:           0,
	}
	encoded, err := a.MarshalBinary()
	require.NoError(t, err)

	b.dispatchFrame(pr, encoded, time.Now())
	require.Equal(t, 1, pr.Port.ForeignMasters().Len())
}

func TestDispatchFrameRoutesADPToDiscovery(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetworkPort{}
	clk := &fakeClock{now: time.Now()}
	b, err := New(cfg, clk, map[string]gptp.NetworkPort{"eth0": net}, gptp.EventSinkFunc(func(gptp.Event) {}))
	require.NoError(t, err)
	pr := b.Ports["eth0"]

	adp := &adecc.ADP{
		MessageType:   adecc.ADPEntityAvailable,
		ValidTime:     10,
		EntityID:      adecc.EntityID(0x1122334455667788),
		EntityModelID: 0,
	}
	encoded, err := adp.MarshalBinary()
	require.NoError(t, err)

	b.dispatchFrame(pr, encoded, time.Now())
	require.Equal(t, 1, b.Discovery.Len())
}

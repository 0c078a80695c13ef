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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ptpavb/endpoint/avdecc"
	"github.com/ptpavb/endpoint/gptp"
	"github.com/ptpavb/endpoint/milan"
	adecc "github.com/ptpavb/endpoint/wire/adecc"
	avtpwire "github.com/ptpavb/endpoint/wire/avtp"
	ptp "github.com/ptpavb/endpoint/wire/ptp"
)

// tickResolution is how often each port's FSM/engine Tick methods are
// invoked, independent of the port's own announce/sync intervals,
// §4.11.
const tickResolution = 10 * time.Millisecond

// PortRuntime bundles one port's FSM and the engines that serve it,
// §4.2/§4.4/§4.5. Not shared across ports, §5.
type PortRuntime struct {
	Name      string
	Port      *gptp.Port
	PathDelay *gptp.PathDelayEngine
	Sync      *gptp.SyncEngine
	Network   gptp.NetworkPort
}

// Bridge is the §4.11 dependency-injection container binding the
// gPTP, AVTP and ADECC/Milan providers for one endpoint process.
type Bridge struct {
	cfg           *Config
	Ports         map[string]*PortRuntime
	Discovery     *avdecc.DiscoveryTable
	Entity        *avdecc.EntityModel
	Talker        *avdecc.TalkerState
	Listener      *avdecc.ListenerState
	Milan         *milan.Handler
	Clock         gptp.HardwareClock
	EntityID      uint64
	AssociationID uint64
}

// New wires a Bridge from its configuration, a clock implementation
// and the per-port network transports supplied by the host runtime,
// §6/§4.11. networkPorts must have one entry per cfg.Ports[i].Name.
func New(cfg *Config, clock gptp.HardwareClock, networkPorts map[string]gptp.NetworkPort, sink gptp.EventSink) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entityID := randomEUI64()
	associationID := randomEUI64()
	identity := ptp.ClockIdentity(entityID)

	local := gptp.ClockDataset{
		GrandmasterIdentity:  identity,
		GrandmasterPriority1: cfg.Ports[0].Priority1,
		GrandmasterPriority2: cfg.Ports[0].Priority2,
		GrandmasterClockQuality: ptp.ClockQuality{
			ClockClass:    248,
			ClockAccuracy: 0xFE,
		},
	}

	b := &Bridge{
		cfg:           cfg,
		Ports:         make(map[string]*PortRuntime, len(cfg.Ports)),
		Clock:         clock,
		EntityID:      entityID,
		AssociationID: associationID,
	}

	for i, pc := range cfg.Ports {
		net, ok := networkPorts[pc.Name]
		if !ok {
			return nil, fmt.Errorf("bridge: no NetworkPort supplied for configured port %q", pc.Name)
		}
		portID := ptp.PortIdentity{ClockIdentity: identity, PortNumber: uint16(i + 1)}
		port := gptp.NewPort(portID, local, sink)
		port.AnnounceInterval = pc.AnnounceInterval
		port.SyncInterval = pc.SyncInterval
		// Seed AS-capability true so a freshly initializing port can
		// reach LISTENING, §4.2/§4.4. It is not updated afterwards from
		// the path-delay engine's AsCapable result.
		port.AsCapable = true

		b.Ports[pc.Name] = &PortRuntime{
			Name:      pc.Name,
			Port:      port,
			PathDelay: gptp.NewPathDelayEngine(),
			Sync:      gptp.NewSyncEngine(clock, sink),
			Network:   net,
		}
	}

	descriptor := &avdecc.EntityDescriptor{
		EntityID:      adecc.EntityID(entityID),
		EntityModelID: cfg.Entity.EntityModelID,
		EntityName:    cfg.Entity.Name,
		Configurations: []avdecc.ConfigurationDescriptor{
			buildConfiguration(cfg.Entity),
		},
	}
	b.Entity = avdecc.NewEntityModel(descriptor)
	b.Talker = avdecc.NewTalkerState()
	b.Listener = avdecc.NewListenerState()
	b.Discovery = avdecc.NewDiscoveryTable(
		func(e *avdecc.DiscoveredEntity) {
			log.WithField("entity_id", e.EntityID).Info("bridge: discovered ADECC entity")
		},
		func(id adecc.EntityID) {
			log.WithField("entity_id", id).Info("bridge: ADECC entity departed")
		},
	)
	if cfg.Entity.Milan {
		b.Milan = milan.NewHandler()
	}
	return b, nil
}

func buildConfiguration(ec EntityConfig) avdecc.ConfigurationDescriptor {
	cfg := avdecc.ConfigurationDescriptor{ObjectName: "default"}
	for i := 0; i < ec.StreamInputs; i++ {
		cfg.StreamInputs = append(cfg.StreamInputs, avdecc.StreamDescriptor{
			Index:      uint16(i),
			ObjectName: fmt.Sprintf("stream_input_%d", i),
		})
	}
	for i := 0; i < ec.StreamOutputs; i++ {
		cfg.StreamOutputs = append(cfg.StreamOutputs, avdecc.StreamDescriptor{
			Index:      uint16(i),
			ObjectName: fmt.Sprintf("stream_output_%d", i),
		})
	}
	return cfg
}

// randomEUI64 generates a non-persistent 64-bit identifier from a
// random UUID, used for the entity ID and association ID when no
// hardware-derived EUI-64 is available, §4.11's Open Question on
// entity identity provisioning.
func randomEUI64() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// Run drives every port's periodic Tick and the discovery table's
// aging, one goroutine per port under a shared errgroup so that any
// port's fatal error cancels the whole bridge, §4.11/§5.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, pr := range b.Ports {
		pr := pr
		g.Go(func() error { return b.runPort(ctx, pr) })
	}
	g.Go(func() error { return b.runDiscovery(ctx) })
	return g.Wait()
}

func (b *Bridge) runPort(ctx context.Context, pr *PortRuntime) error {
	pr.Network.OnReceive(func(frame []byte, rxTimestamp time.Time) {
		b.dispatchFrame(pr, frame, rxTimestamp)
	})

	ticker := time.NewTicker(tickResolution)
	defer ticker.Stop()
	pr.Port.HandleEvent(gptp.EventInitialize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			pr.Port.Tick(now)
			pr.Sync.Tick(now)
		}
	}
}

// dispatchFrame decodes one received frame and routes it to the state
// machine that owns its PDU type, §4.11. NetworkPort delivers a bare
// PDU with no EtherType alongside it, so the three codecs are tried in
// a fixed order rather than all at once: ADECC's subtype byte
// (0xFA-0xFC) never overlaps a valid PTP or AVTP leading byte and is
// tried first; PTP is tried next since its message-type nibble
// (0x0/0x2/0x3/0x8/0xA/0xB) can collide with an AVTP subtype
// (0x02-0x04), and a real deployment keeps the two on separate
// EtherTypes before frames ever reach this dispatch.
func (b *Bridge) dispatchFrame(pr *PortRuntime, frame []byte, rxTimestamp time.Time) {
	if pdu, err := adecc.Decode(frame); err == nil {
		b.dispatchADECC(pr, pdu)
		return
	}
	if msg, err := ptp.Decode(frame); err == nil {
		b.dispatchPTP(pr, msg, rxTimestamp)
		return
	}
	if _, err := avtpwire.Decode(frame); err == nil {
		// AVTP media frames are handed to the host's stream consumer
		// out of band; the bridge only needs gPTP/ADECC control traffic.
		return
	}
	log.WithField("port", pr.Name).Debug("bridge: dropped unrecognized frame")
}

func (b *Bridge) dispatchPTP(pr *PortRuntime, msg ptp.Message, rxTimestamp time.Time) {
	switch m := msg.(type) {
	case *ptp.Announce:
		pr.Port.ReceiveAnnounce(m, rxTimestamp)
	case *ptp.Sync:
		pr.Port.ReceiveSync(rxTimestamp)
	case *ptp.PDelayReq:
		pr.PathDelay.BeginRequest(m.SequenceID, rxTimestamp)
	case *ptp.PDelayResp:
		if err := pr.PathDelay.ReceiveResponse(m.SequenceID, rxTimestamp); err != nil {
			log.WithField("port", pr.Name).WithError(err).Debug("bridge: pdelay response out of sequence")
		}
	case *ptp.PDelayRespFollowUp:
		if _, err := pr.PathDelay.ReceiveResponseFollowUp(m.SequenceID, m.ResponseOriginTimestamp.Time(), rxTimestamp); err != nil {
			log.WithField("port", pr.Name).WithError(err).Debug("bridge: pdelay follow-up out of sequence")
		}
	}
}

func (b *Bridge) dispatchADECC(pr *PortRuntime, pdu any) {
	switch m := pdu.(type) {
	case *adecc.ADP:
		b.Discovery.ReceiveADP(m)
	case *adecc.AEM:
		if m.MessageType == adecc.AECPAEMCommand {
			resp := b.Entity.HandleCommand(m)
			if encoded, err := resp.MarshalBinary(); err == nil {
				_ = pr.Network.SendFrame(encoded)
			}
		}
	case *adecc.MVU:
		if b.Milan != nil {
			resp, err := b.Milan.HandleCommand(m)
			if err == nil {
				if encoded, err := resp.MarshalBinary(); err == nil {
					_ = pr.Network.SendFrame(encoded)
				}
			}
		}
	case *adecc.ACMP:
		b.dispatchACMP(pr, m)
	}
}

func (b *Bridge) dispatchACMP(pr *PortRuntime, m *adecc.ACMP) {
	var resp *adecc.ACMP
	switch m.MessageType {
	case adecc.ACMPConnectTXCommand:
		resp = b.Talker.HandleConnect(m)
	case adecc.ACMPDisconnectTXCommand:
		resp = b.Talker.HandleDisconnect(m)
	case adecc.ACMPConnectRXCommand:
		resp = b.Listener.HandleConnect(m)
	case adecc.ACMPDisconnectRXCommand:
		resp = b.Listener.HandleDisconnect(m)
	default:
		return
	}
	if encoded, err := resp.MarshalBinary(); err == nil {
		_ = pr.Network.SendFrame(encoded)
	}
}

func (b *Bridge) runDiscovery(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Discovery.Expire()
		}
	}
}

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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/ptpavb/endpoint/bridge"
	"github.com/ptpavb/endpoint/clock"
	"github.com/ptpavb/endpoint/gptp"
)

func main() {
	var (
		cfgPath   string
		iface     string
		verbose   bool
		useSystem bool
	)
	flag.StringVar(&cfgPath, "cfg", "", "Path to bridge YAML config")
	flag.StringVar(&iface, "iface", "eth0", "Default network interface name if the config declares none")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")
	flag.BoolVar(&useSystem, "system-clock", true, "Discipline CLOCK_REALTIME instead of requiring a PHC device")
	flag.Parse()

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(cfgPath, iface)
	if err != nil {
		log.Fatal(err)
	}

	var hwClock gptp.HardwareClock
	if useSystem {
		hwClock = clock.NewSystemClock()
	} else {
		log.Fatal("endpoint: PHC device selection is not wired up; pass -system-clock")
	}

	networkPorts := make(map[string]gptp.NetworkPort, len(cfg.Ports))
	for _, p := range cfg.Ports {
		networkPorts[p.Name] = newUnimplementedNetworkPort(p.Name)
	}

	sink := gptp.EventSinkFunc(func(e gptp.Event) {
		log.WithField("kind", e.Kind).Debug("endpoint: gptp event")
	})

	b, err := bridge.New(cfg, hwClock, networkPorts, sink)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("entity_id", fmt.Sprintf("%#x", b.EntityID)).Info("endpoint: starting bridge")
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

func loadConfig(path, iface string) (*bridge.Config, error) {
	if path == "" {
		return &bridge.Config{
			Ports:  []bridge.PortConfig{bridge.DefaultPortConfig(iface)},
			Entity: bridge.EntityConfig{Name: "endpoint", StreamInputs: 1, StreamOutputs: 1, Milan: true},
		}, nil
	}
	return bridge.ReadConfig(path)
}

// unimplementedNetworkPort is a placeholder NetworkPort used until a
// host-specific raw-frame transport is wired in; it satisfies §6's
// interface boundary without performing any I/O.
type unimplementedNetworkPort struct {
	name string
	mac  [6]byte
}

func newUnimplementedNetworkPort(name string) *unimplementedNetworkPort {
	return &unimplementedNetworkPort{name: name}
}

func (p *unimplementedNetworkPort) SendFrame(b []byte) error {
	return fmt.Errorf("endpoint: no raw-frame transport wired for interface %q", p.name)
}

func (p *unimplementedNetworkPort) OnReceive(cb func(b []byte, rxTimestamp time.Time)) {}

func (p *unimplementedNetworkPort) MACAddress() [6]byte { return p.mac }

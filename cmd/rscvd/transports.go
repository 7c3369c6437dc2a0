package main

import (
	"context"
	"fmt"

	"github.com/rustsynccv/rustsynccv-go/internal/config"
	"github.com/rustsynccv/rustsynccv-go/internal/landiscover"
	"github.com/rustsynccv/rustsynccv-go/internal/lanmesh"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
	"github.com/rustsynccv/rustsynccv-go/internal/servertransport"
)

// runtimeTransport adapts a func(ctx) error into runtime.Transport; a
// non-cancellation error is reported on the bus rather than propagated,
// since Supervisor's task set has no return-value channel of its own —
// errors surface as Error events per §7's propagation policy.
type runtimeTransport struct {
	bus *runtime.Bus
	run func(ctx context.Context) error
}

func (t runtimeTransport) Run(ctx context.Context) {
	if err := t.run(ctx); err != nil && ctx.Err() == nil {
		t.bus.PublishError(fmt.Errorf("transport: %w", err))
	}
}

// buildTransports selects and constructs the transport(s) for cfg.ConnectionMode.
func buildTransports(cfgLike runtime.ConfigLike, fanout *runtime.Fanout, applier *runtime.Applier, bus *runtime.Bus, deviceID string) ([]runtime.Transport, error) {
	cfg, ok := cfgLike.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("buildTransports: unexpected config type %T", cfgLike)
	}

	switch cfg.ConnectionMode {
	case config.ModeServer:
		tr := servertransport.New(servertransport.Config{
			ServerURL:         cfg.ServerURL,
			Token:             cfg.Token,
			Username:          cfg.Username,
			Password:          cfg.Password,
			TrustInsecureCert: cfg.TrustInsecureCert,
		}, servertransport.Deps{Fanout: fanout, Applier: applier, Bus: bus})
		return []runtime.Transport{runtimeTransport{bus: bus, run: func(ctx context.Context) error {
			tr.Run(ctx)
			return nil
		}}}, nil

	case config.ModeLAN:
		deviceName := cfg.EffectiveDeviceName(deviceID)

		table := landiscover.NewTable()
		discovery := landiscover.New(table, bus, deviceID, deviceName, lanmesh.DefaultPort)

		mesh, err := lanmesh.New(table, lanmesh.Deps{Fanout: fanout, Applier: applier, Bus: bus}, deviceID, deviceName, cfg.LANPreSharedKey)
		if err != nil {
			return nil, fmt.Errorf("lan mesh: %w", err)
		}

		// Bind both sockets synchronously here, before any task is spawned,
		// so a bind/listen failure fails Start with no partial task set left
		// running (§4.5/§7) instead of surfacing later as an async Error
		// event from inside Run.
		if err := discovery.Bind(); err != nil {
			return nil, fmt.Errorf("lan discovery: %w", err)
		}
		if err := mesh.Bind(); err != nil {
			return nil, fmt.Errorf("lan mesh: %w", err)
		}

		return []runtime.Transport{
			runtimeTransport{bus: bus, run: discovery.Run},
			runtimeTransport{bus: bus, run: mesh.Run},
		}, nil

	default:
		return nil, fmt.Errorf("unknown connection_mode %q", cfg.ConnectionMode)
	}
}

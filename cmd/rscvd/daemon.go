package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
	"github.com/rustsynccv/rustsynccv-go/internal/config"
	"github.com/rustsynccv/rustsynccv-go/internal/ipc"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

// statusCache holds the last connection state and LAN peer snapshot seen on
// the event bus, so the control server can answer "status" without blocking
// on the supervisor's own command queue.
type statusCache struct {
	mu           sync.Mutex
	connection   runtime.ConnState
	lanPeersJSON string
}

func (c *statusCache) snapshot() (runtime.ConnState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection, c.lanPeersJSON
}

func bindAndPrep(cmd *cobra.Command, v *viper.Viper) error {
	return config.BindViper(cmd, v)
}

// configFromViper builds a config.Config by hand from viper-resolved flags,
// mirroring the teacher's manual-field-extraction style in runServer rather
// than a blanket struct Unmarshal, since the CLI's dashed flag names don't
// line up 1:1 with the Config struct's snake_case mapstructure tags.
func configFromViper(v *viper.Viper) (config.Config, error) {
	cfg := config.Default()
	cfg.ServerURL = v.GetString("server-url")
	cfg.Token = v.GetString("token")
	cfg.Username = v.GetString("username")
	cfg.Password = v.GetString("password")
	if kb := v.GetInt("max-image-kb"); kb > 0 {
		cfg.MaxImageKB = kb
	}
	if mode := v.GetString("connection-mode"); mode != "" {
		cfg.ConnectionMode = config.Mode(mode)
	}
	cfg.LANDeviceName = v.GetString("lan-device-name")
	cfg.TrustInsecureCert = v.GetBool("trust-insecure-cert")
	cfg.LANPreSharedKey = v.GetString("lan-psk")

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	cfg, err := configFromViper(v)
	if err != nil {
		return err
	}

	backend := clip.New()
	defer backend.Close()

	bus := runtime.NewBus()
	status := &statusCache{connection: runtime.StateIdle}
	go tapBusLogs(bus, status)

	var sup *runtime.Supervisor
	sup = runtime.NewSupervisor(backend, bus, func(cfg runtime.ConfigLike, fanout *runtime.Fanout, applier *runtime.Applier, bus *runtime.Bus) ([]runtime.Transport, error) {
		return buildTransports(cfg, fanout, applier, bus, sup.DeviceID())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	if err := sup.Start(&cfg); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	ln, err := ipc.Listen()
	if err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		slog.Info("control socket listening", "path", ipc.SocketPath())
		srv := newControlServer(sup, bus, status)
		go srv.serve(ln)
		defer ln.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	slog.Info("rscvd shutting down")
	_ = sup.Shutdown()
	return nil
}

// tapBusLogs drains the event bus for the lifetime of the process so
// RuntimeEvents are never dropped for lack of a consumer; the daemon itself
// has no UI, so this is the "exactly one UI/CLI task drains it" consumer
// §4.7 requires. Log events were already written to slog by PublishLog;
// this loop only has additional work for status/connection/error and LAN
// peer events. Clipboard sent/received events are drained without logging.
func tapBusLogs(bus *runtime.Bus, status *statusCache) {
	for ev := range bus.Events() {
		switch ev.Kind {
		case runtime.EventStatus:
			slog.Info("status", "status", ev.Status)
		case runtime.EventConnection:
			slog.Info("connection", "state", ev.Connection)
			status.mu.Lock()
			status.connection = ev.Connection
			status.mu.Unlock()
		case runtime.EventError:
			slog.Error("runtime error", "err", ev.Err)
		case runtime.EventLanPeersChanged:
			slog.Debug("lan peers changed", "snapshot", ev.LanPeersJSON)
			status.mu.Lock()
			status.lanPeersJSON = ev.LanPeersJSON
			status.mu.Unlock()
		}
	}
}

package main

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"

	"github.com/rustsynccv/rustsynccv-go/internal/config"
	"github.com/rustsynccv/rustsynccv-go/internal/ctlproto"
	"github.com/rustsynccv/rustsynccv-go/internal/landiscover"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

// controlServer implements the newline-delimited JSON RPC surface (§4.8)
// over the local control socket: one Request per line, one Response per line.
type controlServer struct {
	sup    *runtime.Supervisor
	bus    *runtime.Bus
	status *statusCache
}

func newControlServer(sup *runtime.Supervisor, bus *runtime.Bus, status *statusCache) *controlServer {
	return &controlServer{sup: sup, bus: bus, status: status}
}

func (s *controlServer) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *controlServer) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req ctlproto.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(ctlproto.Response{OK: false, Error: "bad request: " + err.Error()})
			continue
		}
		_ = enc.Encode(s.dispatch(req))
	}
}

func (s *controlServer) dispatch(req ctlproto.Request) ctlproto.Response {
	switch req.Cmd {
	case "start":
		cfg, err := configFromView(req.Config)
		if err != nil {
			return errResponse(err)
		}
		return okOrErr(s.sup.Start(&cfg))

	case "pause":
		return okOrErr(s.sup.Pause())

	case "resume":
		return okOrErr(s.sup.Resume())

	case "reload":
		cfg, err := configFromView(req.Config)
		if err != nil {
			return errResponse(err)
		}
		return okOrErr(s.sup.Reload(&cfg))

	case "shutdown":
		return okOrErr(s.sup.Shutdown())

	case "status":
		conn, peersJSON := s.status.snapshot()
		return ctlproto.Response{OK: true, Status: &ctlproto.Status{
			DeviceID:   s.sup.DeviceID(),
			Connection: string(conn),
			Peers:      decodePeerViews(peersJSON),
		}}

	default:
		return ctlproto.Response{OK: false, Error: "unknown command: " + req.Cmd}
	}
}

// decodePeerViews turns a landiscover.Table snapshot (as published on the
// event bus) into the ctlproto wire shape. An empty or unparsable snapshot
// yields no peers rather than an error, since a freshly-started LAN session
// or server-mode run both have nothing to show here.
func decodePeerViews(snapshotJSON string) []ctlproto.PeerView {
	if snapshotJSON == "" {
		return nil
	}
	var peers []landiscover.Peer
	if err := json.Unmarshal([]byte(snapshotJSON), &peers); err != nil {
		return nil
	}
	views := make([]ctlproto.PeerView, 0, len(peers))
	for _, p := range peers {
		views = append(views, ctlproto.PeerView{
			DeviceID:   p.DeviceID,
			DeviceName: p.DeviceName,
			Addr:       p.Addr,
			TCPPort:    p.TCPPort,
			LastSeen:   p.LastSeen.Format("15:04:05"),
		})
	}
	return views
}

func configFromView(v *ctlproto.ConfigView) (config.Config, error) {
	cfg := config.Default()
	if v == nil {
		return cfg, cfg.Validate()
	}
	cfg.ServerURL = v.ServerURL
	cfg.Token = v.Token
	cfg.Username = v.Username
	cfg.Password = v.Password
	if v.MaxImageKB > 0 {
		cfg.MaxImageKB = v.MaxImageKB
	}
	if v.ConnectionMode != "" {
		cfg.ConnectionMode = config.Mode(v.ConnectionMode)
	}
	cfg.LANDeviceName = v.LANDeviceName
	cfg.TrustInsecureCert = v.TrustInsecureCert
	cfg.LANPreSharedKey = v.LANPreSharedKey

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func okOrErr(err error) ctlproto.Response {
	if err != nil {
		return errResponse(err)
	}
	return ctlproto.Response{OK: true}
}

func errResponse(err error) ctlproto.Response {
	slog.Warn("control command failed", "err", err)
	return ctlproto.Response{OK: false, Error: err.Error()}
}

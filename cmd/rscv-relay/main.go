// rscv-relay: a reference implementation of the server-mode wire contract
// (§4.4/§4.9 of SPEC_FULL.md), for local development and the S1/S2 end-to-end
// scenarios. Not intended as a production relay — credentials are a static
// set read from flags/config, not a real user store.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"nhooyr.io/websocket"

	"github.com/rustsynccv/rustsynccv-go/internal/logging"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

var Version = "dev"

func main() {
	var addr, token, username, password, logFormat, logLevel string

	root := &cobra.Command{
		Use:   "rscv-relay",
		Short: "Reference RustSyncCV relay server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			logging.Setup(logging.ParseFormat(logFormat), logging.ParseLevel(logLevel))
			return run(addr, token, username, password)
		},
	}

	f := root.Flags()
	f.StringVar(&addr, "addr", "0.0.0.0:8743", "TCP listen address")
	f.StringVar(&token, "token", "", "accepted auth token (empty: token auth disabled)")
	f.StringVar(&username, "username", "", "accepted auth username (empty: username/password auth disabled)")
	f.StringVar(&password, "password", "", "accepted auth password")
	f.StringVar(&logFormat, "log-format", "auto", "log format: auto|text|json")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(addr, token, username, password string) error {
	h := newHub()
	authOK := func(req rscvmsg.AuthRequest) (bool, string) {
		if token != "" {
			if req.Token == token {
				return true, ""
			}
			return false, "bad token"
		}
		if username != "" {
			if req.Username == username && req.Password == password {
				return true, ""
			}
			return false, "bad creds"
		}
		return true, ""
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handleConn(w, r, h, authOK)
	})

	slog.Info("rscv-relay listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func handleConn(w http.ResponseWriter, r *http.Request, h *hub, authOK func(rscvmsg.AuthRequest) (bool, string)) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	_, raw, err := conn.Read(ctx)
	if err != nil {
		slog.Warn("auth read failed", "err", err)
		return
	}
	var req rscvmsg.AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Warn("auth decode failed", "err", err)
		return
	}

	ok, message := authOK(req)
	reply := struct {
		Type    string            `json:"type"`
		Payload rscvmsg.AuthReply `json:"payload"`
	}{
		Type:    "auth_reply",
		Payload: rscvmsg.AuthReply{Success: ok, Message: message},
	}
	replyBody, _ := json.Marshal(reply)
	if err := conn.Write(ctx, websocket.MessageText, replyBody); err != nil {
		return
	}
	if !ok {
		_ = conn.Close(websocket.StatusPolicyViolation, "auth failed")
		return
	}

	id := uuid.NewString()
	h.register(id, conn)
	defer h.unregister(id)
	slog.Info("client connected", "id", id, "remote", r.RemoteAddr)

	for {
		typ, raw, err := conn.Read(ctx)
		if err != nil {
			slog.Info("client disconnected", "id", id, "err", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		h.broadcast(ctx, id, raw)
	}
}

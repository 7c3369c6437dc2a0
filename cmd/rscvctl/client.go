package main

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/rustsynccv/rustsynccv-go/internal/ctlproto"
	"github.com/rustsynccv/rustsynccv-go/internal/ipc"
)

// call dials the local control socket, sends one request, and returns its response.
func call(req ctlproto.Request) (ctlproto.Response, error) {
	conn, err := ipc.Dial()
	if err != nil {
		return ctlproto.Response{}, fmt.Errorf("rscvd daemon not reachable at %s: %w", ipc.SocketPath(), err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return ctlproto.Response{}, fmt.Errorf("send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return ctlproto.Response{}, fmt.Errorf("read response: %w", err)
		}
		return ctlproto.Response{}, fmt.Errorf("no response from daemon")
	}

	var resp ctlproto.Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return ctlproto.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func simpleCommand(cmd string) error {
	resp, err := call(ctlproto.Request{Cmd: cmd})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: %s", cmd, resp.Error)
	}
	fmt.Printf("%s: ok\n", cmd)
	return nil
}

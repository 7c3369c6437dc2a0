package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustsynccv/rustsynccv-go/internal/ctlproto"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon connection state and LAN peers",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return runStatus(jsonOut) },
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output raw JSON")
	return cmd
}

func runStatus(jsonOut bool) error {
	resp, err := call(ctlproto.Request{Cmd: "status"})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("status: %s", resp.Error)
	}

	if jsonOut {
		enc, _ := json.MarshalIndent(resp.Status, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	printStatus(resp.Status)
	return nil
}

func printStatus(st *ctlproto.Status) {
	if st == nil {
		fmt.Println("No status available.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Device ID:\t%s\n", st.DeviceID)
	fmt.Fprintf(w, "Connection:\t%s\n", st.Connection)
	_ = w.Flush()

	if len(st.Peers) == 0 {
		fmt.Println("No LAN peers.")
		return
	}

	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "DEVICE ID\tNAME\tADDR\tPORT\tLAST SEEN\n")
	_, _ = fmt.Fprintf(tw, "---------\t----\t----\t----\t---------\n")
	for _, p := range st.Peers {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.DeviceID, p.DeviceName, p.Addr, p.TCPPort, p.LastSeen)
	}
	_ = tw.Flush()
}

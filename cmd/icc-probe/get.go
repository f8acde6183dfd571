package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/icc"
)

func getCmd() *cobra.Command {
	var subcommand uint32
	var dataHex string
	var access string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Connect, send one GET command, print the reply, and disconnect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, access, subcommand, dataHex, false)
		},
	}

	cmd.Flags().Uint32Var(&subcommand, "subcommand", 0, "GET subcommand code")
	cmd.Flags().StringVar(&dataHex, "data", "", "hex-encoded command payload")
	cmd.Flags().StringVar(&access, "access", "view-only", "requested access level")
	return cmd
}

func actionCmd() *cobra.Command {
	var subcommand uint32
	var dataHex string
	var access string

	cmd := &cobra.Command{
		Use:   "action",
		Short: "Connect, send one ACTN command, print the reply, and disconnect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, access, subcommand, dataHex, true)
		},
	}

	cmd.Flags().Uint32Var(&subcommand, "subcommand", 0, "ACTN subcommand code")
	cmd.Flags().StringVar(&dataHex, "data", "", "hex-encoded command payload")
	cmd.Flags().StringVar(&access, "access", "master", "requested access level")
	return cmd
}

func runOneShot(cmd *cobra.Command, access string, subcommand uint32, dataHex string, isAction bool) error {
	level, err := parseAccessLevel(access)
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return fmt.Errorf("decode --data: %w", err)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	registerEventPrinters(client)

	if !client.Connect(cmd.Context(), level) {
		return fmt.Errorf("connect: login did not complete")
	}
	defer client.Disconnect()

	done := make(chan struct{})
	completion := icc.Completion{
		OnAck: func(_ any, seq uint32) { printf("ACK seq=%d", seq) },
		OnNak: func(_ any, seq, statusCode uint32) {
			printf("NAK seq=%d statusCode=%d", seq, statusCode)
			close(done)
		},
		OnResponse: func(_ any, seq, subcmd, statusCode uint32, respData []byte) {
			printf("RSP seq=%d subcommand=0x%x statusCode=%d data=%s", seq, subcmd, statusCode, hex.EncodeToString(respData))
			close(done)
		},
	}

	var ok bool
	var seq uint32
	if isAction {
		ok, seq = client.SendActionCommand(subcommand, data, completion)
	} else {
		ok, seq = client.SendGetCommand(subcommand, data, completion)
	}
	if !ok {
		return fmt.Errorf("send rejected (not connected, or insufficient access for ACTN)")
	}
	printf("sent seq=%d", seq)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		client.CancelCommand(seq)
		return fmt.Errorf("timed out waiting for a terminal reply")
	}

	return nil
}

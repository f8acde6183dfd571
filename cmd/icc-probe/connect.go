package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/icc"
	"github.com/arloliu/icc/wire"
)

func connectCmd() *cobra.Command {
	var access string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect, log in, and stay attached printing events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseAccessLevel(access)
			if err != nil {
				return err
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
			printf("connected, granted access = %s", client.GrantedAccess())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			client.Disconnect()
			return nil
		},
	}

	cmd.Flags().StringVar(&access, "access", "view-only", "requested access level: view-only, master, local-ui, engineering")
	return cmd
}

func parseAccessLevel(s string) (wire.AccessLevel, error) {
	switch s {
	case "view-only":
		return wire.ViewOnly, nil
	case "master":
		return wire.Master, nil
	case "local-ui":
		return wire.LocalUI, nil
	case "engineering":
		return wire.Engineering, nil
	default:
		return wire.Invalid, fmt.Errorf("unknown access level %q", s)
	}
}

func newClient() (*icc.Client, error) {
	opts := []icc.ClientOption{
		icc.WithPort(serverPort),
		icc.WithSendTimeout(sendTimeout),
		icc.WithReceiveTimeout(recvTimeout),
		icc.WithLogger(newProbeLogger()),
	}
	return icc.New(serverAddress, opts...)
}

func registerEventPrinters(client *icc.Client) {
	client.OnConnect(func() { printf("[event] Connect") })
	client.OnDisconnect(func() { printf("[event] Disconnect") })
	client.OnDisconnectWarning(func() { printf("[event] DisconnectWarning") })
	client.OnDisconnectError(func() { printf("[event] DisconnectError") })
	client.OnAsyncError(func(description string) { printf("[async-error] %s", description) })
}

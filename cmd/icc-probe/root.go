package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/icc/logger"
)

var (
	serverAddress string
	serverPort    int
	sendTimeout   time.Duration
	recvTimeout   time.Duration
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "icc-probe",
	Short: "Exercise an instrument-control protocol client from the command line",
	Long:  `icc-probe connects to an instrument server, logs in, and lets you issue one GET/ACTN command per invocation via flags, printing every event and async error as it happens.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddress, "server", "127.0.0.1", "instrument server IPv4 address")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 8080, "instrument server TCP port")
	rootCmd.PersistentFlags().DurationVar(&sendTimeout, "send-timeout", 0, "write deadline applied to outbound frames (0 disables)")
	rootCmd.PersistentFlags().DurationVar(&recvTimeout, "recv-timeout", 0, "read deadline applied to inbound frames (0 disables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(connectCmd(), getCmd(), actionCmd())
}

func newProbeLogger() logger.Logger {
	level := logger.InfoLevel
	if verbose {
		level = logger.DebugLevel
	}
	return logger.NewSlog(level, false)
}

func printf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Command icc-probe is a small manual-test harness for package icc: it drives one client
// connection from the command line and prints every event and async error to stdout.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

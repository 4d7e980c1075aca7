// file: cmd/bsonrpcecho/root.go
package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bsonrpcecho",
	Short: "Manual smoke-test harness for the bsonrpc endpoint.",
	Long: "bsonrpcecho runs the scenario methods (swapper, complicated, report_back, " +
		"yaman, server_disconnect, panicker) over a TCP connection, either as a " +
		"listening server or as a one-shot client driving a fixed set of calls.",
}

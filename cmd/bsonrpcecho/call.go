// file: cmd/bsonrpcecho/call.go
package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkoosis/bsonrpc/internal/codec"
	"github.com/dkoosis/bsonrpc/internal/endpoint"
	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/internal/tasking"
)

var callAddress string

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Dial a running bsonrpcecho server and drive a fixed set of calls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(callAddress)
	},
}

func init() {
	callCmd.Flags().StringVar(&callAddress, "address", "127.0.0.1:9191", "TCP address to dial.")
	rootCmd.AddCommand(callCmd)
}

func runCall(address string) error {
	log := logging.GetLogger("bsonrpcecho.call")

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}

	h := &history{}
	ep, err := endpoint.New(conn, endpoint.Options{
		Framing:               framing.RFC7464{},
		Codec:                 codec.NewJSON(framing.RFC7464{}),
		Registry:              buildDemoRegistry(h),
		ThreadingModel:        tasking.Threads,
		DefaultRequestTimeout: 10 * time.Second,
		Logger:                log,
	})
	if err != nil {
		conn.Close()
		return err
	}
	defer ep.Close()

	ctx := context.Background()

	result, err := ep.InvokeRequest(ctx, "swapper", []any{"Hello There!"}, nil)
	if err != nil {
		return fmt.Errorf("swapper: %w", err)
	}
	fmt.Printf("swapper(%q) = %v\n", "Hello There!", result)

	result, err = ep.InvokeRequest(ctx, "complicated", []any{"First", "Second", "Third"}, nil)
	if err != nil {
		return fmt.Errorf("complicated: %w", err)
	}
	fmt.Printf("complicated(...) = %v\n", result)

	batch := []endpoint.Call{
		{Method: "yaman", Args: []any{"note"}, Notification: true},
		{Method: "swapper", Args: []any{"firstie"}},
		{Method: "complicated", Args: []any{"q!", "w!", "e!"}},
		{Method: "yaman", Args: []any{"again"}, Notification: true},
		{Method: "swapper", Args: []any{"thirstie"}},
	}
	results, err := ep.BatchCall(ctx, batch)
	if err != nil {
		return fmt.Errorf("batch call: %w", err)
	}
	fmt.Printf("batch results = %v\n", results)

	fmt.Print(formatHistory(h.snapshot()))
	return nil
}

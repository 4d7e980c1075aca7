// file: cmd/bsonrpcecho/serve.go
package main

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dkoosis/bsonrpc/internal/codec"
	"github.com/dkoosis/bsonrpc/internal/endpoint"
	"github.com/dkoosis/bsonrpc/internal/framing"
	"github.com/dkoosis/bsonrpc/internal/logging"
	"github.com/dkoosis/bsonrpc/internal/tasking"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen on a TCP address and serve the demo methods to every connection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(serveAddress)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "127.0.0.1:9191", "TCP address to listen on.")
	rootCmd.AddCommand(serveCmd)
}

func runServe(address string) error {
	log := logging.GetLogger("bsonrpcecho.serve")

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}
	defer ln.Close()
	log.Info("Listening for bsonrpc connections.", "address", address)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("Accept failed.", "error", err)
			return err
		}
		go serveConn(conn, log)
	}
}

func serveConn(conn net.Conn, log logging.Logger) {
	connID := uuid.NewString()
	connLog := log.WithField("remote_addr", conn.RemoteAddr().String())
	connLog.Info("Connection accepted.", "connection_id", connID)

	h := &history{}
	ep, err := endpoint.New(conn, endpoint.Options{
		Framing:        framing.RFC7464{},
		Codec:          codec.NewJSON(framing.RFC7464{}),
		Registry:       buildDemoRegistry(h),
		ThreadingModel: tasking.Threads,
		ConnectionID:   connID,
		Logger:         connLog,
	})
	if err != nil {
		connLog.Error("Failed to build endpoint.", "error", err)
		conn.Close()
		return
	}
	defer ep.Close()

	if err := ep.Join(context.Background()); err != nil {
		connLog.Warn("Endpoint join ended with error.", "error", err)
	}
	connLog.Info("Connection closed.", "history", formatHistory(h.snapshot()))
}

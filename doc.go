/*
Package botlink connects a robot to a coordination server and runs the block programs it is sent.

A robot authenticates over HTTP, opens a live connection (JSON over a websocket, or framed
binary messages over a TCP socket), announces its state, downloads programs on request and
interprets them against its hardware. When the connection drops it reconnects with an
exponential backoff capped at one minute.

# Architecture

  - internal/runtime: the block program interpreter.
  - pkg/session: the connection state machine (authenticate, download, start, stop, reconnect).
  - pkg/protocol: message model and both wire encodings.
  - pkg/adapters: transports (websocket, socket, memory), program stores, the MQTT hardware
    bridge and the local HTTP status surface.
  - pkg/observability: Prometheus collectors.

# Usage

	package main

	import (
		"context"
		"log"
		"net/http"

		"github.com/aretw0/botlink"
	)

	func main() {
		robot := botlink.New([]string{"coordinator.local"},
			botlink.WithName("nao"),
			botlink.WithPassword("secret"),
		)

		go http.ListenAndServe(":8080", robot.Handler())

		if err := robot.Run(context.Background()); err != nil {
			log.Fatal(err)
		}
	}
*/
package botlink

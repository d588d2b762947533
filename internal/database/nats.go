package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// ConnectNATS opens a NATS connection for cross-node event fan-out.
// An empty URL is not an error: single-node deployments run without NATS.
func ConnectNATS(url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url, nats.Name("lumen-chat"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}

// Package natsx wires up NATS connections from the environment.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// NewClient connects to the NATS server named by the NATS_URL environment
// variable. Default options name the client "foundry" and enable
// compression; any explicitly passed options replace the defaults.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	return Connect(os.Getenv("NATS_URL"), opts...)
}

// Connect dials the given NATS URL with the same defaults as NewClient.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("foundry"), nats.Compression(true))
	}
	return nats.Connect(url, opts...)
}

package publisher

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials a NATS server and returns a JetStream context, grounded on
// the pubsub package's nats.Connect + conn.JetStream() sequence.
func Connect(url string) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(10*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open jetstream context: %w", err)
	}
	return conn, js, nil
}

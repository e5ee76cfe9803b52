package natsgath

import (
	"context"

	"github.com/nats-io/nats.go"
)

type publisher struct {
	nc    *nats.Conn
	inbox string
}

func (p *publisher) Publish(_ context.Context, msg []byte) error {
	return p.nc.Publish(p.inbox, msg)
}

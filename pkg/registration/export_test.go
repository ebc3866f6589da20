package registration

import (
	"context"
	"net"
)

// SetDialerForTest overrides the dial function, letting external tests
// redirect the fixed registration port to an ephemeral test listener.
func (c *Client) SetDialerForTest(dial func(ctx context.Context, network, addr string) (net.Conn, error)) {
	c.dial = dial
}

package dgramclient

import (
	"context"

	"github.com/corvidlabs/dgramrpc/internal/correlation"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// ChannelProxy is a thin view over a Client that tags requests sent through
// Send and SendWithHandle with a fixed channel id, so callers working within
// one channel don't have to repeat it on every call. SendNoResponse is not
// tagged.
type ChannelProxy struct {
	client    *Client
	channelID string
}

// Channel returns a ChannelProxy bound to channelID.
func (c *Client) Channel(channelID string) *ChannelProxy {
	return &ChannelProxy{client: c, channelID: channelID}
}

// ChannelID returns the channel tag this proxy applies to every request.
func (p *ChannelProxy) ChannelID() string { return p.channelID }

func (p *ChannelProxy) withChannel(opts []RequestOptions) []RequestOptions {
	merged := mergeOptions(p.client.config.DefaultTimeout, opts...)
	merged.ChannelID = p.channelID
	return []RequestOptions{merged}
}

// Send is Client.Send with this proxy's channel id applied.
func (p *ChannelProxy) Send(ctx context.Context, name string, args map[string]interface{}, opts ...RequestOptions) (*protocol.Response, error) {
	return p.client.Send(ctx, name, args, p.withChannel(opts)...)
}

// SendNoResponse is Client.SendNoResponse: the request goes out with an
// empty channel id, not this proxy's.
func (p *ChannelProxy) SendNoResponse(ctx context.Context, name string, args map[string]interface{}) error {
	return p.client.SendNoResponse(ctx, name, args)
}

// SendWithHandle is Client.SendWithHandle with this proxy's channel id
// applied.
func (p *ChannelProxy) SendWithHandle(ctx context.Context, name string, args map[string]interface{}, opts ...RequestOptions) (*correlation.Handle, <-chan correlation.Signal) {
	return p.client.SendWithHandle(ctx, name, args, p.withChannel(opts)...)
}

package dgramclient

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/corvidlabs/dgramrpc/internal/correlation"
	"github.com/corvidlabs/dgramrpc/internal/timeoutmgr"
	"github.com/corvidlabs/dgramrpc/pkg/protocol"
)

// SendWithHandle sends name/args asynchronously and returns a correlation
// Handle plus the single-use signal channel its owner should select on.
// The request phase (getting the datagram out) and the response phase
// (waiting for the reply) are tracked as two independent timeouts: a slow
// server reply never blames the send, and vice versa.
func (c *Client) SendWithHandle(ctx context.Context, name string, args map[string]interface{}, opts ...RequestOptions) (*correlation.Handle, <-chan correlation.Signal) {
	o := mergeOptions(c.config.DefaultTimeout, opts...)
	handle, sigCh := c.correlation.Register(name, o.ChannelID)

	requestTimeout := c.config.DatagramTimeout
	responseTimeout := o.Timeout
	base := fmt.Sprintf("client-%p-%s", handle, name)

	c.timeouts.RegisterBilateral(base, requestTimeout, responseTimeout,
		func() { c.correlation.Timeout(handle, fmt.Errorf("request '%s' was not sent within %s", name, requestTimeout)) },
		func() { c.correlation.Timeout(handle, fmt.Errorf("request '%s' received no response within %s", name, responseTimeout)) },
	)

	go func() {
		resp, err := c.Send(ctx, name, args, opts...)
		c.timeouts.CancelBilateral(base)
		if err != nil {
			c.correlation.Fail(handle, err)
			return
		}
		c.correlation.Complete(handle, resp)
	}()

	return handle, sigCh
}

// Cancel cancels a pending handle obtained from SendWithHandle. It does
// not interrupt a request already in flight on the wire; it only stops
// the caller's own wait and frees the correlation entry.
func (c *Client) Cancel(handle *correlation.Handle) bool {
	return c.correlation.CancelOne(handle)
}

// CancelAll cancels every request currently pending via SendWithHandle,
// returning the number cancelled.
func (c *Client) CancelAll() int {
	return c.correlation.CancelAll()
}

// PendingCount returns the number of requests sent via SendWithHandle that
// have neither completed, failed, timed out, nor been cancelled.
func (c *Client) PendingCount() int {
	return c.correlation.PendingCount()
}

// Statistics reports cumulative correlation and timeout-manager activity
// for this client.
type Statistics struct {
	Correlation correlation.Statistics `json:"correlation"`
	Timeouts    timeoutmgr.Statistics  `json:"timeouts"`
}

// Statistics returns a snapshot combining correlation and timeout
// bookkeeping.
func (c *Client) Statistics() Statistics {
	return Statistics{
		Correlation: c.correlation.Statistics(),
		Timeouts:    c.timeouts.Statistics(),
	}
}

// ParallelRequest is one call to execute as part of ExecuteParallel.
type ParallelRequest struct {
	ID      string
	Request string
	Args    map[string]interface{}
	Options RequestOptions
}

// ParallelResult is ParallelRequest's outcome.
type ParallelResult struct {
	RequestID string
	Response  *protocol.Response
	Err       error
}

// ExecuteParallel runs every request concurrently via an errgroup, waiting
// for all of them to finish before returning; results are in input order.
// Each request's own error is captured in its ParallelResult rather than
// aborting its siblings.
func (c *Client) ExecuteParallel(ctx context.Context, requests []ParallelRequest) []ParallelResult {
	results := make([]ParallelResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)

	for i, r := range requests {
		i, r := i, r
		g.Go(func() error {
			resp, err := c.Send(gctx, r.Request, r.Args, r.Options)
			results[i] = ParallelResult{RequestID: r.ID, Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

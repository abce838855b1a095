package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/san-kum/revsim/internal/dynamo"
	"github.com/san-kum/revsim/internal/worker"
)

// Client calls a remote revsim.Worker.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without transport security. Extra options are
// applied after the defaults.
func Dial(target string, maxBytes int, opts ...grpc.DialOption) (*Client, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.MaxCallRecvMsgSize(maxBytes),
			grpc.MaxCallSendMsgSize(maxBytes),
		),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ResetState(ctx context.Context) error {
	return fromStatus(c.conn.Invoke(ctx, resetMethod, &worker.Empty{}, &worker.Empty{}))
}

func (c *Client) ForwardMode(ctx context.Context, req *worker.ForwardRequest) (*worker.ForwardReply, error) {
	reply := new(worker.ForwardReply)
	if err := c.conn.Invoke(ctx, forwardMethod, req, reply); err != nil {
		return nil, fromStatus(err)
	}
	return reply, nil
}

func (c *Client) BackwardMode(ctx context.Context, req *worker.BackwardRequest) (*worker.BackwardReply, error) {
	reply := new(worker.BackwardReply)
	if err := c.conn.Invoke(ctx, backwardMethod, req, reply); err != nil {
		return nil, fromStatus(err)
	}
	return reply, nil
}

// fromStatus maps status codes back onto the domain sentinels so callers
// can use errors.Is on both sides of the wire.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", dynamo.ErrSessionNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", dynamo.ErrInvalidConfig, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return err
}

package remote

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

// DefaultCallTimeout bounds one Match call, retries not included.
const DefaultCallTimeout = 10 * time.Second

// ClientOptions configures a Client
type ClientOptions struct {
	Retry       RetryConfig
	CallTimeout time.Duration
	DialOptions []grpc.DialOption
	Logger      *logging.Logger
}

// Client is a cv.Locator that sends both pictures to a match server
type Client struct {
	addr    string
	conn    *grpc.ClientConn
	retry   RetryConfig
	timeout time.Duration
	logger  *logging.Logger
}

// Dial creates a client for addr. The connection is established lazily,
// so an unreachable server surfaces on the first Locate.
func Dial(addr string, opts ClientOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(CodecName),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
		),
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("remote")
	}

	return &Client{
		addr:    addr,
		conn:    conn,
		retry:   opts.Retry,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Locate sends the request to the server. Connection failures that outlast
// the retry budget come back as *cv.RemoteError.
func (c *Client) Locate(ctx context.Context, req cv.MatchRequest) (cv.MatchResult, error) {
	msg, err := encodeRequest(req)
	if err != nil {
		return cv.MatchResult{}, err
	}

	var reply MatchReply
	err = Retry(ctx, c.retry, c.logger, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.conn.Invoke(callCtx, matchMethod, msg, &reply)
	})
	if err != nil {
		if IsConnectionError(err) {
			return cv.MatchResult{}, &cv.RemoteError{Addr: c.addr, Err: err}
		}
		return cv.MatchResult{}, fmt.Errorf("remote match: %w", err)
	}
	return cv.MatchResult{Points: fromWire(reply.Points)}, nil
}

// Close releases the connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func encodeRequest(req cv.MatchRequest) (*MatchRequest, error) {
	var tpl, screen bytes.Buffer
	if err := cv.Encode(&tpl, req.Template); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := cv.Encode(&screen, req.Screen); err != nil {
		return nil, fmt.Errorf("encode screen: %w", err)
	}
	return &MatchRequest{
		Template: tpl.Bytes(),
		Screen:   screen.Bytes(),
		Rate:     req.Rate,
		Multiple: req.Multiple,
	}, nil
}

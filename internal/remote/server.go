package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

// Server answers Match calls with a local Locator
type Server struct {
	locator cv.Locator
	logger  *logging.Logger
}

// NewServer wraps locator; a nil locator gets a fresh cv.Matcher
func NewServer(locator cv.Locator, logger *logging.Logger) *Server {
	if locator == nil {
		locator = cv.NewMatcher(nil)
	}
	if logger == nil {
		logger = logging.NewLogger("remote")
	}
	return &Server{locator: locator, logger: logger}
}

// Match decodes both pictures and runs the locator
func (s *Server) Match(ctx context.Context, req *MatchRequest) (*MatchReply, error) {
	if !(req.Rate >= 0 && req.Rate <= 1) {
		return nil, status.Errorf(codes.InvalidArgument, "rate %g outside [0,1]", req.Rate)
	}
	tpl, err := cv.Decode(bytes.NewReader(req.Template))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "template: %v", err)
	}
	screen, err := cv.Decode(bytes.NewReader(req.Screen))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "screen: %v", err)
	}

	result, err := s.locator.Locate(ctx, cv.MatchRequest{
		Template: tpl,
		Screen:   screen,
		Rate:     req.Rate,
		Multiple: req.Multiple,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "locate: %v", err)
	}
	return &MatchReply{Points: toWire(result.Points)}, nil
}

// NewGRPCServer creates a grpc.Server with the match service registered
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.logCalls),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterMatchServer(gs, s)
	return gs
}

// ListenAndServe serves on addr until ctx is done, then stops gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done or lis fails
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	gs := s.NewGRPCServer()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			gs.GracefulStop()
		case <-done:
		}
	}()

	s.logger.InfoWithContext("match server starting", map[string]interface{}{"addr": lis.Addr().String()})
	if err := gs.Serve(lis); err != nil {
		return fmt.Errorf("match server: %w", err)
	}
	return nil
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := map[string]interface{}{
		"method":   info.FullMethod,
		"duration": time.Since(start).String(),
	}
	if err != nil {
		s.logger.ErrorWithContext("match call failed", err, fields)
		return resp, err
	}
	if reply, ok := resp.(*MatchReply); ok {
		fields["matches"] = len(reply.Points)
	}
	s.logger.DebugWithContext("match call", fields)
	return resp, nil
}

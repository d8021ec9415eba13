package remote

import (
	"context"

	"google.golang.org/grpc"

	"jordanella.com/imagecenter/internal/cv"
)

const (
	serviceName = "imagecenter.ImageCenter"
	matchMethod = "/" + serviceName + "/Match"
)

// MatchRequest carries both pictures PNG encoded.
type MatchRequest struct {
	Template []byte  `json:"template"`
	Screen   []byte  `json:"screen"`
	Rate     float64 `json:"rate"`
	Multiple bool    `json:"multiple"`
}

// MatchReply lists accepted centers in scan order; empty means not found.
type MatchReply struct {
	Points []Point `json:"points"`
}

// Point is a match center on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func toWire(points []cv.Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

func fromWire(points []Point) []cv.Point {
	if len(points) == 0 {
		return nil
	}
	out := make([]cv.Point, len(points))
	for i, p := range points {
		out[i] = cv.Point{X: p.X, Y: p.Y}
	}
	return out
}

// MatchServer is the server side of the ImageCenter service.
type MatchServer interface {
	Match(ctx context.Context, req *MatchRequest) (*MatchReply, error)
}

// RegisterMatchServer registers srv with s.
func RegisterMatchServer(s grpc.ServiceRegistrar, srv MatchServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Match", Handler: matchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "imagecenter",
}

func matchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServer).Match(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: matchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServer).Match(ctx, req.(*MatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

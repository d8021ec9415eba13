package remote

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

var (
	black = cv.RGB{}
	red   = cv.RGB{R: 255}
	green = cv.RGB{G: 255}
	blue  = cv.RGB{B: 255}
	white = cv.RGB{R: 255, G: 255, B: 255}
)

func mustImage(t *testing.T, w, h int, pix []cv.RGB) *cv.Image {
	t.Helper()
	img, err := cv.NewImage(w, h, pix)
	if err != nil {
		t.Fatalf("Failed to build image: %v", err)
	}
	return img
}

// screen is 4x4 black with the 2x2 block painted at (1,1)
func testPictures(t *testing.T) (tpl, screen *cv.Image) {
	t.Helper()
	tpl = mustImage(t, 2, 2, []cv.RGB{red, green, blue, white})

	pix := make([]cv.RGB, 16)
	for i := range pix {
		pix[i] = black
	}
	pix[1*4+1] = red
	pix[1*4+2] = green
	pix[2*4+1] = blue
	pix[2*4+2] = white
	return tpl, mustImage(t, 4, 4, pix)
}

func startServer(t *testing.T) (*bufconn.Listener, *Client) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := NewServer(cv.NewSeededMatcher(1), logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := Dial("passthrough:///bufnet", ClientOptions{
		Retry:       RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		CallTimeout: 5 * time.Second,
		Logger:      logging.Discard(),
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return lis, client
}

func TestRemoteLocateFound(t *testing.T) {
	_, client := startServer(t)
	tpl, screen := testPictures(t)

	result, err := client.Locate(context.Background(), cv.MatchRequest{Template: tpl, Screen: screen, Rate: 1})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(result.Points) != 1 || result.Points[0] != (cv.Point{X: 2, Y: 2}) {
		t.Errorf("Expected [(2,2)], got %v", result.Points)
	}
}

func TestRemoteLocateNotFound(t *testing.T) {
	_, client := startServer(t)
	_, screen := testPictures(t)
	absent := mustImage(t, 2, 2, []cv.RGB{white, white, white, white})

	result, err := client.Locate(context.Background(), cv.MatchRequest{Template: absent, Screen: screen, Rate: 1})
	if err != nil {
		t.Fatalf("Expected an empty reply, got error %v", err)
	}
	if result.Found() {
		t.Errorf("Expected no points, got %v", result.Points)
	}
}

func TestRemoteInvalidPayload(t *testing.T) {
	_, client := startServer(t)

	var reply MatchReply
	err := client.conn.Invoke(context.Background(), matchMethod,
		&MatchRequest{Template: []byte("not a png"), Screen: []byte("nope"), Rate: 1}, &reply)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}

	tpl, screen := testPictures(t)
	_, err = client.Locate(context.Background(), cv.MatchRequest{Template: tpl, Screen: screen, Rate: 1.5})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument for rate 1.5, got %v", err)
	}
	if errors.Is(err, cv.ErrRemoteUnavailable) {
		t.Error("A rejected request is not an unreachable server")
	}
}

func TestRemoteUnavailable(t *testing.T) {
	lis, client := startServer(t)
	lis.Close()

	tpl, screen := testPictures(t)
	_, err := client.Locate(context.Background(), cv.MatchRequest{Template: tpl, Screen: screen, Rate: 1})
	if !errors.Is(err, cv.ErrRemoteUnavailable) {
		t.Fatalf("Expected ErrRemoteUnavailable, got %v", err)
	}
	var remoteErr *cv.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Addr != "passthrough:///bufnet" {
		t.Errorf("Expected RemoteError naming the address, got %v", err)
	}
}

func TestRetryCountsExtraAttempts(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "down")

	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, nil, func() error {
		calls++
		return unavailable
	})
	if calls != 3 || !errors.Is(err, unavailable) {
		t.Errorf("Expected 3 calls ending in the last error, got %d calls and %v", calls, err)
	}

	calls = 0
	Retry(context.Background(), RetryConfig{}, nil, func() error {
		calls++
		return unavailable
	})
	if calls != 1 {
		t.Errorf("Expected a single call with no retries, got %d", calls)
	}

	calls = 0
	Retry(context.Background(), RetryConfig{MaxRetries: 5}, nil, func() error {
		calls++
		return status.Error(codes.InvalidArgument, "bad")
	})
	if calls != 1 {
		t.Errorf("Expected no retry for InvalidArgument, got %d calls", calls)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{status.Error(codes.Unavailable, "x"), true},
		{status.Error(codes.DeadlineExceeded, "x"), true},
		{status.Error(codes.Internal, "x"), false},
	}
	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.want {
			t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// noise fills a w x h picture with pseudo-random pixels so PNG cannot
// compress it.
func noise(t *testing.T, w, h int) *cv.Image {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	pix := make([]cv.RGB, w*h)
	for i := range pix {
		v := rng.Uint32()
		pix[i] = cv.RGB{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16)}
	}
	return mustImage(t, w, h, pix)
}

func TestRemoteLocateFullHDScreen(t *testing.T) {
	_, client := startServer(t)
	screen := noise(t, 1920, 1080)

	tpl, err := screen.Crop(cv.NewRegion(100, 200, 8, 8))
	if err != nil {
		t.Fatalf("Failed to crop template: %v", err)
	}

	result, err := client.Locate(context.Background(), cv.MatchRequest{Template: tpl, Screen: screen, Rate: 1})
	if err != nil {
		t.Fatalf("Locate failed on a full-HD screen: %v", err)
	}
	if len(result.Points) != 1 || result.Points[0] != (cv.Point{X: 104, Y: 204}) {
		t.Errorf("Expected [(104,204)], got %v", result.Points)
	}
}

func TestServeReturnsWhenListenerFails(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	lis.Close()

	srv := NewServer(nil, logging.Discard())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background(), lis) }()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("Expected an error from a closed listener")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after its listener failed")
	}
}

func TestRetryDefaultsJitter(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.JitterFactor != DefaultJitterFactor {
		t.Fatalf("Expected jitter %v, got %v", DefaultJitterFactor, cfg.JitterFactor)
	}

	lo := time.Duration(float64(cfg.BaseDelay) * (1 - DefaultJitterFactor/2))
	hi := time.Duration(float64(cfg.BaseDelay) * (1 + DefaultJitterFactor/2))
	distinct := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		d := backoffDelay(cfg, 0)
		if d < lo || d > hi {
			t.Fatalf("Delay %v outside [%v, %v]", d, lo, hi)
		}
		distinct[d] = true
	}
	if len(distinct) < 2 {
		t.Error("Expected jittered delays to vary")
	}
}

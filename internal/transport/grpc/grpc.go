// Package grpc implements the gRPC transport for replymode.
//
// The service replymode.v1.ReplyMode has two unary methods, Decide and Reply,
// whose messages are the daemon's JSON types carried with the "json" codec.
// The standard grpc.health.v1 service is registered alongside it.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/caji-assist/replymode/internal/message"
	"github.com/caji-assist/replymode/internal/transport"
)

const (
	serviceName = "replymode.v1.ReplyMode"

	// deliverMethod is called on reply targets; downstream services implement
	// replymode.v1.ReplySink with the same JSON codec.
	deliverMethod = "/replymode.v1.ReplySink/Deliver"
)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port     int
	dialOpts []grpc.DialOption

	mu     sync.Mutex
	server *grpc.Server
	closed bool
	conns  map[string]*grpc.ClientConn
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{
		port:     port,
		dialOpts: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		conns:    make(map[string]*grpc.ClientConn),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server on the configured port.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, svc)
}

// Serve serves svc on lis until the context is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, svc transport.Service) error {
	srv := grpc.NewServer()
	srv.RegisterService(&serviceDesc, &server{svc: svc})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return lis.Close()
	}
	t.server = srv
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	return srv.Serve(lis)
}

// Send delivers a payload to a gRPC target by calling its Deliver method.
func (t *Transport) Send(ctx context.Context, target message.Target, payload []byte) error {
	conn, err := t.conn(target.Endpoint)
	if err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}

	var ack json.RawMessage
	if err := conn.Invoke(ctx, deliverMethod, json.RawMessage(payload), &ack, grpc.CallContentSubtype(codecName)); err != nil {
		return fmt.Errorf("grpc send: %w", err)
	}

	slog.Debug("grpc send success", "target", target.Endpoint, "bytes", len(payload))
	return nil
}

// conn returns a cached client connection to endpoint.
func (t *Transport) conn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conns[endpoint]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(endpoint, t.dialOpts...)
	if err != nil {
		return nil, err
	}
	t.conns[endpoint] = c
	return c, nil
}

// Close gracefully stops the gRPC server and closes client connections.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv != nil {
		srv.GracefulStop()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for endpoint, c := range t.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", endpoint, err))
		}
		delete(t.conns, endpoint)
	}
	return errors.Join(errs...)
}

// replyModeServer is the handler type of serviceDesc.
type replyModeServer interface {
	Decide(ctx context.Context, req *message.DecisionRequest) (*message.DecisionResponse, error)
	Reply(ctx context.Context, msg *message.Message) (*message.Reply, error)
}

type server struct {
	svc transport.Service
}

func (s *server) Decide(ctx context.Context, req *message.DecisionRequest) (*message.DecisionResponse, error) {
	res, err := s.svc.Decide(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &res, nil
}

func (s *server) Reply(ctx context.Context, msg *message.Message) (*message.Reply, error) {
	reply, err := s.svc.Handle(ctx, msg)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply, nil
}

func toStatus(err error) error {
	if errors.Is(err, transport.ErrInvalidRequest) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	slog.Error("grpc call failed", "error", err)
	return status.Error(codes.Internal, err.Error())
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*replyModeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decide", Handler: decideHandler},
		{MethodName: "Reply", Handler: replyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replymode/v1/replymode.proto",
}

func decideHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.DecisionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replyModeServer).Decide(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Decide"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replyModeServer).Decide(ctx, req.(*message.DecisionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func replyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Message)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replyModeServer).Reply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Reply"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replyModeServer).Reply(ctx, req.(*message.Message))
	}
	return interceptor(ctx, in, info, handler)
}

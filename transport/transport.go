// Package transport is the request/response adapter between live components.
//
// An operation set is described once as a Service of typed unary handlers and
// served over gRPC; clients call operations with Call. Precondition failures
// raised by a component travel as codes.FailedPrecondition.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rvila94/ALASCA-sub001/sim"
)

// DefaultCallTimeout bounds one operation call when the caller sets no deadline.
const DefaultCallTimeout = 5 * time.Second

// Service is a named operation set.
type Service struct {
	name    string
	methods []grpc.MethodDesc
}

// NewService creates an empty operation set, e.g. "alasca.Lamp".
func NewService(name string) *Service {
	return &Service{name: name}
}

// Name returns the gRPC service name.
func (s *Service) Name() string { return s.name }

// Methods lists the registered operation names.
func (s *Service) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for _, m := range s.methods {
		names = append(names, m.MethodName)
	}
	return names
}

// Unary adds operation method to s, handled by fn.
func Unary[Req, Resp any](s *Service, method string, fn func(ctx context.Context, req *Req) (*Resp, error)) {
	full := "/" + s.name + "/" + method
	s.methods = append(s.methods, grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	})
}

func (s *Service) desc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: s.name,
		HandlerType: (*any)(nil),
		Methods:     s.methods,
		Metadata:    "alasca/transport",
	}
}

// Server serves operation sets on one endpoint.
type Server struct {
	grpc *grpc.Server
}

// NewServer creates a server whose handlers map component errors to gRPC status.
func NewServer(opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(statusInterceptor)}, opts...)
	return &Server{grpc: grpc.NewServer(opts...)}
}

// Register exposes svc. It must be called before Serve.
func (s *Server) Register(svc *Service) {
	s.grpc.RegisterService(svc.desc(), svc)
}

// Serve accepts connections on lis until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve %s: %w", lis.Addr(), err)
	}
	return nil
}

// GracefulStop waits for in-flight calls, then stops.
func (s *Server) GracefulStop() { s.grpc.GracefulStop() }

// Stop closes every connection immediately.
func (s *Server) Stop() { s.grpc.Stop() }

func statusInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			pv, ok := r.(*sim.PreconditionViolation)
			if !ok {
				panic(r)
			}
			err = pv
		}
		if err != nil {
			err = toStatus(err)
			logrus.Debugf("%s: %v", info.FullMethod, err)
		}
	}()
	return handler(ctx, req)
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var pv *sim.PreconditionViolation
	switch {
	case errors.As(err, &pv):
		return status.Error(codes.FailedPrecondition, pv.Error())
	case errors.Is(err, sim.ErrUnknownModel):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, sim.ErrFinished):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// IsFailedPrecondition reports whether a call was refused by the component's
// current state.
func IsFailedPrecondition(err error) bool {
	return status.Code(err) == codes.FailedPrecondition
}

// Client calls operation sets on one endpoint.
type Client struct {
	conn        *grpc.ClientConn
	callTimeout time.Duration
}

// Dial creates a client for address. Extra options are appended, which lets
// tests dial in-memory listeners.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	if address == "" {
		return nil, errors.New("transport: address must be provided")
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Client{conn: conn, callTimeout: DefaultCallTimeout}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Call invokes service/method with req and decodes the reply.
func Call[Req, Resp any](ctx context.Context, c *Client, service, method string, req *Req) (*Resp, error) {
	if _, ok := ctx.Deadline(); !ok && c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, req, out); err != nil {
		return nil, fmt.Errorf("%s/%s: %w", service, method, err)
	}
	return out, nil
}

// Empty is the request or reply of operations that carry no data.
type Empty struct{}

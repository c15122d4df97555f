// Package stream carries the realtime channel over gRPC. The service is a
// single bidirectional stream whose frames are google.protobuf.Struct values
// with the same JSON shapes as the WebSocket transport.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"consultlaw-api/internal/middleware"
	"consultlaw-api/internal/realtime"
)

const (
	ServiceName   = "consultlaw.realtime.v1.Realtime"
	ConnectMethod = "/" + ServiceName + "/Connect"
)

type RealtimeServer interface {
	Connect(grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Connect",
		Handler:       connectHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "consultlaw/realtime/v1/realtime.proto",
}

func connectHandler(srv any, ss grpc.ServerStream) error {
	return srv.(RealtimeServer).Connect(ss)
}

type Server struct {
	hub *realtime.Hub
}

func Register(s grpc.ServiceRegistrar, hub *realtime.Hub) {
	s.RegisterService(&serviceDesc, &Server{hub: hub})
}

// Connect serves one session. The stream must have passed
// middleware.StreamAuth.
func (s *Server) Connect(ss grpc.ServerStream) error {
	who, ok := middleware.PrincipalFrom(ss.Context())
	if !ok {
		return status.Error(codes.Unauthenticated, "no principal")
	}
	err := s.hub.Serve(ss.Context(), who, &structConn{stream: ss})
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case ss.Context().Err() != nil:
		return status.FromContextError(ss.Context().Err()).Err()
	}
	return err
}

// structConn adapts a gRPC stream to realtime.Conn by routing each frame
// through its JSON form.
type structConn struct {
	stream interface {
		SendMsg(m any) error
		RecvMsg(m any) error
	}
}

func (c *structConn) ReadJSON(v any) error {
	msg := &structpb.Struct{}
	if err := c.stream.RecvMsg(msg); err != nil {
		return err
	}
	return FromStruct(msg, v)
}

func (c *structConn) WriteJSON(v any) error {
	msg, err := ToStruct(v)
	if err != nil {
		return err
	}
	return c.stream.SendMsg(msg)
}

// Close is a no-op: the stream ends when Connect returns, which also releases
// a SendMsg blocked on flow control.
func (c *structConn) Close() error { return nil }

func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(b, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func FromStruct(msg *structpb.Struct, v any) error {
	b, err := protojson.Marshal(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Client is the caller side of Connect.
type Client struct {
	cs grpc.ClientStream
}

// Open starts a session on cc. Authentication travels in ctx as outgoing
// "authorization: Bearer <jwt>" metadata.
func Open(ctx context.Context, cc grpc.ClientConnInterface) (*Client, error) {
	cs, err := cc.NewStream(ctx, &serviceDesc.Streams[0], ConnectMethod)
	if err != nil {
		return nil, err
	}
	return &Client{cs: cs}, nil
}

func (c *Client) Send(in realtime.Inbound) error {
	msg, err := ToStruct(in)
	if err != nil {
		return err
	}
	return c.cs.SendMsg(msg)
}

func (c *Client) Recv() (realtime.Envelope, error) {
	var env realtime.Envelope
	msg := &structpb.Struct{}
	if err := c.cs.RecvMsg(msg); err != nil {
		return env, err
	}
	return env, FromStruct(msg, &env)
}

func (c *Client) CloseSend() error { return c.cs.CloseSend() }

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"consultlaw-api/internal/auth"
	"consultlaw-api/internal/model"
)

type ctxKey string

const principalKey ctxKey = "principal"

func WithPrincipal(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(principalKey).(model.Identity)
	return id, ok
}

func bearer(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Authenticate attaches the principal of a valid token to the request
// context. The token comes from "Authorization: Bearer <jwt>" or, for browser
// WebSocket handshakes which cannot set headers, the token query parameter.
// Requests without a token pass through anonymous; a bad token is rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := auth.Principal(raw, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "bad token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), id)))
		})
	}
}

// Require rejects anonymous requests.
func Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// skip auth for these
var open = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

func principalFromMetadata(ctx context.Context, secret string) (model.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return model.Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	// token from authorization: Bearer <jwt>
	raw := ""
	if vals := md.Get("authorization"); len(vals) > 0 {
		raw = bearer(vals[0])
	}
	if raw == "" {
		return model.Identity{}, status.Error(codes.Unauthenticated, "no token")
	}
	id, err := auth.Principal(raw, secret)
	if err != nil {
		return model.Identity{}, status.Error(codes.Unauthenticated, "bad token")
	}
	return id, nil
}

func Auth(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}
		id, err := principalFromMetadata(ctx, secret)
		if err != nil {
			return nil, err
		}
		return next(WithPrincipal(ctx, id), req)
	}
}

// StreamAuth rejects a stream before the handler runs, so an anonymous
// caller never reaches session registration.
func StreamAuth(secret string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if open[info.FullMethod] {
			return next(srv, ss)
		}
		id, err := principalFromMetadata(ss.Context(), secret)
		if err != nil {
			return err
		}
		return next(srv, &serverStream{ServerStream: ss, ctx: WithPrincipal(ss.Context(), id)})
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }

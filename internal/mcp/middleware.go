package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/caseload/internal/identity"
)

// clinicID returns the caller's clinic from context.
func clinicID(ctx context.Context) string {
	c, _ := identity.CallerFrom(ctx)
	return c.ClinicID
}

// authMiddleware resolves the bearer API key into a caller.
func authMiddleware(resolver CallerResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			caller, err := resolver.Resolve(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}

			return next(identity.WithCaller(ctx, caller), method, req)
		}
	}
}

// noAuthMiddleware acts as a fixed caller when auth is disabled.
func noAuthMiddleware(caller identity.Caller) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(identity.WithCaller(ctx, caller), method, req)
		}
	}
}

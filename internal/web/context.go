package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/xlsx2marc/internal/core"
	"github.com/JonMunkholm/xlsx2marc/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for the
// conversion history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, middleware.ClientIP(r), r.UserAgent())
}

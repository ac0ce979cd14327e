package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/niallclarke-spec/couponpro-sub002/internal/config"
	"github.com/niallclarke-spec/couponpro-sub002/internal/dispatch"
	"github.com/niallclarke-spec/couponpro-sub002/internal/middleware"
)

// NewRouter wires the gin engine: ambient middleware first, then the
// dispatcher as the catch-all, with static assets as the final fallback.
func NewRouter(cfg config.Config, dispatcher *dispatch.Dispatcher, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	// Every route goes through the dispatcher's table, not gin's; gin only
	// carries the middleware chain.
	r.NoRoute(func(c *gin.Context) {
		if dispatcher.Handle(c) {
			return
		}
		serveStatic(c, cfg.StaticDir)
	})

	return r
}

func serveStatic(c *gin.Context, distDir string) {
	path := c.Request.URL.Path
	if isAPIPath(path) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if filePath, ok := safeJoin(distDir, path); ok {
		if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
			c.File(filePath)
			return
		}
	}

	c.File(filepath.Join(distDir, "index.html"))
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/api"
}

func safeJoin(baseDir, requestPath string) (string, bool) {
	trimmed := strings.TrimPrefix(requestPath, "/")
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return filepath.Join(baseDir, cleaned), true
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return filepath.Join(baseDir, cleaned), true
}

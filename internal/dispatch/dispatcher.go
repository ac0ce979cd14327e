package dispatch

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/niallclarke-spec/couponpro-sub002/internal/gate"
	"github.com/niallclarke-spec/couponpro-sub002/internal/hostctx"
	"github.com/niallclarke-spec/couponpro-sub002/internal/routes"
)

const apiPrefix = "/api/"

// Availability reports whether the database can serve db-required routes.
type Availability interface {
	Available() bool
}

// Dispatcher is the top-level request entry point: it normalizes the path,
// matches the route table, runs the authorization gate, and invokes the
// resolved handler.
type Dispatcher struct {
	table  *routes.Table
	gate   *gate.Gate
	db     Availability
	logger *zap.Logger
}

// New constructs a Dispatcher.
func New(table *routes.Table, g *gate.Gate, db Availability, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.L()
	}
	return &Dispatcher{table: table, gate: g, db: db, logger: logger}
}

// Handle processes one request. It returns false only when no route matched
// and nothing was written, so the caller can fall back to static assets.
func (d *Dispatcher) Handle(c *gin.Context) bool {
	path := c.Request.URL.Path

	// Normalize trailing-slash API variants before anything else sees them.
	if c.Request.Method == http.MethodGet &&
		strings.HasPrefix(path, apiPrefix) &&
		strings.HasSuffix(path, "/") &&
		len(path) > len(apiPrefix) {
		target := path[:len(path)-1]
		if raw := c.Request.URL.RawQuery; raw != "" {
			target += "?" + raw
		}
		c.Redirect(http.StatusMovedPermanently, target)
		c.Abort()
		return true
	}

	route := d.table.Match(c.Request.Method, path)
	if route == nil {
		return false
	}

	host := hostctx.Resolve(c.Request.Host)
	if !d.gate.Authorize(c, route, host, d.db.Available()) {
		// The gate wrote the denial; nothing more to send.
		return true
	}

	handler, ok := d.table.Handler(route)
	if !ok {
		// Startup validation makes this unreachable; stay defensive anyway.
		d.logger.Error("route handler vanished from registry",
			zap.String("handler", route.Handler),
			zap.String("path", path),
		)
		return false
	}

	handler(c)
	return true
}

package routes

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// Route is an immutable descriptor of one dispatchable endpoint. Tables are
// built once at startup and shared read-only across requests.
type Route struct {
	Method       string
	Path         string
	Handler      string
	AuthRequired bool
	DBRequired   bool
	IsPrefix     bool
	// Contains, when non-empty, must appear somewhere in the request path
	// for a prefix route to qualify.
	Contains string
}

// Registry maps symbolic handler names to callables.
type Registry map[string]gin.HandlerFunc

// Table holds the ordered route list. Order matters: more specific routes
// must precede more general prefix routes.
type Table struct {
	routes   []Route
	registry Registry
}

// NewTable validates every handler name against the registry and returns the
// table. An unresolved name is a startup error, never a request-time one.
func NewTable(defs []Route, registry Registry) (*Table, error) {
	for _, r := range defs {
		if r.Method == "" || r.Path == "" || r.Handler == "" {
			return nil, fmt.Errorf("route table: incomplete route %q %q -> %q", r.Method, r.Path, r.Handler)
		}
		if _, ok := registry[r.Handler]; !ok {
			return nil, fmt.Errorf("route table: handler %q for %s %s is not registered", r.Handler, r.Method, r.Path)
		}
	}
	return &Table{routes: defs, registry: registry}, nil
}

// Match returns the first qualifying route for (method, path), or nil.
// Exact path equality always qualifies; prefix routes qualify on
// strings.HasPrefix, further narrowed by Contains when set.
func (t *Table) Match(method, path string) *Route {
	for i := range t.routes {
		r := &t.routes[i]
		if r.Method != method {
			continue
		}
		if r.Path == path {
			return r
		}
		if !r.IsPrefix || !strings.HasPrefix(path, r.Path) {
			continue
		}
		if r.Contains != "" && !strings.Contains(path, r.Contains) {
			continue
		}
		return r
	}
	return nil
}

// Handler resolves the route's symbolic handler name. The bool is false only
// if the registry changed out from under the table, which startup validation
// rules out.
func (t *Table) Handler(r *Route) (gin.HandlerFunc, bool) {
	h, ok := t.registry[r.Handler]
	return h, ok
}

// Routes exposes the table contents for diagnostics.
func (t *Table) Routes() []Route {
	return t.routes
}

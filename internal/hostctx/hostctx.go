package hostctx

import (
	"net"
	"strings"
)

// Type classifies the virtual host a request arrived on.
type Type int

const (
	// TypeDefault covers legacy deployments that have not adopted
	// subdomain splitting; it carries the same admin requirements as
	// TypeAdmin.
	TypeDefault Type = iota
	// TypeAdmin is the operator admin subdomain (admin.*).
	TypeAdmin
	// TypeDash is the tenant dashboard subdomain (dash.*).
	TypeDash
)

func (t Type) String() string {
	switch t {
	case TypeAdmin:
		return "admin"
	case TypeDash:
		return "dash"
	default:
		return "default"
	}
}

// Context stores the resolved host classification for one request.
type Context struct {
	Type            Type
	CanonicalDomain string
	IsDev           bool
}

var devSuffixes = []string{
	".ngrok-free.app",
	".ngrok.io",
	".loca.lt",
}

// Resolve classifies the Host header. Pure function, never fails.
func Resolve(hostHeader string) Context {
	host := strings.ToLower(strings.TrimSpace(hostHeader))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	ctx := Context{CanonicalDomain: host}

	switch host {
	case "localhost", "127.0.0.1", "::1":
		ctx.IsDev = true
	default:
		for _, suffix := range devSuffixes {
			if strings.HasSuffix(host, suffix) {
				ctx.IsDev = true
				break
			}
		}
	}

	switch {
	case strings.HasPrefix(host, "admin."):
		ctx.Type = TypeAdmin
	case strings.HasPrefix(host, "dash."):
		ctx.Type = TypeDash
	default:
		ctx.Type = TypeDefault
	}

	return ctx
}

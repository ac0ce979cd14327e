package identity

import "github.com/gin-gonic/gin"

const resolutionKey = "tenantResolution"

// Attach stores the resolution on the gin context for downstream handlers.
// It is set exactly once, by the dispatcher, before any gate runs.
func Attach(c *gin.Context, res Resolution) {
	c.Set(resolutionKey, res)
}

// FromContext returns the resolution attached to the request, if any.
func FromContext(c *gin.Context) (Resolution, bool) {
	value, ok := c.Get(resolutionKey)
	if !ok {
		return Resolution{}, false
	}
	res, ok := value.(Resolution)
	return res, ok
}

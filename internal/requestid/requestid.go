package requestid

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

// ctxKey is the Gin context key used to store the request id.
const ctxKey = "request_id"

// maxLen bounds caller-supplied ids so they cannot bloat logs.
const maxLen = 128

// Middleware tags every request with an id: the caller's X-Request-ID when
// present and sane, otherwise a fresh UUID. The id is echoed in the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(Header))
		if id == "" || len(id) > maxLen {
			id = uuid.NewString()
		}
		c.Set(ctxKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// FromContext returns the request id set by Middleware, or "".
func FromContext(c *gin.Context) string {
	v, _ := c.Get(ctxKey)
	s, _ := v.(string)
	return s
}

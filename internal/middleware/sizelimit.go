package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64 // in bytes
	MaxUploadSize int64 // in bytes
	// UploadRoutes are route patterns (gin FullPath) that carry result images
	UploadRoutes []string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize: 1 << 20, // 1MB
		// base64 inflates the image by a third, plus the JSON around it
		MaxUploadSize: 15 << 20,
	}
}

// SizeLimit caps request bodies. Declared lengths over the limit are
// rejected up front; chunked bodies fail when the handler reads past it.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	uploads := make(map[string]bool, len(config.UploadRoutes))
	for _, r := range config.UploadRoutes {
		uploads[r] = true
	}

	return func(c *gin.Context) {
		limit := config.MaxBodySize
		if uploads[c.FullPath()] {
			limit = config.MaxUploadSize
		}

		if c.Request.ContentLength > limit {
			c.Header("Connection", "close")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				httputil.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", limit)))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}


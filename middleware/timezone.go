package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	TimezoneHeader = "X-Timezone"
	LocationKey    = "location"
)

// Timezone resolves the caller's IANA zone from X-Timezone. Requests
// without the header use def; an unknown zone is rejected with 400.
func Timezone(def *time.Location) gin.HandlerFunc {
	if def == nil {
		def = time.UTC
	}
	return func(c *gin.Context) {
		loc := def
		if name := c.GetHeader(TimezoneHeader); name != "" {
			l, err := time.LoadLocation(name)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid timezone", "timezone": name})
				return
			}
			loc = l
		}
		c.Set(LocationKey, loc)
		c.Next()
	}
}

// GetLocation returns the resolved caller location, UTC when unset.
func GetLocation(c *gin.Context) *time.Location {
	if v, exists := c.Get(LocationKey); exists {
		return v.(*time.Location)
	}
	return time.UTC
}

// Now is the request time in the caller's location.
func Now(c *gin.Context) time.Time {
	return time.Now().In(GetLocation(c))
}

package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IPWhitelist only allows requests whose client IP matches one of the
// entries. Entries are plain addresses or CIDR ranges; unparsable entries
// match nothing. An empty list allows everyone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	var nets []*net.IPNet
	configured := false
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		configured = true
		if n := parseEntry(e); n != nil {
			nets = append(nets, n)
		}
	}
	return func(c *gin.Context) {
		if !configured {
			c.Next()
			return
		}
		if ip := net.ParseIP(c.ClientIP()); ip != nil {
			for _, n := range nets {
				if n.Contains(ip) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

func parseEntry(e string) *net.IPNet {
	if strings.Contains(e, "/") {
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil
		}
		return n
	}
	ip := net.ParseIP(e)
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
}

package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebhookIPAllowlist drops webhook deliveries from outside the
// provider's published subnets. An empty CIDR list disables the check.
func WebhookIPAllowlist(allowedCIDRs []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(allowedCIDRs) == 0 {
			c.Next()
			return
		}
		if !isAllowedIP(c.ClientIP(), allowedCIDRs) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "source not allowed"})
			return
		}
		c.Next()
	}
}

func isAllowedIP(ip string, allowedCIDRs []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range allowedCIDRs {
		_, netblock, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if netblock.Contains(parsed) {
			return true
		}
	}
	return false
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWhitelistRouter(ips []string) *gin.Engine {
	r := gin.New()
	r.Use(IPWhitelist(ips))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func pingFrom(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIPWhitelist_Empty_AllowsAll(t *testing.T) {
	r := newWhitelistRouter(nil)
	assert.Equal(t, http.StatusOK, pingFrom(r, "1.2.3.4"))
}

func TestIPWhitelist_AllowedIP(t *testing.T) {
	r := newWhitelistRouter([]string{"192.168.1.1"})
	assert.Equal(t, http.StatusOK, pingFrom(r, "192.168.1.1"))
	assert.Equal(t, http.StatusForbidden, pingFrom(r, "1.2.3.4"))
}

func TestIPWhitelist_CIDR(t *testing.T) {
	r := newWhitelistRouter([]string{"10.0.0.0/24", "::1"})
	assert.Equal(t, http.StatusOK, pingFrom(r, "10.0.0.7"))
	assert.Equal(t, http.StatusOK, pingFrom(r, "::1"))
	assert.Equal(t, http.StatusForbidden, pingFrom(r, "10.0.1.7"))
}

func TestIPWhitelist_GarbageDeniesAll(t *testing.T) {
	r := newWhitelistRouter([]string{"not-an-ip"})
	assert.Equal(t, http.StatusForbidden, pingFrom(r, "10.0.0.1"))
}

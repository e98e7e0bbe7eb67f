package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func corsEngine(cfg *CORSConfig) *gin.Engine {
	engine := gin.New()
	if cfg == nil {
		engine.Use(CORS())
	} else {
		engine.Use(CORSWithConfig(*cfg))
	}
	engine.GET("/stocks", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return engine
}

func doCORS(engine *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/stocks", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCORS_DefaultWhitelistIsEmpty(t *testing.T) {
	engine := corsEngine(nil)

	t.Run("cross-origin request gets no CORS headers", func(t *testing.T) {
		w := doCORS(engine, "GET", "http://elsewhere.example")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same-origin request passes", func(t *testing.T) {
		w := doCORS(engine, "GET", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("preflight answers 204 without CORS headers", func(t *testing.T) {
		w := doCORS(engine, "OPTIONS", "http://elsewhere.example")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSWithConfig(t *testing.T) {
	t.Run("whitelisted origin is echoed with credentials", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins:     []string{"http://ops.paklog.internal"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
		})

		w := doCORS(engine, "GET", "http://ops.paklog.internal")
		assert.Equal(t, "http://ops.paklog.internal", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("each whitelisted origin matches independently", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins: []string{"http://ops.paklog.internal", "http://wms.paklog.internal"},
			AllowMethods: []string{"GET"},
		})

		for _, origin := range []string{"http://ops.paklog.internal", "http://wms.paklog.internal"} {
			w := doCORS(engine, "GET", origin)
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("unlisted origin gets nothing", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{AllowOrigins: []string{"http://ops.paklog.internal"}})

		w := doCORS(engine, "GET", "http://elsewhere.example")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard matches any origin but never grants credentials", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET"},
			AllowCredentials: true,
		})

		w := doCORS(engine, "GET", "http://elsewhere.example")
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("max age is seconds as a decimal string", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins: []string{"http://ops.paklog.internal"},
			AllowMethods: []string{"GET"},
			MaxAge:       12 * time.Hour,
		})

		w := doCORS(engine, "GET", "http://ops.paklog.internal")
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("expose headers are joined", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins:  []string{"http://ops.paklog.internal"},
			AllowMethods:  []string{"GET"},
			ExposeHeaders: []string{"X-Request-ID", "X-Total-Count"},
		})

		w := doCORS(engine, "GET", "http://ops.paklog.internal")
		assert.Equal(t, "X-Request-ID, X-Total-Count", w.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("preflight from a whitelisted origin lists methods and headers", func(t *testing.T) {
		engine := corsEngine(&CORSConfig{
			AllowOrigins: []string{"http://ops.paklog.internal"},
			AllowMethods: []string{"GET", "POST", "PUT"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		})

		w := doCORS(engine, "OPTIONS", "http://ops.paklog.internal")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://ops.paklog.internal", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	})
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowOrigins, "default whitelist must be empty")
	assert.Contains(t, cfg.AllowMethods, "GET")
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.Contains(t, cfg.AllowHeaders, "Content-Type")
	assert.True(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/stocks", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an id when none provided", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/stocks", nil))

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		assert.NotEmpty(t, w.Body.String())
	})

	t.Run("propagates a caller-supplied id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/stocks", nil)
		req.Header.Set("X-Request-ID", "req-abc")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, "req-abc", w.Header().Get("X-Request-ID"))
		assert.Equal(t, "req-abc", w.Body.String())
	})
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 32) // 16 random bytes, hex encoded
}

func secureEngine(cfg *SecurityConfig) *gin.Engine {
	engine := gin.New()
	if cfg == nil {
		engine.Use(Secure())
	} else {
		engine.Use(SecureWithConfig(*cfg))
	}
	engine.GET("/stocks", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return engine
}

func doSecure(engine *gin.Engine) http.Header {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/stocks", nil))
	return w.Header()
}

func TestSecure_Defaults(t *testing.T) {
	headers := doSecure(secureEngine(nil))

	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))

	csp := headers.Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'self'")
	assert.Contains(t, csp, "frame-ancestors 'none'")

	// HSTS stays off until TLS termination is confirmed
	assert.Empty(t, headers.Get("Strict-Transport-Security"))

	assert.Contains(t, headers.Get("Permissions-Policy"), "camera=()")
}

func TestSecureWithConfig(t *testing.T) {
	t.Run("custom CSP directive", func(t *testing.T) {
		headers := doSecure(secureEngine(&SecurityConfig{
			CSPEnabled:   true,
			CSPDirective: "default-src 'none'; script-src 'self'",
		}))

		assert.Equal(t, "default-src 'none'; script-src 'self'", headers.Get("Content-Security-Policy"))
		assert.Empty(t, headers.Get("Permissions-Policy"))
	})

	t.Run("HSTS with subdomains and preload", func(t *testing.T) {
		headers := doSecure(secureEngine(&SecurityConfig{
			HSTSEnabled:           true,
			HSTSMaxAge:            63072000,
			HSTSIncludeSubdomains: true,
			HSTSPreload:           true,
		}))

		assert.Equal(t, "max-age=63072000; includeSubDomains; preload", headers.Get("Strict-Transport-Security"))
	})

	t.Run("HSTS max-age only", func(t *testing.T) {
		headers := doSecure(secureEngine(&SecurityConfig{
			HSTSEnabled: true,
			HSTSMaxAge:  31536000,
		}))

		assert.Equal(t, "max-age=31536000", headers.Get("Strict-Transport-Security"))
	})

	t.Run("custom permissions policy", func(t *testing.T) {
		headers := doSecure(secureEngine(&SecurityConfig{
			PermissionsPolicyEnabled:   true,
			PermissionsPolicyDirective: "geolocation=(self), microphone=()",
		}))

		assert.Equal(t, "geolocation=(self), microphone=()", headers.Get("Permissions-Policy"))
	})

	t.Run("optional headers disabled leaves the basics", func(t *testing.T) {
		headers := doSecure(secureEngine(&SecurityConfig{}))

		assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
		assert.Empty(t, headers.Get("Content-Security-Policy"))
		assert.Empty(t, headers.Get("Strict-Transport-Security"))
		assert.Empty(t, headers.Get("Permissions-Policy"))
	})
}

func TestDefaultSecurityConfig(t *testing.T) {
	cfg := DefaultSecurityConfig()

	assert.False(t, cfg.HSTSEnabled)
	assert.Equal(t, 31536000, cfg.HSTSMaxAge)
	assert.True(t, cfg.HSTSIncludeSubdomains)

	assert.True(t, cfg.CSPEnabled)
	assert.Contains(t, cfg.CSPDirective, "default-src 'self'")

	assert.True(t, cfg.PermissionsPolicyEnabled)
	assert.Contains(t, cfg.PermissionsPolicyDirective, "camera=()")
}

func TestTimeout(t *testing.T) {
	engine := gin.New()
	engine.Use(Timeout(30 * time.Second))
	engine.GET("/stocks", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/stocks", nil))

	assert.Equal(t, "30s", w.Header().Get("X-Request-Timeout"))
}

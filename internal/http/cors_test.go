package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(enabled bool, origins string) *gin.Engine {
	router := gin.New()
	if middleware := createCORSMiddleware(enabled, origins, discardLogger()); middleware != nil {
		router.Use(middleware)
	}
	router.GET("/acme/issuer/did.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "did:web:registry.example:acme:issuer"})
	})
	return router
}

func TestCreateCORSMiddleware(t *testing.T) {
	assert.Nil(t, createCORSMiddleware(false, "*", discardLogger()))
	assert.Nil(t, createCORSMiddleware(true, " , ", discardLogger()))
	assert.NotNil(t, createCORSMiddleware(true, "*", discardLogger()))
	assert.NotNil(t, createCORSMiddleware(true, " https://a.example , https://b.example ", discardLogger()))
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, parseOrigins(" https://a.example ,,https://b.example"))
}

func TestCORSIntegration(t *testing.T) {
	t.Run("Success_WildcardAllowsAnyOrigin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/acme/issuer/did.json", nil)
		req.Header.Set("Origin", "https://wallet.example")
		corsRouter(true, "*").ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Success_ListedOrigin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/acme/issuer/did.json", nil)
		req.Header.Set("Origin", "https://wallet.example")
		corsRouter(true, "https://wallet.example").ServeHTTP(w, req)

		assert.Equal(t, "https://wallet.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Success_NoHeadersWhenDisabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/acme/issuer/did.json", nil)
		req.Header.Set("Origin", "https://wallet.example")
		corsRouter(false, "*").ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Success_PreflightAllowsGetOnly", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/acme/issuer/did.json", nil)
		req.Header.Set("Origin", "https://wallet.example")
		req.Header.Set("Access-Control-Request-Method", "GET")
		corsRouter(true, "*").ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		allowed := w.Header().Get("Access-Control-Allow-Methods")
		assert.Contains(t, allowed, "GET")
		assert.NotContains(t, allowed, "POST")
	})
}

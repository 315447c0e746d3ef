package config

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(resolver *environment.Resolver, host string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/config/stripe", NewConfigHandler(resolver).GetStripeConfig)

	req := httptest.NewRequest(http.MethodGet, "/config/stripe", nil)
	req.Host = host
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetStripeConfig(t *testing.T) {
	resolver := environment.NewResolver("only-you-coaching.com",
		environment.KeySet{PublishableKey: "pk_live_1"},
		environment.KeySet{PublishableKey: "pk_test_1"},
	)

	w := serve(resolver, "only-you-coaching.com")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publishableKey":"pk_live_1","mode":"live"}`, w.Body.String())

	w = serve(resolver, "preview.only-you-coaching.com")
	assert.JSONEq(t, `{"publishableKey":"pk_test_1","mode":"test"}`, w.Body.String())
}

func TestGetStripeConfig_Missing(t *testing.T) {
	resolver := environment.NewResolver("only-you-coaching.com", environment.KeySet{}, environment.KeySet{PublishableKey: "pk_test_1"})

	w := serve(resolver, "only-you-coaching.com")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/billing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubProcessor struct {
	err       error
	payload   string
	signature string
}

func (s *stubProcessor) Process(_ context.Context, payload []byte, sig string) error {
	s.payload, s.signature = string(payload), sig
	return s.err
}

func serve(p Processor, body, signature string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/stripe", NewWebhookHandler(p, zap.NewNop()).Receive)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReceive(t *testing.T) {
	body := `{"id":"evt_1","type":"customer.subscription.updated"}`

	p := &stubProcessor{}
	w := serve(p, body, "t=1,v1=abc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, body, p.payload, "raw body passed through")
	assert.Equal(t, "t=1,v1=abc", p.signature)
}

func TestReceive_Failures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		signature string
		status    int
	}{
		{"missing signature", nil, "", http.StatusBadRequest},
		{"bad signature", fmt.Errorf("%w: no valid signature", billing.ErrInvalidSignature), "t=1,v1=bad", http.StatusBadRequest},
		{"processing failure", errors.New("db down"), "t=1,v1=abc", http.StatusInternalServerError},
		{"malformed event", billing.ErrMalformedEvent, "t=1,v1=abc", http.StatusInternalServerError},
		{"event in flight", billing.ErrEventInFlight, "t=1,v1=abc", http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(&stubProcessor{err: tc.err}, `{}`, tc.signature)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestReceive_TooLarge(t *testing.T) {
	w := serve(&stubProcessor{}, strings.Repeat("a", maxBodyBytes+1), "t=1,v1=abc")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

package plan

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPlanHandler()
	r := gin.New()
	r.GET("/plans", h.ListPlans)
	r.GET("/plans/:planId", h.GetPlan)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListPlans(t *testing.T) {
	r := newRouter()

	var body struct {
		Data []plan.Plan `json:"data"`
	}
	w := get(r, "/plans")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 6)

	w = get(r, "/plans?category=online")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 3)
	for _, p := range body.Data {
		assert.Equal(t, plan.CategoryOnline, p.Category)
	}
}

func TestGetPlan(t *testing.T) {
	r := newRouter()

	w := get(r, "/plans/pro")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"commitment_months":4`)

	w = get(r, "/plans/gold")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// internal/handlers/plan/plan_handler.go
package plan

import (
	"net/http"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/plan"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type PlanHandler struct{}

func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// ListPlans returns the catalog, optionally filtered by ?category=
func (h *PlanHandler) ListPlans(c *gin.Context) {
	category := plan.Category(c.Query("category"))

	plans := []plan.Plan{}
	for _, p := range plan.All() {
		if category == "" || p.Category == category {
			plans = append(plans, p)
		}
	}

	response.Success(c, http.StatusOK, "plans retrieved", plans)
}

// GetPlan returns one plan by id
func (h *PlanHandler) GetPlan(c *gin.Context) {
	p, ok := plan.Lookup(c.Param("planId"))
	if !ok {
		response.NotFound(c, "plan not found")
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", p)
}

package web

import (
	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/services"
	"github.com/gofiber/fiber/v3"
)

const (
	claimsLocal = "claims"
	tokenLocal  = "token"
)

// WorkflowListResponse is the body of GET /workflows.
type WorkflowListResponse struct {
	Workflows  []*services.WorkflowView `json:"workflows"`
	TotalCount int                      `json:"totalCount"`
}

// ActivationResponse is the body returned after activating or deactivating a workflow.
type ActivationResponse struct {
	ID     int64 `json:"id"`
	Active bool  `json:"active"`
}

func claimsOf(c fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsLocal).(*auth.Claims)

	return claims
}

func tokenOf(c fiber.Ctx) string {
	token, _ := c.Locals(tokenLocal).(string)

	return token
}

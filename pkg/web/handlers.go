// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flowcrm/pkg/auth"
	"github.com/dukex/flowcrm/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
}

func NewAPIHandlers(workflowService *services.Workflow) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
	}
}

// Authenticate requires a bearer token issued by issuer and exposes its claims to the handlers.
// The raw token is kept so it can be forwarded to collaborator services.
func Authenticate(issuer *auth.Issuer) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Bearer token is required")
		}

		claims, err := issuer.Parse(token)
		if err != nil {
			return unauthorized(c, "Invalid token")
		}

		c.Locals(claimsLocal, claims)
		c.Locals(tokenLocal, token)

		return c.Next()
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	claims := claimsOf(c)

	workflows, err := h.workflowService.List(c.Context(), claims.TenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(WorkflowListResponse{
		Workflows:  workflows,
		TotalCount: len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), claimsOf(c).TenantID, id, tokenOf(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req services.WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	claims := claimsOf(c)

	created, err := h.workflowService.Create(c.Context(), claims.TenantID, claims.UserID, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateWorkflow replaces the definition of a workflow.
func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	var req services.WorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	claims := claimsOf(c)

	updated, err := h.workflowService.Update(c.Context(), claims.TenantID, claims.UserID, id, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *APIHandlers) setActive(c fiber.Ctx, active bool) error {
	id, err := workflowID(c)
	if err != nil {
		return badRequest(c, "Workflow ID must be a positive integer")
	}

	err = h.workflowService.SetActive(c.Context(), claimsOf(c).TenantID, id, active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ActivationResponse{ID: id, Active: active})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "flowcrm API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "flowcrm API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func workflowID(c fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}

	if id <= 0 {
		return 0, strconv.ErrRange
	}

	return id, nil
}

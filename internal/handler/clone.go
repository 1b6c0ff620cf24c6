package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/sitecloner/api/internal/model"
	"github.com/sitecloner/api/internal/service"
	"github.com/sitecloner/api/internal/session"
	"github.com/sitecloner/api/internal/urlcheck"
	"github.com/sitecloner/api/pkg/response"
)

type CloneHandler struct {
	service   *service.CloneService
	validator *validator.Validate
}

func NewCloneHandler(svc *service.CloneService, v *validator.Validate) *CloneHandler {
	return &CloneHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /clone. It responds with the pending session; the
// pipeline runs asynchronously and is observed through polling.
func (h *CloneHandler) Submit(c *fiber.Ctx) error {
	var req model.CloneRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	sess, err := h.service.SubmitClone(c.Context(), &req)
	if err != nil {
		if errors.Is(err, urlcheck.ErrInvalidURL) || errors.Is(err, urlcheck.ErrDisallowedHost) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, sess)
}

// Status handles GET /clone/:sessionId
func (h *CloneHandler) Status(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return response.ValidationError(c, "Session ID is required", nil)
	}

	sess, err := h.service.GetStatus(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return response.NotFound(c, "Session "+sessionID+" not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, sess)
}

// List handles GET /sessions?page=&page_size=&status=
func (h *CloneHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 10)
	status := c.Query("status")

	result, err := h.service.ListSessions(c.Context(), page, pageSize, status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPagination) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /clone/:sessionId
func (h *CloneHandler) Delete(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return response.ValidationError(c, "Session ID is required", nil)
	}

	result, err := h.service.DeleteSession(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return response.NotFound(c, "Session "+sessionID+" not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}

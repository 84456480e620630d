package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cartoprint/api/internal/model"
	"github.com/cartoprint/api/internal/service"
	"github.com/cartoprint/api/pkg/response"
)

type PrintHandler struct {
	service   *service.PrintService
	validator *validator.Validate
}

func NewPrintHandler(svc *service.PrintService, v *validator.Validate) *PrintHandler {
	return &PrintHandler{
		service:   svc,
		validator: v,
	}
}

// Submit handles POST /api/print
func (h *PrintHandler) Submit(c *fiber.Ctx) error {
	var spec model.PrintSpec
	if err := c.BodyParser(&spec); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&spec); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.SubmitPrint(c.Context(), &spec)
	if err != nil {
		// Spec configuration errors (unknown layer type, missing tile grid,
		// unresolvable projection) are client errors.
		if _, ok := err.(*service.QueueError); ok {
			return response.ServiceError(c, err.Error())
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/print/status/:jobId
func (h *PrintHandler) Status(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/print/result/:jobId
func (h *PrintHandler) Result(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job not completed" {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Image handles GET /api/print/result/:jobId/image
func (h *PrintHandler) Image(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	if _, err := h.service.GetResult(c.Context(), jobID); err != nil {
		if err.Error() == "job not found" {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job not completed" {
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	data, err := h.service.GetImage(c.Context(), jobID)
	if err != nil {
		if err.Error() == "image not found" {
			return response.NotFound(c, "Image not found")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

func parseJobID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("jobId"), 10, 64)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

package ops

import (
	"errors"
	"strconv"

	"case-reconciler/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRunLimit = 20

// Handler handles HTTP requests for run history and archived case records.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the ops routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	runs := app.Group("/runs")
	runs.Get("/", h.HandleListRuns)
	runs.Get("/:id", h.HandleGetRun)

	cases := app.Group("/cases")
	cases.Get("/", h.HandleListCases)
	cases.Get("/:id", h.HandleGetCase)
}

// HandleListRuns returns the most recent reconciliation runs.
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	limit := defaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	runs, err := h.service.RecentRuns(c.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database not configured")
		}
		l.Error("Failed to list runs", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list runs")
	}
	return c.JSON(runs)
}

// HandleGetRun returns a single run by its run id.
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	runID := c.Params("id")

	run, err := h.service.Run(c.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database not configured")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "run not found")
		}
		l.Error("Failed to fetch run", zap.String("run_id", runID), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch run")
	}
	return c.JSON(run)
}

// HandleListCases returns the request ids with an archived raw record.
func (h *Handler) HandleListCases(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	ids, err := h.service.ArchivedCases(c.Context())
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "storage not configured")
		}
		l.Error("Failed to list archived cases", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list archived cases")
	}
	return c.JSON(fiber.Map{"cases": ids})
}

// HandleGetCase streams the archived raw record for one request id.
func (h *Handler) HandleGetCase(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	requestID := c.Params("id")

	reader, err := h.service.ArchivedCase(c.Context(), requestID)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "storage not configured")
		}
		l.Error("Failed to fetch archived case", zap.String("request_id", requestID), zap.Error(err))
		return fiber.NewError(fiber.StatusNotFound, "case not found")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendStream(reader)
}

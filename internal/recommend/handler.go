package recommend

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UnavailableMessage is shown when the ranking service cannot answer.
const UnavailableMessage = "The recommendation service is unavailable right now. Please try again."

type Handler struct {
	recommender Recommender
	logger      *zap.Logger
}

func NewHandler(r Recommender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{recommender: r, logger: logger}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/api/recommend", h.recommend)
	r.Get("/api/recommend/available", h.available)
}

func (h *Handler) recommend(c *fiber.Ctx) error {
	req := new(Request)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}
	resp, err := h.recommender.Recommend(c.UserContext(), *req)
	if err != nil {
		return WriteError(c, err)
	}
	return c.JSON(resp)
}

func (h *Handler) available(c *fiber.Ctx) error {
	ok, err := h.recommender.Available(c.UserContext())
	if err != nil {
		h.logger.Warn("availability check failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{"available": ok && err == nil})
}

// WriteError maps a Recommender error onto a response.
func WriteError(c *fiber.Ctx, err error) error {
	var rerr *RequestError
	switch {
	case errors.As(err, &rerr):
		if len(rerr.Errors) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": rerr.Errors})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": rerr.Error()})
	case errors.Is(err, ErrUpstreamUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": UnavailableMessage})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
}

package compare

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// BasketHeader may carry the basket id instead of the basketId query parameter.
const BasketHeader = "X-Basket-ID"

// Handler exposes the basket store over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(s *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: s, logger: logger}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/compare", h.list)
	r.Get("/api/compare/max", h.max)
	r.Post("/api/compare/basket", h.newBasket)
	r.Post("/api/compare/add", h.add)
	r.Put("/api/compare/:itemId", h.update)
	r.Delete("/api/compare/:itemId", h.remove)
}

// RegisterProtectedRoutes mounts operator endpoints; r is expected to sit
// behind authentication.
func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Get("/compare/stats", h.stats)
	r.Get("/compare/counts", h.counts)
}

type basketResponse struct {
	BasketID string `json:"basketId"`
	Items    []Item `json:"items"`
	Count    int    `json:"count"`
	MaxItems int    `json:"maxItems"`
	CanAdd   bool   `json:"canAdd"`
	feeding.CalorieTarget
}

func (h *Handler) list(c *fiber.Ctx) error {
	return h.respondBasket(c, basketIDFromCtx(c))
}

func (h *Handler) max(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"maxItems": h.service.MaxItems()})
}

func (h *Handler) newBasket(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"basketId": uuid.NewString()})
}

func (h *Handler) add(c *fiber.Ctx) error {
	basketID := basketIDFromCtx(c)
	payload := new(Facts)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if _, err := h.service.Add(c.UserContext(), basketID, *payload); err != nil {
		return h.writeError(c, err)
	}
	return h.respondBasket(c, basketID)
}

func (h *Handler) update(c *fiber.Ctx) error {
	basketID := basketIDFromCtx(c)
	payload := new(PatchRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	patch, err := payload.Parse()
	if err != nil {
		return h.writeError(c, err)
	}
	if _, err := h.service.Update(c.UserContext(), basketID, c.Params("itemId"), patch); err != nil {
		return h.writeError(c, err)
	}
	return h.respondBasket(c, basketID)
}

func (h *Handler) remove(c *fiber.Ctx) error {
	basketID := basketIDFromCtx(c)
	if _, err := h.service.Remove(c.UserContext(), basketID, c.Params("itemId")); err != nil {
		return h.writeError(c, err)
	}
	return h.respondBasket(c, basketID)
}

func (h *Handler) stats(c *fiber.Ctx) error {
	s, err := h.service.Stats(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(s)
}

func (h *Handler) counts(c *fiber.Ctx) error {
	ids := make([]string, 0)
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "ids is required"})
	}
	counts, err := h.service.Counts(c.UserContext(), ids)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(counts)
}

// respondBasket writes the current basket, derived against the dailyCalories
// query parameter or the fallback target.
func (h *Handler) respondBasket(c *fiber.Ctx, basketID string) error {
	target, err := targetFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	items, err := h.service.List(c.UserContext(), basketID, target)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(basketResponse{
		BasketID:      basketID,
		Items:         items,
		Count:         len(items),
		MaxItems:      h.service.MaxItems(),
		CanAdd:        len(items) < h.service.MaxItems(),
		CalorieTarget: target,
	})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": verr.Error(),
			"errors":  fiber.Map{verr.Field: verr.Reason},
		})
	case errors.Is(err, ErrMissingBasketID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrCapacityExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":  fmt.Sprintf("comparison basket holds at most %d items", h.service.MaxItems()),
			"maxItems": h.service.MaxItems(),
		})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	default:
		h.logger.Error("compare request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}

func basketIDFromCtx(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Query("basketId")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Get(BasketHeader))
}

func targetFromQuery(c *fiber.Ctx) (feeding.CalorieTarget, error) {
	raw := strings.TrimSpace(c.Query("dailyCalories"))
	if raw == "" {
		return feeding.Fallback(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return feeding.CalorieTarget{}, fmt.Errorf("invalid dailyCalories %q", raw)
	}
	return feeding.ResolveTarget(&v), nil
}

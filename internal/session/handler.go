package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/ranking"
	"github.com/wichananm65/catfood-compare/internal/recommend"
)

// Handler drives pages over HTTP. Every response carries the full page view,
// including on failure, so the client can always re-render.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHandler(m *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: m, logger: logger}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	g := r.Group("/api/session/:basketId")
	g.Get("/", h.view)
	g.Post("/recommend", h.recommend)
	g.Put("/view", h.selectView)
	g.Post("/compare", h.addToCompare)
	g.Patch("/compare/:id/draft", h.editDraft)
	g.Post("/compare/:id/save", h.save)
	g.Delete("/compare/:id", h.remove)
}

type selectViewRequest struct {
	View string `json:"view"`
}

type addRequest struct {
	Key string `json:"key"`
}

func (h *Handler) page(c *fiber.Ctx) (*Page, error) {
	p, err := h.manager.Page(c.UserContext(), c.Params("basketId"))
	if err != nil {
		if errors.Is(err, compare.ErrMissingBasketID) {
			return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		h.logger.Error("open page failed", zap.Error(err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load the comparison list"})
	}
	return p, nil
}

func (h *Handler) view(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	return h.respond(c, p, p.Refresh(c.UserContext()))
}

func (h *Handler) recommend(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	req := new(recommend.Request)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}
	return h.respond(c, p, p.Recommend(c.UserContext(), *req))
}

func (h *Handler) selectView(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	body := new(selectViewRequest)
	if err := c.BodyParser(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	return h.respond(c, p, p.Select(ranking.View(body.View)))
}

func (h *Handler) addToCompare(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	body := new(addRequest)
	if err := c.BodyParser(body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	return h.respond(c, p, p.AddToCompare(c.UserContext(), ranking.Key(body.Key)))
}

// editDraft takes a JSON object of field name to raw value. Values may be
// strings, numbers or null.
func (h *Handler) editDraft(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	fields := map[string]compare.RawField{}
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	raw := make(map[string]string, len(fields))
	for name, f := range fields {
		raw[name] = f.Raw
	}
	return h.respond(c, p, p.EditFields(c.Params("id"), raw))
}

func (h *Handler) save(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	return h.respond(c, p, p.Save(c.UserContext(), c.Params("id")))
}

func (h *Handler) remove(c *fiber.Ctx) error {
	p, err := h.page(c)
	if p == nil {
		return err
	}
	return h.respond(c, p, p.Remove(c.UserContext(), c.Params("id")))
}

func (h *Handler) respond(c *fiber.Ctx, p *Page, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("page action failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(p.View())
}

func statusOf(err error) int {
	var (
		verr *compare.ValidationError
		rerr *recommend.RequestError
	)
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &verr), errors.As(err, &rerr), errors.Is(err, ranking.ErrUnknownView):
		return fiber.StatusBadRequest
	case errors.Is(err, compare.ErrCapacityExceeded), errors.Is(err, ranking.ErrNoResults):
		return fiber.StatusConflict
	case errors.Is(err, compare.ErrNotFound), errors.Is(err, ErrUnknownItem):
		return fiber.StatusNotFound
	case errors.Is(err, recommend.ErrUpstreamUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// Package session keeps the state of one comparison page per basket: the
// loaded recommendations and active ordering, the basket board with its
// unsaved edits, and the calorie target everything is derived against.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/feeding"
	"github.com/wichananm65/catfood-compare/internal/presenter"
	"github.com/wichananm65/catfood-compare/internal/ranking"
	"github.com/wichananm65/catfood-compare/internal/recommend"
)

var ErrUnknownItem = errors.New("recommendation not found in the current results")

const noticeUnknownItem = "That product is no longer in the current results."

// Calories summarises the calorie computation behind the current results.
type Calories struct {
	feeding.CalorieTarget
	RerCalories                  float64 `json:"rerCalories,omitempty"`
	LifeFactor                   float64 `json:"lifeFactor,omitempty"`
	LifeStageDescription         string  `json:"lifeStageDescription,omitempty"`
	FormulaDescription           string  `json:"formulaDescription,omitempty"`
	CalculationSourceDescription string  `json:"calculationSourceDescription,omitempty"`
}

// View is everything a page renders.
type View struct {
	BasketID        string                        `json:"basketId"`
	State           ranking.State                 `json:"state"`
	ActiveView      ranking.View                  `json:"activeView"`
	Calories        Calories                      `json:"calories"`
	Recommendations []presenter.RecommendationRow `json:"recommendations"`
	ReviewNote      string                        `json:"reviewNote,omitempty"`
	EmptyMessage    string                        `json:"emptyMessage,omitempty"`
	Slots           []presenter.Slot              `json:"slots"`
	Table           []presenter.TableRow          `json:"table,omitempty"`
	ShowTable       bool                          `json:"showTable"`
	Count           int                           `json:"count"`
	MaxItems        int                           `json:"maxItems"`
	CanAdd          bool                          `json:"canAdd"`
	Notice          string                        `json:"notice,omitempty"`
}

// Page is one basket's page state. Its methods serialize on the page, so
// events for one basket are handled one at a time.
type Page struct {
	mu          sync.Mutex
	basketID    string
	recommender recommend.Recommender
	selector    *ranking.Selector
	board       *presenter.Board
	format      presenter.Formatter
	logger      *zap.Logger

	calories Calories
	notice   string
	searches uint64

	// lastSeen is unix nanoseconds, readable without the page lock.
	lastSeen atomic.Int64
}

func newPage(basketID string, board *presenter.Board, r recommend.Recommender, format presenter.Formatter, logger *zap.Logger) *Page {
	return &Page{
		basketID:    basketID,
		recommender: r,
		selector:    ranking.NewSelector(logger),
		board:       board,
		format:      format,
		logger:      logger,
		calories:    Calories{CalorieTarget: feeding.Fallback()},
	}
}

// Recommend runs a search. The upstream call runs without holding the page,
// so the page stays usable meanwhile; when searches overlap, the most
// recently started one wins. On failure the previous results, calorie target
// and basket stay as they were and a notice explains what happened.
func (p *Page) Recommend(ctx context.Context, req recommend.Request) error {
	p.mu.Lock()
	p.searches++
	seq := p.searches
	p.notice = ""
	p.mu.Unlock()

	resp, err := p.recommender.Recommend(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.searches {
		p.logger.Debug("discarding superseded search result", zap.Uint64("search", seq), zap.Error(err))
		return err
	}
	if err != nil {
		var rerr *recommend.RequestError
		if errors.As(err, &rerr) {
			p.notice = rerr.Error()
		} else {
			p.notice = recommend.UnavailableMessage
		}
		return err
	}

	p.selector.Load(resp)
	p.calories = Calories{
		CalorieTarget:                resp.Target(),
		RerCalories:                  resp.RerCalories,
		LifeFactor:                   resp.LifeFactor,
		LifeStageDescription:         resp.LifeStageDescription,
		FormulaDescription:           resp.FormulaDescription,
		CalculationSourceDescription: resp.CalculationSourceDescription,
	}
	return p.board.Refresh(ctx, p.calories.CalorieTarget)
}

// Select switches the displayed ordering without calling upstream.
func (p *Page) Select(v ranking.View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""
	return p.selector.Select(v)
}

// AddToCompare adds the loaded recommendation identified by key.
func (p *Page) AddToCompare(ctx context.Context, key ranking.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""

	it, ok := p.selector.Lookup(key)
	if !ok {
		p.notice = noticeUnknownItem
		return ErrUnknownItem
	}
	err := p.board.Add(ctx, presenter.FactsFor(it), p.calories.CalorieTarget)
	var verr *compare.ValidationError
	switch {
	case errors.Is(err, compare.ErrCapacityExceeded):
		p.notice = fmt.Sprintf("The comparison list holds at most %d products.", p.board.Limit())
	case errors.As(err, &verr):
		p.notice = verr.Error()
	}
	return err
}

// Edit stores an unsaved value for one field of a slot.
func (p *Page) Edit(id, field, raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""
	return p.board.Edit(id, field, raw)
}

// EditFields stores unsaved values for several fields of a slot. Every name
// is checked first, so a bad name leaves the slot's drafts untouched.
func (p *Page) EditFields(id string, raw map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""

	names := make([]string, 0, len(raw))
	for name := range raw {
		if !compare.IsEditable(name) {
			return &compare.ValidationError{Field: name, Reason: "unknown field"}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.board.Edit(id, name, raw[name]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) Save(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""
	return p.board.Save(ctx, id, p.calories.CalorieTarget)
}

func (p *Page) Remove(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notice = ""
	return p.board.Remove(ctx, id, p.calories.CalorieTarget)
}

// Refresh reloads the basket, picking up changes made elsewhere.
func (p *Page) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.Refresh(ctx, p.calories.CalorieTarget)
}

// View renders the page.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	table, show := p.board.Table()
	return View{
		BasketID:        p.basketID,
		State:           p.selector.State(),
		ActiveView:      p.selector.Active(),
		Calories:        p.calories,
		Recommendations: presenter.RecommendationRows(p.selector.Items(), p.board.Count(), p.board.Limit(), p.format),
		ReviewNote:      p.selector.Note(),
		EmptyMessage:    p.selector.EmptyMessage(),
		Slots:           p.board.Slots(),
		Table:           table,
		ShowTable:       show,
		Count:           p.board.Count(),
		MaxItems:        p.board.Limit(),
		CanAdd:          p.board.CanAdd(),
		Notice:          p.notice,
	}
}

func (p *Page) touch(now time.Time) {
	p.lastSeen.Store(now.UnixNano())
}

func (p *Page) idleSince() time.Time {
	return time.Unix(0, p.lastSeen.Load())
}

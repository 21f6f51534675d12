package ranking

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/recommend"
)

// State of the result list.
type State string

const (
	StateEmpty  State = "EMPTY_RESULTS"
	StateLoaded State = "RESULTS_LOADED"
)

// DefaultEmptyMessage is shown when a search returns nothing and upstream
// gave no explanation.
const DefaultEmptyMessage = "No results found. Try a different search."

var ErrNoResults = errors.New("no recommendation results loaded")

// Selector tracks which ordering of the latest results is shown. It is not
// safe for concurrent use; callers serialize access per page.
type Selector struct {
	set    *Set
	active View
	note   string
	loaded bool
	logger *zap.Logger
}

func NewSelector(logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{active: ViewRank, logger: logger}
}

// Load replaces the results with a completed upstream response and shows
// the rank ordering.
func (s *Selector) Load(resp recommend.Response) {
	s.set = NewSet(resp, s.logger)
	s.note = resp.ReviewSortNote
	s.active = ViewRank
	s.loaded = true
}

// Select switches the active ordering. It fails with ErrNoResults while the
// result list is empty or v is unknown, and leaves the active view unchanged.
func (s *Selector) Select(v View) error {
	v, err := ParseView(string(v))
	if err != nil {
		return err
	}
	if s.State() == StateEmpty {
		return ErrNoResults
	}
	s.active = v
	return nil
}

func (s *Selector) State() State {
	if s.set.Len() == 0 {
		return StateEmpty
	}
	return StateLoaded
}

// Active is the selected view; RANK until the user picks another.
func (s *Selector) Active() View {
	return s.active
}

// Items returns the active ordering; empty while no results are loaded.
func (s *Selector) Items() []recommend.Item {
	if s.State() == StateEmpty {
		return []recommend.Item{}
	}
	return s.set.Ordered(s.active)
}

// Note is the review-sort caveat, only while the review view is active.
func (s *Selector) Note() string {
	if s.State() == StateEmpty || s.active != ViewReview {
		return ""
	}
	return s.note
}

// EmptyMessage explains an empty result list after a completed search. It
// is blank before the first search and while results are shown.
func (s *Selector) EmptyMessage() string {
	if !s.loaded || s.State() == StateLoaded {
		return ""
	}
	if s.note != "" {
		return s.note
	}
	return DefaultEmptyMessage
}

// Lookup finds a loaded item by key.
func (s *Selector) Lookup(k Key) (recommend.Item, bool) {
	return s.set.Lookup(k)
}

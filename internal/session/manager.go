package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/presenter"
	"github.com/wichananm65/catfood-compare/internal/recommend"
)

// Config tunes the page manager.
type Config struct {
	MaxItems      int
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Format        presenter.Formatter
}

// Manager owns the live pages, keyed by basket id, and evicts idle ones.
// Evicting a page only drops unsaved drafts and loaded results; the basket
// itself lives in the store.
type Manager struct {
	mu    sync.Mutex
	pages map[string]*Page

	cfg         Config
	basket      presenter.Basket
	recommender recommend.Recommender
	logger      *zap.Logger
	now         func() time.Time

	active  prometheus.Gauge
	evicted prometheus.Counter
}

func NewManager(cfg Config, basket presenter.Basket, r recommend.Recommender, logger *zap.Logger, reg prometheus.Registerer) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = compare.MaxItems
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	m := &Manager{
		pages:       map[string]*Page{},
		cfg:         cfg,
		basket:      basket,
		recommender: r,
		logger:      logger,
		now:         time.Now,
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "catfood",
			Subsystem: "session",
			Name:      "pages_active",
			Help:      "Live comparison pages.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catfood",
			Subsystem: "session",
			Name:      "pages_evicted_total",
			Help:      "Pages dropped after sitting idle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.evicted)
	}
	return m
}

// Page returns the page for basketID, creating and loading it on first use.
func (m *Manager) Page(ctx context.Context, basketID string) (*Page, error) {
	basketID = strings.TrimSpace(basketID)
	if basketID == "" {
		return nil, compare.ErrMissingBasketID
	}

	m.mu.Lock()
	p, ok := m.pages[basketID]
	m.mu.Unlock()
	if ok {
		p.touch(m.now())
		return p, nil
	}

	logger := m.logger.With(zap.String("basketId", basketID))
	board := presenter.NewBoard(m.basket, basketID, m.cfg.MaxItems, m.cfg.Format, logger)
	fresh := newPage(basketID, board, m.recommender, m.cfg.Format, logger)
	if err := fresh.Refresh(ctx); err != nil {
		return nil, err
	}
	fresh.touch(m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[basketID]; ok {
		return p, nil
	}
	m.pages[basketID] = fresh
	m.active.Set(float64(len(m.pages)))
	logger.Debug("page opened")
	return fresh, nil
}

// Len is the number of live pages.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Sweep drops pages idle for longer than the configured TTL and returns how
// many were dropped.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.pages {
		if p.idleSince().Before(cutoff) {
			delete(m.pages, id)
			n++
		}
	}
	if n > 0 {
		m.evicted.Add(float64(n))
		m.active.Set(float64(len(m.pages)))
		m.logger.Info("idle pages evicted", zap.Int("evicted", n), zap.Int("remaining", len(m.pages)))
	}
	return n
}

// Run sweeps on the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

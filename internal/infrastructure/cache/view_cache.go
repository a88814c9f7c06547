// Package cache keeps per-session view state between HTTP requests.
package cache

import (
	"context"
	"sync"
	"time"

	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/session"
	"vinoteka/pkg/logger"
)

// Config configures a ViewCache.
type Config struct {
	// IdleTTL evicts the views of a session not touched for this long.
	IdleTTL time.Duration
	// SweepInterval is the janitor period. Defaults to IdleTTL/4.
	SweepInterval time.Duration
	// Sessions, when set, is swept of sessions idle longer than SessionTTL.
	Sessions   session.Store
	SessionTTL time.Duration
}

type closer interface{ Close() }

type sessionViews struct {
	managers map[string]*entitymgr.Manager
	queries  map[string]closer
	lastUsed time.Time
}

func (v *sessionViews) close() {
	for _, m := range v.managers {
		m.Close()
	}
	for _, q := range v.queries {
		q.Close()
	}
}

// ViewCache holds the entity managers and list queries of each session,
// so a manager's items, query and pending confirmation survive across
// requests. Views are evicted on logout and after IdleTTL.
type ViewCache struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu    sync.Mutex
	views map[string]*sessionViews

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// New creates a ViewCache. The janitor runs only after Start.
func New(cfg Config, log *logger.Logger) *ViewCache {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTTL / 4
	}
	if log == nil {
		log = logger.Default()
	}
	return &ViewCache{
		cfg:   cfg,
		log:   log.WithComponent("viewcache"),
		now:   time.Now,
		views: make(map[string]*sessionViews),
	}
}

func (c *ViewCache) touchLocked(sessionID string) *sessionViews {
	v, ok := c.views[sessionID]
	if !ok {
		v = &sessionViews{
			managers: make(map[string]*entitymgr.Manager),
			queries:  make(map[string]closer),
		}
		c.views[sessionID] = v
	}
	v.lastUsed = c.now()
	return v
}

// Manager returns the session's manager for entity, building it on first
// use.
func (c *ViewCache) Manager(sessionID, entity string, build func() (*entitymgr.Manager, error)) (*entitymgr.Manager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.touchLocked(sessionID)
	if m, ok := v.managers[entity]; ok {
		return m, nil
	}
	m, err := build()
	if err != nil {
		return nil, err
	}
	v.managers[entity] = m
	return m, nil
}

// View returns the session's view stored under key, building it on first
// use. The value must be a *listquery.Query or anything else with Close.
func View[T closer](c *ViewCache, sessionID, key string, build func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.touchLocked(sessionID)
	if q, ok := v.queries[key].(T); ok {
		return q
	}
	q := build()
	v.queries[key] = q
	return q
}

// Evict drops every view of a session.
func (c *ViewCache) Evict(sessionID string) {
	c.mu.Lock()
	v, ok := c.views[sessionID]
	delete(c.views, sessionID)
	c.mu.Unlock()
	if ok {
		v.close()
	}
}

// DropEntity drops the managers of entity in every session. Used when its
// definition is reloaded.
func (c *ViewCache) DropEntity(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.views {
		if m, ok := v.managers[entity]; ok {
			m.Close()
			delete(v.managers, entity)
		}
	}
}

// Len returns the number of sessions holding views.
func (c *ViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// Sweep evicts sessions idle since before now-IdleTTL and returns how many.
func (c *ViewCache) Sweep(ctx context.Context) int {
	cutoff := c.now().Add(-c.cfg.IdleTTL)

	c.mu.Lock()
	var idle []*sessionViews
	for sid, v := range c.views {
		if v.lastUsed.Before(cutoff) {
			idle = append(idle, v)
			delete(c.views, sid)
		}
	}
	c.mu.Unlock()

	for _, v := range idle {
		v.close()
	}

	if c.cfg.Sessions != nil && c.cfg.SessionTTL > 0 {
		n, err := c.cfg.Sessions.DeleteIdle(ctx, c.now().Add(-c.cfg.SessionTTL))
		if err != nil {
			c.log.WithContext(ctx).Warnw("session sweep failed", "error", err)
		} else if n > 0 {
			c.log.WithContext(ctx).Infow("idle sessions deleted", "count", n)
		}
	}
	if len(idle) > 0 {
		c.log.WithContext(ctx).Debugw("idle views evicted", "count", len(idle))
	}
	return len(idle)
}

// Start runs the janitor until Stop or ctx ends.
func (c *ViewCache) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
	c.log.Info("view cache janitor started")
}

// Stop stops the janitor and closes every view.
func (c *ViewCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()

	c.mu.Lock()
	views := c.views
	c.views = make(map[string]*sessionViews)
	c.mu.Unlock()
	for _, v := range views {
		v.close()
	}
}

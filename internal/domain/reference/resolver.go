// Package reference resolves select fields to their option lists. Each
// field names its options endpoint explicitly; nothing is derived from
// field names.
package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vinoteka/internal/core/apperror"
	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// DefaultTTL bounds how stale a cached option list may get.
const DefaultTTL = 30 * time.Second

// Option is one candidate value of a select field.
type Option struct {
	Value id.ID  `json:"value"`
	Label string `json:"label"`
}

// Options is an option list in server order.
type Options []Option

// Label returns the label of v, or its id when unknown.
func (o Options) Label(v id.ID) string {
	for _, opt := range o {
		if opt.Value == v {
			return opt.Label
		}
	}
	return v.String()
}

// Loader fetches the raw records of an options endpoint. The request
// language is taken from ctx.
type Loader interface {
	Options(ctx context.Context, endpoint string) ([]metadata.Record, error)
}

type cacheKey struct {
	endpoint string
	lang     string
}

type cacheEntry struct {
	records []metadata.Record
	expires time.Time
}

// Resolver loads and caches option lists per endpoint and language.
type Resolver struct {
	loader Loader
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

func NewResolver(loader Loader, ttl time.Duration, log *logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		loader: loader,
		ttl:    ttl,
		log:    log.WithComponent("reference"),
		now:    time.Now,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

// Resolve loads the options of every select and multiselect field of def,
// concurrently. The result is keyed by field name.
func (r *Resolver) Resolve(ctx context.Context, def metadata.EntityDef) (map[string]Options, error) {
	fields := def.OptionFields()
	out := make(map[string]Options, len(fields))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	for _, f := range fields {
		eg.Go(func() error {
			opts, err := r.Options(egCtx, *f.Options)
			if err != nil {
				return apperror.Normalize(err).Scoped("load options for", f.Label)
			}
			mu.Lock()
			out[f.Name] = opts
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Options returns the option list of one source.
func (r *Resolver) Options(ctx context.Context, src metadata.OptionsSource) (Options, error) {
	records, err := r.records(ctx, src.Endpoint)
	if err != nil {
		return nil, err
	}
	l := lang.Parse(appctx.GetLanguage(ctx, lang.Default.String()))

	opts := make(Options, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Get(src.Value())
		v, ok := id.FromAny(raw)
		if !ok {
			continue
		}
		opts = append(opts, Option{Value: v, Label: labelOf(rec, src.Label(), v, l)})
	}
	return opts, nil
}

func (r *Resolver) records(ctx context.Context, endpoint string) ([]metadata.Record, error) {
	key := cacheKey{endpoint: endpoint, lang: appctx.GetLanguage(ctx, lang.Default.String())}

	r.mu.Lock()
	if e, ok := r.cache[key]; ok && r.now().Before(e.expires) {
		r.mu.Unlock()
		return e.records, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key.endpoint+"|"+key.lang, func() (any, error) {
		records, err := r.loader.Options(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = cacheEntry{records: records, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
		r.log.WithContext(ctx).Debugw("options loaded", "endpoint", endpoint, "count", len(records))
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]metadata.Record), nil
}

// InvalidateCollection drops cached lists served under collection, e.g.
// "/categories" drops "/categories/all" in every language.
func (r *Resolver) InvalidateCollection(collection string) {
	prefix := strings.TrimSuffix(collection, "/") + "/"
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if strings.HasPrefix(k.endpoint, prefix) || k.endpoint == collection {
			delete(r.cache, k)
		}
	}
}

// Endpoints lists the cached endpoints, for diagnostics.
func (r *Resolver) Endpoints() []string {
	r.mu.Lock()
	seen := make(map[string]struct{}, len(r.cache))
	for k := range r.cache {
		seen[k.endpoint] = struct{}{}
	}
	r.mu.Unlock()

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// labelOf reads the label key; a per-language object yields the request
// language's text when present.
func labelOf(rec metadata.Record, key string, v id.ID, l lang.Language) string {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return v.String()
	}
	switch t := raw.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t[l.String()].(string); ok && s != "" {
			return s
		}
		for _, alt := range lang.All {
			if s, ok := t[alt.String()].(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprint(raw)
}

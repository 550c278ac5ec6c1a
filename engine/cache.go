package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/whisper-server/component"
	"github.com/kbukum/whisper-server/errors"
	"github.com/kbukum/whisper-server/logger"
	"github.com/kbukum/whisper-server/observability"
	"github.com/kbukum/whisper-server/resilience"
)

// Policy chooses which cached engine is evicted when the cache is full.
type Policy string

const (
	// PolicyLRU evicts the least recently acquired engine.
	PolicyLRU Policy = "lru"
	// PolicyFIFO evicts the engine that was inserted first, ignoring hits.
	PolicyFIFO Policy = "fifo"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Capacity is the maximum number of cached engines.
	Capacity int
	Policy   Policy
	// Device is the resolved device every engine is built for.
	Device Device
	// LoadTimeout bounds one construction. Zero means no bound.
	LoadTimeout time.Duration
	// QueueTimeout bounds how long a transcription waits for a free slot
	// on its engine.
	QueueTimeout time.Duration
	// Preload lists identifiers constructed when the cache starts.
	Preload []string
}

type entry struct {
	id       string
	spec     Spec
	engine   Engine
	bulkhead *resilience.Bulkhead
	lastUsed uint64
	inserted uint64

	// Guarded by Cache.mu. idle is closed once the entry is evicted and no
	// handle holds it.
	leases  int
	evicted bool
	idle    chan struct{}

	// Held for reading by running transcriptions and for writing by release.
	mu       sync.RWMutex
	released bool
}

type call struct {
	done  chan struct{}
	entry *entry
	err   error
	// Callers waiting on the construction. Each gets a lease when it settles.
	waiters int
}

// Cache hands out engines by identifier. Each identifier is constructed at
// most once at a time; concurrent requests for it share that construction.
// An identifier is either cached or in flight, never both.
type Cache struct {
	catalog *Catalog
	load    Loader
	opts    CacheOptions
	log     *logger.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*call
	seq      uint64
	// Evicted engines whose release is still running.
	evicting map[*entry]chan struct{}
}

var _ component.Component = (*Cache)(nil)

// NewCache creates an empty cache. metrics may be nil.
func NewCache(catalog *Catalog, load Loader, opts CacheOptions, log *logger.Logger, metrics *observability.Metrics) *Cache {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLRU
	}
	if opts.Device == "" || opts.Device == DeviceAuto {
		opts.Device = ResolveDevice(string(opts.Device))
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		catalog:  catalog,
		load:     load,
		opts:     opts,
		log:      log.WithComponent("engine-cache"),
		metrics:  metrics,
		entries:  make(map[string]*entry),
		inflight: make(map[string]*call),
		evicting: make(map[*entry]chan struct{}),
	}
}

// Catalog returns the supported identifiers.
func (c *Cache) Catalog() *Catalog { return c.catalog }

// Device returns the device engines are built for.
func (c *Cache) Device() Device { return c.opts.Device }

// Acquire returns a ready engine for id, constructing it if needed. An
// unsupported id fails with UNSUPPORTED_MODEL before the cache is touched.
// A caller whose ctx ends stops waiting, but the construction it may have
// started still completes and is cached.
//
// The handle keeps its engine open until Release, even if the entry is
// evicted in the meantime. Callers must Release every handle.
func (c *Cache) Acquire(ctx context.Context, id string) (*Handle, error) {
	if !c.catalog.Supported(id) {
		return nil, errors.UnsupportedModel(id, c.catalog.IDs())
	}

	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.touchLocked(e)
		e.leases++
		c.mu.Unlock()
		c.metrics.CacheHit()
		return c.handle(e), nil
	}
	cl, ok := c.inflight[id]
	if !ok {
		cl = &call{done: make(chan struct{})}
		c.inflight[id] = cl
		c.publishLocked()
		go c.construct(context.WithoutCancel(ctx), id, cl)
	}
	cl.waiters++
	c.mu.Unlock()
	c.metrics.CacheMiss()

	select {
	case <-cl.done:
		if cl.err != nil {
			return nil, cl.err
		}
		return c.handle(cl.entry), nil
	case <-ctx.Done():
		c.abandon(cl)
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Timeout("engine load").WithDetail("model", id)
		}
		return nil, ctx.Err()
	}
}

// abandon gives up a waiter's claim on cl. A construction that already
// succeeded leased the entry to the waiter, so that lease is returned.
func (c *Cache) abandon(cl *call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl.entry != nil {
		c.unleaseLocked(cl.entry)
		return
	}
	cl.waiters--
}

// construct builds the engine for id outside the lock and settles cl.
func (c *Cache) construct(ctx context.Context, id string, cl *call) {
	if c.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.LoadTimeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanEngineLoad)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrModel, id)

	spec := c.specFor(id)
	c.log.Info("loading engine", logger.Fields(
		logger.FieldModel, id,
		"model_ref", spec.Model,
		"device", string(spec.Device),
	))

	start := time.Now()
	eng, err := c.safeLoad(ctx, spec)
	elapsed := time.Since(start)

	if err != nil {
		observability.SetSpanError(ctx, err)
		c.metrics.CacheLoad("error", elapsed)
		c.log.Error("engine load failed", logger.Fields(
			logger.FieldModel, id,
			logger.FieldError, err.Error(),
			logger.FieldDuration, elapsed.Milliseconds(),
		))

		c.mu.Lock()
		delete(c.inflight, id)
		c.publishLocked()
		c.mu.Unlock()

		cl.err = errors.EngineLoadFailed(id, err)
		close(cl.done)
		return
	}

	e := &entry{
		id:     id,
		spec:   spec,
		engine: eng,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          id,
			MaxConcurrent: spec.CostHint,
			MaxWait:       c.opts.QueueTimeout,
			OnReject:      c.slotRejected,
		}),
	}

	c.mu.Lock()
	var victim *entry
	var released chan struct{}
	if len(c.entries) >= c.opts.Capacity {
		victim = c.victimLocked()
		delete(c.entries, victim.id)
		c.evictLocked(victim)
		released = make(chan struct{})
		c.evicting[victim] = released
	}
	c.seq++
	e.inserted, e.lastUsed = c.seq, c.seq
	e.leases = cl.waiters
	c.entries[id] = e
	delete(c.inflight, id)
	cl.entry = e
	c.publishLocked()
	c.mu.Unlock()

	c.metrics.CacheLoad("ok", elapsed)
	c.log.Info("engine loaded", logger.Fields(
		logger.FieldModel, id,
		logger.FieldDuration, elapsed.Milliseconds(),
	))

	close(cl.done)

	if victim != nil {
		c.metrics.CacheEviction()
		c.log.Info("evicted engine", logger.Fields(logger.FieldModel, victim.id, "admitted", id))
		c.release(context.Background(), victim)

		c.mu.Lock()
		delete(c.evicting, victim)
		c.mu.Unlock()
		close(released)
	}
}

func (c *Cache) slotRejected(id string, err error) {
	reason := "full"
	if stderrors.Is(err, resilience.ErrBulkheadTimeout) {
		reason = "timeout"
	} else if !stderrors.Is(err, resilience.ErrBulkheadFull) {
		return
	}
	c.metrics.SlotRejected(id, reason)
}

func (c *Cache) safeLoad(ctx context.Context, spec Spec) (eng Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			eng, err = nil, fmt.Errorf("engine loader panicked: %v", r)
		}
	}()
	eng, err = c.load(ctx, spec)
	if err == nil && eng == nil {
		err = fmt.Errorf("engine loader returned no engine")
	}
	return eng, err
}

func (c *Cache) specFor(id string) Spec {
	model, _ := c.catalog.Model(id)
	return Spec{
		ID:          id,
		Model:       model,
		Device:      c.opts.Device,
		ComputeType: c.opts.Device.ComputeType(),
		CostHint:    c.opts.Device.CostHint(),
	}
}

// touchLocked records a hit. FIFO ignores hits.
func (c *Cache) touchLocked(e *entry) {
	if c.opts.Policy == PolicyFIFO {
		return
	}
	c.seq++
	e.lastUsed = c.seq
}

// victimLocked returns the entry with the smallest last-used stamp, ties
// going to the earliest insertion.
func (c *Cache) victimLocked() *entry {
	var victim *entry
	for _, e := range c.entries {
		if victim == nil || less(e, victim) {
			victim = e
		}
	}
	return victim
}

func less(a, b *entry) bool {
	if a.lastUsed != b.lastUsed {
		return a.lastUsed < b.lastUsed
	}
	return a.inserted < b.inserted
}

// evictLocked marks e as gone from the cache. Its engine stays open until
// the last handle on it is released.
func (c *Cache) evictLocked(e *entry) {
	e.evicted = true
	e.idle = make(chan struct{})
	if e.leases == 0 {
		close(e.idle)
	}
}

func (c *Cache) unleaseLocked(e *entry) {
	e.leases--
	if e.evicted && e.leases == 0 {
		close(e.idle)
	}
}

// release closes an evicted engine once every handle on it is released. If
// ctx ends first the engine is closed anyway, after transcriptions already
// running on it finish, and later calls through the remaining handles fail.
// It reports whether ctx ended first.
func (c *Cache) release(ctx context.Context, e *entry) bool {
	forced := false
	select {
	case <-e.idle:
	default:
		select {
		case <-e.idle:
		case <-ctx.Done():
			forced = true
			c.log.Warn("closing engine with handles still out", logger.Fields(logger.FieldModel, e.id))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return forced
	}
	e.released = true
	if err := e.engine.Close(); err != nil {
		c.log.Warn("engine close failed",
			logger.MergeWithError(logger.Fields(logger.FieldModel, e.id), err))
	}
	return forced
}

// EvictAll waits for in-flight constructions to settle, then releases every
// cached engine once its handles are released. When ctx ends first, engines
// still held are closed anyway and ctx's error is returned. It returns the
// number of engines released.
func (c *Cache) EvictAll(ctx context.Context) (int, error) {
	var drained map[string]*entry
	for {
		c.mu.Lock()
		var pending *call
		for _, cl := range c.inflight {
			pending = cl
			break
		}
		if pending == nil {
			drained = c.entries
			for _, e := range drained {
				c.evictLocked(e)
			}
			c.entries = make(map[string]*entry)
			c.publishLocked()
			c.mu.Unlock()
			break
		}
		c.mu.Unlock()

		select {
		case <-pending.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	ids := make([]string, 0, len(drained))
	for id := range drained {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	forced := false
	for _, id := range ids {
		if c.release(ctx, drained[id]) {
			forced = true
		}
	}

	c.mu.Lock()
	pendingReleases := make([]chan struct{}, 0, len(c.evicting))
	for _, ch := range c.evicting {
		pendingReleases = append(pendingReleases, ch)
	}
	c.mu.Unlock()
	for _, ch := range pendingReleases {
		select {
		case <-ch:
		case <-ctx.Done():
			return len(ids), ctx.Err()
		}
	}

	if len(ids) > 0 {
		c.log.Info("engine cache cleared", logger.Fields("released", len(ids)))
	}
	if forced {
		return len(ids), ctx.Err()
	}
	return len(ids), nil
}

// Contains reports whether id is cached right now.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Info is a snapshot of the cache state.
type Info struct {
	// CachedModels lists cached identifiers, most recently used first.
	CachedModels []string `json:"cached_models"`
	Loading      []string `json:"loading"`
	CacheSize    int      `json:"cache_size"`
	MaxCacheSize int      `json:"max_cache_size"`
	Device       string   `json:"device"`
	BatchSize    int      `json:"batch_size"`
	Eviction     string   `json:"eviction"`
}

// Info returns a snapshot of the cache state.
func (c *Cache) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		cached = append(cached, e)
	}
	sort.Slice(cached, func(i, j int) bool { return less(cached[j], cached[i]) })

	info := Info{
		CachedModels: make([]string, 0, len(cached)),
		Loading:      make([]string, 0, len(c.inflight)),
		CacheSize:    len(c.entries),
		MaxCacheSize: c.opts.Capacity,
		Device:       string(c.opts.Device),
		BatchSize:    c.opts.Device.CostHint(),
		Eviction:     string(c.opts.Policy),
	}
	for _, e := range cached {
		info.CachedModels = append(info.CachedModels, e.id)
	}
	for id := range c.inflight {
		info.Loading = append(info.Loading, id)
	}
	sort.Strings(info.Loading)
	return info
}

func (c *Cache) publishLocked() {
	c.metrics.CacheState(len(c.entries), len(c.inflight))
}

func (c *Cache) handle(e *entry) *Handle {
	return &Handle{c: c, e: e}
}

// --- component.Component ---

func (c *Cache) Name() string { return "engine-cache" }

// Start constructs the preload identifiers. A failed preload is logged and
// the identifier is constructed again on first use.
func (c *Cache) Start(ctx context.Context) error {
	for _, id := range c.opts.Preload {
		h, err := c.Acquire(ctx, id)
		if err == nil {
			h.Release()
			continue
		}
		if errors.HasCode(err, errors.ErrCodeUnsupportedModel) {
			return fmt.Errorf("preload %s: %w", id, err)
		}
		c.log.Warn("engine preload failed", logger.Fields(
			logger.FieldModel, id,
			logger.FieldError, err.Error(),
		))
	}
	return nil
}

func (c *Cache) Stop(ctx context.Context) error {
	_, err := c.EvictAll(ctx)
	return err
}

func (c *Cache) Health(ctx context.Context) component.Health {
	info := c.Info()
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"cached_models":  info.CachedModels,
			"loading":        info.Loading,
			"max_cache_size": info.MaxCacheSize,
			"device":         info.Device,
		},
	}
}

func (c *Cache) Describe() component.Description {
	return component.Description{
		Name: "Engine cache",
		Type: "cache",
		Details: fmt.Sprintf("capacity=%d eviction=%s device=%s",
			c.opts.Capacity, c.opts.Policy, c.opts.Device),
	}
}

// Handle is a cached engine lent to one caller until Release. Transcriptions
// through a handle are bounded by the engine's cost hint.
type Handle struct {
	c    *Cache
	e    *entry
	once sync.Once
}

// ID returns the identifier the engine was built for.
func (h *Handle) ID() string { return h.e.id }

// Spec returns the construction spec of the engine.
func (h *Handle) Spec() Spec { return h.e.spec }

// Release returns the handle's lease. An evicted engine is closed when its
// last handle is released. Release is idempotent.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.c.mu.Lock()
		h.c.unleaseLocked(h.e)
		h.c.mu.Unlock()
	})
}

// Transcribe runs the engine once a slot is free. Result.Elapsed covers the
// engine call only, not the wait for a slot. If the cache had to close the
// engine under an unreleased handle, it fails with a retryable
// SERVICE_UNAVAILABLE.
func (h *Handle) Transcribe(ctx context.Context, path string, params Params) (*Result, error) {
	res, err := resilience.ExecuteWithResult(ctx, h.e.bulkhead, func() (*Result, error) {
		h.e.mu.RLock()
		defer h.e.mu.RUnlock()
		if h.e.released {
			return nil, errors.ServiceUnavailable("transcription engine").WithDetail("model", h.e.id)
		}
		start := time.Now()
		res, err := h.e.engine.Transcribe(ctx, path, params)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = &Result{}
		}
		res.Elapsed = time.Since(start)
		return res, nil
	})
	if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
		return nil, errors.ServiceUnavailable("transcription engine").
			WithDetail("model", h.e.id).
			WithCause(err)
	}
	return res, err
}

// File: internal/browser/pool/pool.go

// Package pool maintains a bounded set of browser drivers with fair
// acquisition, health scoring and background replacement.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
)

const (
	// healthPenalty is subtracted from a slot's score when a loan reports
	// driver misbehavior.
	healthPenalty = 0.3
	// evictThreshold is the score below which a slot is quit and replaced.
	evictThreshold = 0.2
)

// Factory creates one new driver. Called outside the pool lock.
type Factory func(ctx context.Context) (schemas.Driver, error)

type slot struct {
	driver      schemas.Driver
	id          string
	createdAt   time.Time
	lastUsedAt  time.Time
	inUse       bool
	healthScore float64
}

type waiter struct {
	ch chan *slot
}

// Pool is a bounded driver pool. Waiters are served in arrival order.
type Pool struct {
	cfg     config.PoolConfig
	factory Factory
	logger  *zap.Logger

	mu       sync.Mutex
	slots    map[string]*slot
	waiters  *list.List // of *waiter, front = oldest
	creating int        // drivers being built outside the lock
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a pool and pre-warms it to min_size. Startup driver failures
// are logged, not fatal; the pool creates lazily on demand afterwards.
func New(ctx context.Context, cfg config.PoolConfig, factory Factory, logger *zap.Logger) *Pool {
	p := &Pool{
		cfg:     cfg,
		factory: factory,
		logger:  logger.Named("pool"),
		slots:   make(map[string]*slot),
		waiters: list.New(),
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < cfg.MinSize; i++ {
		if err := p.addSlot(ctx); err != nil {
			p.logger.Warn("Failed to preload driver", zap.Error(err))
		}
	}

	if cfg.HealthInterval > 0 {
		p.wg.Add(1)
		go p.healthLoop()
	}

	return p
}

// Loan is one borrowed driver. Exactly one Release call must follow every
// successful Acquire.
type Loan struct {
	pool    *Pool
	slot    *slot
	failed  bool
	once    sync.Once
	failsMu sync.Mutex
}

// Driver returns the borrowed driver.
func (l *Loan) Driver() schemas.Driver { return l.slot.driver }

// MarkFailed records that the driver misbehaved during this loan, lowering
// its health score on release.
func (l *Loan) MarkFailed() {
	l.failsMu.Lock()
	l.failed = true
	l.failsMu.Unlock()
}

// Release returns the driver to the pool. Safe to call multiple times; only
// the first call has an effect.
func (l *Loan) Release() {
	l.once.Do(func() {
		l.failsMu.Lock()
		failed := l.failed
		l.failsMu.Unlock()
		l.pool.release(l.slot, failed)
	})
}

// Acquire borrows a driver, preferring a healthy idle slot, then lazy
// creation up to max_size, then waiting in FIFO order until
// acquire_timeout.
func (p *Pool) Acquire(ctx context.Context) (*Loan, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, schemas.NewError(schemas.KindDriverUnavailable, "pool.acquire", "pool is shut down")
	}
	if p.cfg.MaxSize == 0 {
		p.mu.Unlock()
		return nil, schemas.NewError(schemas.KindDriverUnavailable, "pool.acquire", "pool max_size is 0")
	}

	if s := p.idleSlotLocked(); s != nil {
		s.inUse = true
		s.lastUsedAt = time.Now()
		p.mu.Unlock()
		return &Loan{pool: p, slot: s}, nil
	}

	if len(p.slots)+p.creating < p.cfg.MaxSize {
		p.creating++
		p.mu.Unlock()
		return p.createLoan(ctx)
	}

	// Pool is full; wait in arrival order.
	w := &waiter{ch: make(chan *slot, 1)}
	el := p.waiters.PushBack(w)
	p.mu.Unlock()

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-w.ch:
		if !ok {
			return nil, schemas.NewError(schemas.KindDriverUnavailable, "pool.acquire", "pool is shut down")
		}
		return &Loan{pool: p, slot: s}, nil
	case <-ctx.Done():
		p.abandonWaiter(el, w)
		return nil, schemas.WrapError(schemas.KindDriverUnavailable, "pool.acquire", ctx.Err())
	case <-timer.C:
		p.abandonWaiter(el, w)
		return nil, schemas.NewError(schemas.KindDriverUnavailable, "pool.acquire", "acquire timeout: pool exhausted")
	}
}

// abandonWaiter removes the waiter from the queue; if a slot was handed over
// concurrently, it is rerouted back into the pool.
func (p *Pool) abandonWaiter(el *list.Element, w *waiter) {
	p.mu.Lock()
	p.waiters.Remove(el)
	p.mu.Unlock()
	select {
	case s := <-w.ch:
		if s != nil {
			p.release(s, false)
		}
	default:
	}
}

// createLoan builds a new driver outside the lock; p.creating is already
// incremented.
func (p *Pool) createLoan(ctx context.Context) (*Loan, error) {
	d, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.mu.Unlock()
		return nil, schemas.WrapError(schemas.KindDriverUnavailable, "pool.acquire", err)
	}
	now := time.Now()
	s := &slot{
		driver:      d,
		id:          uuid.NewString(),
		createdAt:   now,
		lastUsedAt:  now,
		inUse:       true,
		healthScore: 1.0,
	}
	p.slots[s.id] = s
	p.mu.Unlock()

	p.logger.Debug("Created pool driver", zap.String("slot_id", s.id))
	return &Loan{pool: p, slot: s}, nil
}

// idleSlotLocked returns a healthy idle slot or nil.
func (p *Pool) idleSlotLocked() *slot {
	for _, s := range p.slots {
		if !s.inUse && s.healthScore >= evictThreshold {
			return s
		}
	}
	return nil
}

func (p *Pool) release(s *slot, failed bool) {
	p.mu.Lock()
	if failed {
		s.healthScore -= healthPenalty
	}
	s.lastUsedAt = time.Now()

	if p.closed {
		delete(p.slots, s.id)
		p.mu.Unlock()
		p.quitDriver(s)
		return
	}

	if s.healthScore < evictThreshold {
		delete(p.slots, s.id)
		needReplacement := len(p.slots)+p.creating < p.cfg.MinSize
		if needReplacement {
			p.creating++
		}
		p.mu.Unlock()

		p.logger.Info("Evicting unhealthy driver",
			zap.String("slot_id", s.id), zap.Float64("health_score", s.healthScore))
		p.quitDriver(s)
		if needReplacement {
			go p.replaceSlot()
		}
		return
	}

	// Hand the slot directly to the oldest waiter, if any.
	if el := p.waiters.Front(); el != nil {
		w := p.waiters.Remove(el).(*waiter)
		s.lastUsedAt = time.Now()
		p.mu.Unlock()
		w.ch <- s
		return
	}

	s.inUse = false
	p.mu.Unlock()
}

// replaceSlot builds a replacement driver in the background. Failures are
// logged; the pool will retry lazily on the next acquire.
func (p *Pool) replaceSlot() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	d, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("Driver replacement failed", zap.Error(err))
		return
	}
	if p.closed {
		p.mu.Unlock()
		_ = d.Quit(context.Background())
		return
	}
	now := time.Now()
	s := &slot{
		driver:      d,
		id:          uuid.NewString(),
		createdAt:   now,
		lastUsedAt:  now,
		healthScore: 1.0,
	}

	// Serve a queued waiter immediately if one is still there.
	if el := p.waiters.Front(); el != nil {
		w := p.waiters.Remove(el).(*waiter)
		s.inUse = true
		p.slots[s.id] = s
		p.mu.Unlock()
		w.ch <- s
		return
	}

	p.slots[s.id] = s
	p.mu.Unlock()
}

// addSlot creates one idle slot synchronously. Used for pre-warming.
func (p *Pool) addSlot(ctx context.Context) error {
	d, err := p.factory(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	s := &slot{
		driver:      d,
		id:          uuid.NewString(),
		createdAt:   now,
		lastUsedAt:  now,
		healthScore: 1.0,
	}
	p.mu.Lock()
	p.slots[s.id] = s
	p.mu.Unlock()
	return nil
}

// healthLoop pings idle slots with a cheap title call and evicts
// unresponsive or long-idle drivers.
func (p *Pool) healthLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkIdleSlots()
		}
	}
}

func (p *Pool) checkIdleSlots() {
	p.mu.Lock()
	idle := make([]*slot, 0, len(p.slots))
	for _, s := range p.slots {
		if !s.inUse {
			// Reserve the slot so no acquire can loan it out mid-ping.
			s.inUse = true
			idle = append(idle, s)
		}
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, s := range idle {
		healthy := s.driver.Healthy(ctx)

		p.mu.Lock()
		if p.closed {
			delete(p.slots, s.id)
			p.mu.Unlock()
			p.quitDriver(s)
			continue
		}
		tooIdle := p.cfg.MaxIdle > 0 && time.Since(s.lastUsedAt) > p.cfg.MaxIdle
		if healthy && (!tooIdle || len(p.slots) <= p.cfg.MinSize) {
			p.unreserveLocked(s)
			p.mu.Unlock()
			continue
		}
		delete(p.slots, s.id)
		needReplacement := !tooIdle && len(p.slots)+p.creating < p.cfg.MinSize
		if needReplacement {
			p.creating++
		}
		p.mu.Unlock()

		if !healthy {
			p.logger.Warn("Evicting unresponsive driver", zap.String("slot_id", s.id))
		} else {
			p.logger.Debug("Evicting idle driver", zap.String("slot_id", s.id))
		}
		p.quitDriver(s)
		if needReplacement {
			go p.replaceSlot()
		}
	}
}

// unreserveLocked puts a health-check reservation back into circulation: the
// oldest waiter gets the slot directly, otherwise it returns to idle. The
// ping does not refresh lastUsedAt, so idle expiry still measures real use.
// Caller holds p.mu; the waiter channel is buffered so the send cannot block.
func (p *Pool) unreserveLocked(s *slot) {
	if el := p.waiters.Front(); el != nil {
		w := p.waiters.Remove(el).(*waiter)
		s.lastUsedAt = time.Now()
		w.ch <- s
		return
	}
	s.inUse = false
}

func (p *Pool) quitDriver(s *slot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.driver.Quit(ctx); err != nil {
		p.logger.Warn("Driver quit failed", zap.String("slot_id", s.id), zap.Error(err))
	}
}

// Size returns the number of pooled drivers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// InUse returns the number of loaned-out drivers.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if s.inUse {
			n++
		}
	}
	return n
}

// Shutdown stops the health loop, fails queued waiters and quits every
// driver. In-flight loans are quit when released.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)

	var toQuit []*slot
	for id, s := range p.slots {
		if !s.inUse {
			delete(p.slots, id)
			toQuit = append(toQuit, s)
		}
	}
	// Fail queued waiters immediately rather than letting them time out.
	for p.waiters.Len() > 0 {
		w := p.waiters.Remove(p.waiters.Front()).(*waiter)
		close(w.ch)
	}
	p.mu.Unlock()

	p.wg.Wait()

	for _, s := range toQuit {
		p.quitDriver(s)
	}
	p.logger.Info("Pool shut down", zap.Int("drivers_quit", len(toQuit)))
}

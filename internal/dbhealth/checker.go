package dbhealth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Checker publishes database availability for the database gate. A background
// goroutine pings the pool on an interval; Available is a lock-free read.
type Checker struct {
	pool      *pgxpool.Pool
	interval  time.Duration
	available atomic.Bool
	logger    *zap.Logger
	stop      chan struct{}
	done      chan struct{}
}

// NewChecker creates a checker. The flag starts false until the first ping
// succeeds; a gateway that never reached its database must not admit
// db-required routes.
func NewChecker(pool *pgxpool.Pool, interval time.Duration, logger *zap.Logger) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Checker{
		pool:     pool,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Available reports the last observed database state.
func (c *Checker) Available() bool {
	return c.available.Load()
}

// Start pings once synchronously, then keeps the flag fresh in the
// background until Stop.
func (c *Checker) Start(ctx context.Context) {
	c.ping(ctx)
	go c.loop()
}

// Stop terminates the background loop and waits for it to exit.
func (c *Checker) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Checker) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.ping(ctx)
			cancel()
		}
	}
}

func (c *Checker) ping(ctx context.Context) {
	err := c.pool.Ping(ctx)
	was := c.available.Swap(err == nil)
	switch {
	case err != nil && was:
		c.logger.Error("database became unavailable", zap.Error(err))
	case err == nil && !was:
		c.logger.Info("database available")
	}
}

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Janitor periodically evicts idle sessions and retries deferred flushes.
type Janitor struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	ticker   *time.Ticker
	wg       sync.WaitGroup
	once     sync.Once
}

func NewJanitor(store *Store, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   store.logger.With("worker", "janitor"),
		stopChan: make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	if j == nil {
		return
	}
	j.ticker = time.NewTicker(j.interval)
	j.wg.Add(1)
	go j.loop()
	j.logger.Info("janitor started", "interval", j.interval)
}

func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	j.once.Do(func() {
		close(j.stopChan)
		if j.ticker != nil {
			j.ticker.Stop()
		}
		j.wg.Wait()
		j.logger.Info("janitor stopped")
	})
}

func (j *Janitor) loop() {
	defer j.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-j.ticker.C:
			j.tick(ctx)
		case <-j.stopChan:
			return
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	if n := j.store.CleanupExpired(ctx); n > 0 {
		j.logger.Info("expired sessions removed", "count", n)
	}
	if n := j.store.FlushPending(ctx); n > 0 {
		j.logger.Warn("ledgers still waiting to be persisted", "count", n)
	}
}

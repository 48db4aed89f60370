package main

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/benbjohnson/clock"
	"github.com/galacticai-space/galactic/galaxy"
	"github.com/galacticai-space/galactic/models"
	"github.com/galacticai-space/galactic/optimizer"
)

// universe holds the simulated transactions feeding the optimizer.
type universe struct {
	mutex        sync.Mutex
	seed         uint64
	batches      uint64
	transactions []models.Transaction
}

func newUniverse(conf config, now time.Time) *universe {
	return &universe{
		seed:         conf.Seed,
		transactions: galaxy.Synthesize(conf.Transactions, conf.Seed, now),
	}
}

// Objects groups the transactions into galaxies and returns them as
// indexable objects.
func (u *universe) Objects() []models.Object {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return galaxy.Objects(galaxy.Group(u.transactions, galaxy.DefaultTransactionsPerGalaxy))
}

// Grow appends n new transactions.
func (u *universe) Grow(n int, now time.Time) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	u.batches++
	u.transactions = append(u.transactions, galaxy.Synthesize(n, u.seed+u.batches, now)...)
}

func (u *universe) Len() int {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return len(u.transactions)
}

func refreshUniverse(ctx context.Context, conf config, clk clock.Clock, u *universe, o optimizer.Optimizer) {
	ticker := clk.Ticker(conf.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			u.Grow(max(1, conf.Transactions/10), now)
			objects := u.Objects()
			o.UpdateChunks(objects)

			logs.WithTag("transactions", u.Len()).
				WithTag("galaxies", len(objects)).
				Debug("universe refreshed")
		}
	}
}

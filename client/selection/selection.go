// Package selection keeps a set of selected leads across pages and runs bulk deletes on it.
package selection

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Progress bounds. The bulk delete endpoint reports no progress, so the percentage shown
// while it runs is synthesised.
const (
	ProgressInterval = 500 * time.Millisecond
	ProgressCap      = 92
	progressMinStep  = 3
	progressMaxStep  = 6
)

var ErrNothingSelected = errors.New("no lead selected")

// API is the part of the client the controller needs.
type API interface {
	LeadIDs(ctx context.Context, query map[string]string) ([]string, error)
	BulkDeleteLeads(ctx context.Context, ids []string) (int, error)
}

type Controller struct {
	api      API
	interval time.Duration
	rnd      *rand.Rand

	mu       sync.Mutex
	selected map[string]struct{}
	deleting bool
}

func New(api API) *Controller {
	return &Controller{
		api:      api,
		interval: ProgressInterval,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		selected: make(map[string]struct{}),
	}
}

// Toggle flips the selection of id and reports whether it is now selected.
func (c *Controller) Toggle(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
		return false
	}
	c.selected[id] = struct{}{}
	return true
}

func (c *Controller) Select(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.selected[id] = struct{}{}
	}
}

func (c *Controller) Deselect(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.selected, id)
	}
}

func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

// IDs returns the selection, sorted.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Controller) Clear() {
	c.mu.Lock()
	c.selected = make(map[string]struct{})
	c.mu.Unlock()
}

// SelectAll replaces the selection with every lead matching query, on all pages.
// Paging parameters in query are ignored by the server.
func (c *Controller) SelectAll(ctx context.Context, query map[string]string) (int, error) {
	ids, err := c.api.LeadIDs(ctx, query)
	if err != nil {
		return c.Count(), errors.Wrap(err, "fetching matching lead ids")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		c.selected[id] = struct{}{}
	}
	return len(c.selected), nil
}

// nextProgress advances a synthetic percentage by step without passing ProgressCap.
func nextProgress(cur, step int) int {
	if cur+step > ProgressCap {
		return ProgressCap
	}
	return cur + step
}

// BulkDelete deletes the selection in one call. While it runs, onProgress (when set)
// receives a synthetic, increasing percentage capped at ProgressCap, then 100 on success.
// The selection is cleared on success and kept on failure.
func (c *Controller) BulkDelete(ctx context.Context, onProgress func(int)) (int, error) {
	c.mu.Lock()
	if c.deleting {
		c.mu.Unlock()
		return 0, errors.New("a bulk delete is already running")
	}
	if len(c.selected) == 0 {
		c.mu.Unlock()
		return 0, ErrNothingSelected
	}
	c.deleting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.deleting = false
		c.mu.Unlock()
	}()

	report := func(int) {}
	if onProgress != nil {
		report = onProgress
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		progress := 0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				progress = nextProgress(progress, progressMinStep+c.rnd.Intn(progressMaxStep-progressMinStep+1))
				report(progress)
			}
		}
	}()

	n, err := c.api.BulkDeleteLeads(ctx, c.IDs())
	close(done)
	wg.Wait()
	if err != nil {
		return 0, errors.Wrap(err, "bulk deleting leads")
	}

	report(100)
	c.Clear()
	return n, nil
}

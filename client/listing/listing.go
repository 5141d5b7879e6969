// Package listing drives a paginated, filterable collection: it owns the query state,
// debounces free-text inputs and refetches whenever the derived query key changes.
package listing

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/trezcool/admitflow/core"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultLimit    = core.DefaultLimit
)

// State is the query a Controller fetches.
type State struct {
	Page          int
	Limit         int
	Search        string
	EnquiryNumber string
	Filters       map[string]string // column filters, by query parameter name
}

// Query renders the state as API query parameters.
func (s State) Query() map[string]string {
	q := map[string]string{
		"page":  strconv.Itoa(s.Page),
		"limit": strconv.Itoa(s.Limit),
	}
	if s.Search != "" {
		q["search"] = s.Search
	}
	if s.EnquiryNumber != "" {
		q["enquiryNumber"] = s.EnquiryNumber
	}
	for k, v := range s.Filters {
		if v != "" {
			q[k] = v
		}
	}
	return q
}

// Key is a composite key equal for equal states.
func (s State) Key() string {
	q := s.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := make(url.Values, len(q))
	for _, k := range keys {
		vals.Set(k, q[k])
	}
	return vals.Encode()
}

func (s State) clone() State {
	filters := make(map[string]string, len(s.Filters))
	for k, v := range s.Filters {
		filters[k] = v
	}
	s.Filters = filters
	return s
}

// Result is the outcome of the latest fetch.
type Result[T any] struct {
	Key     string
	Items   []T
	Meta    core.PageMeta
	Err     error
	Loading bool
}

// Fetcher loads one page for a query.
type Fetcher[T any] func(ctx context.Context, query map[string]string) ([]T, core.PageMeta, error)

// PageSizeStore persists the preferred page size.
type PageSizeStore interface {
	PreferredPageSize(def int) int
	SavePageSize(n int) error
}

// Controller is safe for concurrent use. Superseded fetches are not cancelled, so a slow
// response for an older key may be reported after a newer one.
type Controller[T any] struct {
	fetch    Fetcher[T]
	debounce time.Duration
	prefs    PageSizeStore
	onResult func(Result[T])

	mu            sync.Mutex
	state         State
	pendingSearch *string
	pendingEnq    *string
	timer         *time.Timer
	timerGen      uint64
	lastKey       string
	result        Result[T]
	ctx           context.Context
}

// New returns a Controller starting on page 1 with the preferred page size. onResult, when
// set, is called after every fetch from the goroutine that triggered it.
func New[T any](ctx context.Context, fetch Fetcher[T], debounce time.Duration, prefs PageSizeStore, onResult func(Result[T])) *Controller[T] {
	if debounce < 0 {
		debounce = 0
	}
	limit := DefaultLimit
	if prefs != nil {
		limit = prefs.PreferredPageSize(DefaultLimit)
	}
	return &Controller[T]{
		fetch:    fetch,
		debounce: debounce,
		prefs:    prefs,
		onResult: onResult,
		state:    State{Page: 1, Limit: limit, Filters: map[string]string{}},
		ctx:      ctx,
	}
}

func (c *Controller[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller[T]) Result() Result[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Load fetches the current state if it was never fetched.
func (c *Controller[T]) Load() Result[T] {
	return c.update(func(*State) {})
}

// Retry refetches the current state even though its key did not change.
func (c *Controller[T]) Retry() Result[T] {
	c.mu.Lock()
	c.lastKey = ""
	c.mu.Unlock()
	return c.Load()
}

func (c *Controller[T]) SetPage(page int) Result[T] {
	return c.update(func(s *State) {
		if page < 1 {
			page = 1
		}
		s.Page = page
	})
}

func (c *Controller[T]) NextPage() Result[T] {
	return c.update(func(s *State) {
		if c.result.Meta.HasNext {
			s.Page++
		}
	})
}

func (c *Controller[T]) PrevPage() Result[T] {
	return c.update(func(s *State) {
		if s.Page > 1 {
			s.Page--
		}
	})
}

// SetLimit changes and persists the page size, going back to page 1.
func (c *Controller[T]) SetLimit(limit int) (Result[T], error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > core.MaxLimit {
		limit = core.MaxLimit
	}
	if c.prefs != nil {
		if err := c.prefs.SavePageSize(limit); err != nil {
			return c.Result(), err
		}
	}
	return c.update(func(s *State) {
		s.Limit = limit
		s.Page = 1
	}), nil
}

// SetFilter sets (or clears, with an empty value) a column filter and goes back to page 1.
func (c *Controller[T]) SetFilter(name, value string) Result[T] {
	return c.update(func(s *State) {
		if value == "" {
			delete(s.Filters, name)
		} else {
			s.Filters[name] = value
		}
		s.Page = 1
	})
}

// ClearFilters drops search, enquiry number and column filters.
func (c *Controller[T]) ClearFilters() Result[T] {
	c.mu.Lock()
	c.stopTimer()
	c.pendingSearch, c.pendingEnq = nil, nil
	c.mu.Unlock()
	return c.update(func(s *State) {
		s.Search = ""
		s.EnquiryNumber = ""
		s.Filters = map[string]string{}
		s.Page = 1
	})
}

// Replace sets page, search, enquiry number & column filters at once, dropping pending input.
// The page size is kept.
func (c *Controller[T]) Replace(s State) Result[T] {
	c.mu.Lock()
	c.stopTimer()
	c.pendingSearch, c.pendingEnq = nil, nil
	c.mu.Unlock()
	return c.update(func(st *State) {
		st.Page = max(s.Page, 1)
		st.Search = s.Search
		st.EnquiryNumber = s.EnquiryNumber
		st.Filters = make(map[string]string, len(s.Filters))
		for k, v := range s.Filters {
			if v != "" {
				st.Filters[k] = v
			}
		}
	})
}

// SetSearch schedules a search change; it applies once input has been idle for the debounce delay.
func (c *Controller[T]) SetSearch(search string) {
	c.mu.Lock()
	c.pendingSearch = &search
	c.schedule()
	c.mu.Unlock()
}

// SetEnquiryNumber schedules an enquiry number change, debounced like SetSearch.
func (c *Controller[T]) SetEnquiryNumber(enq string) {
	c.mu.Lock()
	c.pendingEnq = &enq
	c.schedule()
	c.mu.Unlock()
}

// Flush applies pending debounced input now.
func (c *Controller[T]) Flush() Result[T] {
	c.mu.Lock()
	c.stopTimer()
	c.mu.Unlock()
	return c.update(func(*State) {})
}

// Close stops pending timers.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	c.stopTimer()
	c.pendingSearch, c.pendingEnq = nil, nil
	c.mu.Unlock()
}

func (c *Controller[T]) schedule() {
	c.stopTimer()
	gen := c.timerGen
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		if gen != c.timerGen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.update(func(*State) {})
	})
}

func (c *Controller[T]) stopTimer() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// applyPending moves debounced input into s; changing either value resets the page.
func (c *Controller[T]) applyPending(s *State) {
	if c.pendingSearch != nil {
		if *c.pendingSearch != s.Search {
			s.Search = *c.pendingSearch
			s.Page = 1
		}
		c.pendingSearch = nil
	}
	if c.pendingEnq != nil {
		if *c.pendingEnq != s.EnquiryNumber {
			s.EnquiryNumber = *c.pendingEnq
			s.Page = 1
		}
		c.pendingEnq = nil
	}
}

// update mutates the state and fetches when the derived key changed.
func (c *Controller[T]) update(mutate func(*State)) Result[T] {
	c.mu.Lock()
	next := c.state.clone()
	mutate(&next)
	if c.timer == nil {
		c.applyPending(&next)
	}
	c.state = next
	key := next.Key()
	if key == c.lastKey {
		res := c.result
		c.mu.Unlock()
		return res
	}
	c.lastKey = key
	c.result = Result[T]{Key: key, Items: c.result.Items, Meta: c.result.Meta, Loading: true}
	c.mu.Unlock()

	items, meta, err := c.fetch(c.ctx, next.Query())
	res := Result[T]{Key: key, Items: items, Meta: meta, Err: err}

	c.mu.Lock()
	if err != nil {
		// keep the last good page on screen, with the error for a retry
		res.Items, res.Meta = c.result.Items, c.result.Meta
		if c.lastKey == key {
			c.lastKey = ""
		}
	}
	c.result = res
	c.mu.Unlock()

	if c.onResult != nil {
		c.onResult(res)
	}
	return res
}

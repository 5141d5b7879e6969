package listing

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
)

// fakeAPI serves total integers and records every query it receives.
type fakeAPI struct {
	mu      sync.Mutex
	total   int
	fail    bool
	queries []map[string]string
}

func (api *fakeAPI) fetch(_ context.Context, q map[string]string) ([]int, core.PageMeta, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.queries = append(api.queries, q)
	if api.fail {
		return nil, core.PageMeta{}, errors.New("network down")
	}
	page, _ := strconv.Atoi(q["page"])
	limit, _ := strconv.Atoi(q["limit"])
	p := core.NewPage(page, limit)
	items := make([]int, api.total)
	for i := range items {
		items[i] = i
	}
	return core.Paginate(items, p), core.BuildPageMeta(api.total, p), nil
}

func (api *fakeAPI) calls() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return len(api.queries)
}

func (api *fakeAPI) last() map[string]string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.queries[len(api.queries)-1]
}

type memPrefs struct{ size int }

func (p *memPrefs) PreferredPageSize(def int) int {
	if p.size > 0 {
		return p.size
	}
	return def
}

func (p *memPrefs) SavePageSize(n int) error {
	p.size = n
	return nil
}

func TestState_Key(t *testing.T) {
	a := State{Page: 1, Limit: 20, Search: "ravi", Filters: map[string]string{"district": "Guntur", "quota": "NRI"}}
	b := State{Page: 1, Limit: 20, Search: "ravi", Filters: map[string]string{"quota": "NRI", "district": "Guntur"}}
	assert.Equal(t, a.Key(), b.Key())

	b.Filters["district"] = ""
	assert.NotEqual(t, a.Key(), b.Key())
	b.Page = 2
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestController_Paging(t *testing.T) {
	api := &fakeAPI{total: 45}
	c := New[int](context.Background(), api.fetch, time.Hour, nil, nil)
	defer c.Close()

	res := c.Load()
	require.NoError(t, res.Err)
	assert.Len(t, res.Items, 20)
	assert.Equal(t, 3, res.Meta.TotalPages)

	c.Load()
	assert.Equal(t, 1, api.calls(), "unchanged key does not refetch")

	c.NextPage()
	res = c.NextPage()
	assert.Equal(t, 3, c.State().Page)
	assert.Len(t, res.Items, 5)
	assert.False(t, res.Meta.HasNext)

	c.NextPage()
	assert.Equal(t, 3, c.State().Page, "stays on the last page")
	assert.Equal(t, 3, api.calls())

	c.PrevPage()
	assert.Equal(t, "2", api.last()["page"])
}

func TestController_ResetsPage(t *testing.T) {
	tests := []struct {
		name   string
		change func(c *Controller[int])
	}{
		{"search", func(c *Controller[int]) { c.SetSearch("ravi"); c.Flush() }},
		{"enquiry number", func(c *Controller[int]) { c.SetEnquiryNumber("ENQ26"); c.Flush() }},
		{"column filter", func(c *Controller[int]) { c.SetFilter("leadStatus", "New") }},
		{"clear filters", func(c *Controller[int]) { c.ClearFilters() }},
		{"page size", func(c *Controller[int]) { _, _ = c.SetLimit(10) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{total: 100}
			c := New[int](context.Background(), api.fetch, time.Hour, nil, nil)
			defer c.Close()

			c.SetFilter("quota", "NRI")
			c.SetPage(4)
			require.Equal(t, 4, c.State().Page)

			tt.change(c)
			assert.Equal(t, 1, c.State().Page)
			assert.Equal(t, "1", api.last()["page"])
		})
	}
}

func TestController_DebouncesSearch(t *testing.T) {
	api := &fakeAPI{total: 3}
	c := New[int](context.Background(), api.fetch, time.Hour, nil, nil)
	defer c.Close()
	c.Load()

	for _, s := range []string{"r", "ra", "rav", "ravi"} {
		c.SetSearch(s)
	}
	assert.Equal(t, 1, api.calls(), "nothing fetched while typing")
	assert.Empty(t, c.State().Search)

	// a non-debounced change keeps pending input pending
	c.SetFilter("district", "Guntur")
	assert.Equal(t, 2, api.calls())
	assert.Empty(t, api.last()["search"])

	c.Flush()
	assert.Equal(t, 3, api.calls())
	assert.Equal(t, "ravi", api.last()["search"])
	assert.Equal(t, "Guntur", api.last()["district"])
}

func TestController_DebounceTimer(t *testing.T) {
	api := &fakeAPI{total: 3}
	results := make(chan Result[int], 4)
	c := New[int](context.Background(), api.fetch, 20*time.Millisecond, nil, func(r Result[int]) { results <- r })
	defer c.Close()

	c.SetPage(1)
	<-results
	c.SetSearch("an")
	c.SetSearch("anil")

	select {
	case res := <-results:
		require.NoError(t, res.Err)
	case <-time.After(time.Second):
		t.Fatal("debounced search was never applied")
	}
	assert.Equal(t, 2, api.calls(), "one fetch for the whole burst")
	assert.Equal(t, "anil", api.last()["search"])
}

func TestController_PageSizePreference(t *testing.T) {
	prefs := &memPrefs{size: 50}
	api := &fakeAPI{total: 120}
	c := New[int](context.Background(), api.fetch, time.Hour, prefs, nil)
	defer c.Close()

	res := c.Load()
	assert.Len(t, res.Items, 50)

	res, err := c.SetLimit(100)
	require.NoError(t, err)
	assert.Len(t, res.Items, 100)
	assert.Equal(t, 100, prefs.size)

	other := New[int](context.Background(), api.fetch, time.Hour, prefs, nil)
	assert.Equal(t, 100, other.State().Limit)
}

func TestController_Retry(t *testing.T) {
	api := &fakeAPI{total: 30}
	c := New[int](context.Background(), api.fetch, time.Hour, nil, nil)
	defer c.Close()

	res := c.Load()
	require.NoError(t, res.Err)

	api.fail = true
	res = c.NextPage()
	require.Error(t, res.Err)
	assert.Len(t, res.Items, 20, "last good page is kept")

	api.fail = false
	res = c.Retry()
	require.NoError(t, res.Err)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, "2", api.last()["page"])
}

func TestController_Replace(t *testing.T) {
	api := &fakeAPI{total: 100}
	c := New[int](context.Background(), api.fetch, time.Hour, nil, nil)
	defer c.Close()

	c.SetSearch("typed but not applied")
	res := c.Replace(State{Page: 3, EnquiryNumber: "ENQ26", Filters: map[string]string{"quota": "NRI", "district": ""}})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, api.calls())

	q := api.last()
	assert.Equal(t, "3", q["page"])
	assert.Equal(t, "20", q["limit"])
	assert.Equal(t, "ENQ26", q["enquiryNumber"])
	assert.Equal(t, "NRI", q["quota"])
	assert.NotContains(t, q, "search")
	assert.NotContains(t, q, "district")

	c.Flush()
	assert.Equal(t, 1, api.calls(), "pending input was dropped")
}

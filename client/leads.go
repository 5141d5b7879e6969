package client

import (
	"context"
	"net/url"

	"github.com/sendgrid/rest"

	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/timeline"
)

// Cache key prefixes
const (
	LeadListPrefix = "leads:"
	leadPrefix     = "lead:"
)

func queryKey(prefix string, query map[string]string) string {
	vals := make(url.Values, len(query))
	for k, v := range query {
		if v != "" {
			vals.Set(k, v)
		}
	}
	return prefix + "?" + vals.Encode()
}

// LeadKey is the cache key prefix of everything fetched for one lead.
func LeadKey(id string) string { return leadPrefix + id + ":" }

// ActivityResult is what the server returns after an activity is added.
type ActivityResult struct {
	Lead       lead.Lead          `json:"lead"`
	Activities []lead.ActivityLog `json:"activities"`
}

type countResult struct {
	Count int `json:"count"`
}

// ListLeads returns one page of leads; query holds page, limit, search & column filters.
func (c *Client) ListLeads(ctx context.Context, query map[string]string) (Page[lead.Lead], error) {
	return Fetch(c.cache, queryKey(LeadListPrefix+"list", query), func() (Page[lead.Lead], error) {
		env, err := do[[]lead.Lead](ctx, c, rest.Get, "/leads", query, nil)
		if err != nil {
			return Page[lead.Lead]{}, err
		}
		p := Page[lead.Lead]{Items: env.Data}
		if env.Pagination != nil {
			p.Meta = *env.Pagination
		}
		return p, nil
	})
}

// LeadIDs returns the ID of every lead matching query, across all pages.
func (c *Client) LeadIDs(ctx context.Context, query map[string]string) ([]string, error) {
	return Fetch(c.cache, queryKey(LeadListPrefix+"ids", query), func() ([]string, error) {
		env, err := do[[]string](ctx, c, rest.Get, "/leads/ids", query, nil)
		return env.Data, err
	})
}

func (c *Client) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	return Fetch(c.cache, LeadKey(id)+"detail", func() (lead.Lead, error) {
		env, err := do[lead.Lead](ctx, c, rest.Get, "/leads/"+url.PathEscape(id), nil, nil)
		return env.Data, err
	})
}

func (c *Client) CreateLead(ctx context.Context, nl lead.NewLead) (lead.Lead, error) {
	env, err := do[lead.Lead](ctx, c, rest.Post, "/leads", nil, nl)
	if err != nil {
		return lead.Lead{}, err
	}
	c.cache.Invalidate(LeadListPrefix)
	return env.Data, nil
}

func (c *Client) UpdateLead(ctx context.Context, id string, ul lead.UpdateLead) (lead.Lead, error) {
	env, err := do[lead.Lead](ctx, c, rest.Put, "/leads/"+url.PathEscape(id), nil, ul)
	if err != nil {
		return lead.Lead{}, err
	}
	c.cache.Invalidate(LeadKey(id), LeadListPrefix)
	return env.Data, nil
}

func (c *Client) DeleteLead(ctx context.Context, id string) error {
	if _, err := do[struct{}](ctx, c, rest.Delete, "/leads/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	c.cache.Invalidate(LeadKey(id), LeadListPrefix)
	return nil
}

// BulkDeleteLeads deletes ids in one call and returns how many leads were removed.
func (c *Client) BulkDeleteLeads(ctx context.Context, ids []string) (int, error) {
	env, err := do[countResult](ctx, c, rest.Post, "/leads/bulk-delete", nil, map[string][]string{"ids": ids})
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate(leadPrefix, LeadListPrefix)
	return env.Data.Count, nil
}

func (c *Client) AssignLeads(ctx context.Context, ids []string, counsellorID string) (int, error) {
	body := lead.AssignRequest{LeadIDs: ids, CounsellorID: counsellorID}
	env, err := do[countResult](ctx, c, rest.Post, "/leads/assign", nil, body)
	if err != nil {
		return 0, err
	}
	c.cache.Invalidate(leadPrefix, LeadListPrefix)
	return env.Data.Count, nil
}

// AddActivity records a status, quota and/or comment update on a lead.
func (c *Client) AddActivity(ctx context.Context, id string, na lead.NewActivity) (ActivityResult, error) {
	env, err := do[ActivityResult](ctx, c, rest.Post, "/leads/"+url.PathEscape(id)+"/activity", nil, na)
	if err != nil {
		return ActivityResult{}, err
	}
	c.cache.Invalidate(LeadKey(id), LeadListPrefix)
	return env.Data, nil
}

func (c *Client) Activities(ctx context.Context, id string) ([]lead.ActivityLog, error) {
	return Fetch(c.cache, LeadKey(id)+"activity", func() ([]lead.ActivityLog, error) {
		env, err := do[[]lead.ActivityLog](ctx, c, rest.Get, "/leads/"+url.PathEscape(id)+"/activity", nil, nil)
		return env.Data, err
	})
}

func (c *Client) Timeline(ctx context.Context, id string) ([]timeline.Item, error) {
	return Fetch(c.cache, LeadKey(id)+"timeline", func() ([]timeline.Item, error) {
		env, err := do[[]timeline.Item](ctx, c, rest.Get, "/leads/"+url.PathEscape(id)+"/timeline", nil, nil)
		return env.Data, err
	})
}

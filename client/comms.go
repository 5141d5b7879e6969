package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sendgrid/rest"

	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/comms"
)

const statsPrefix = "stats:"

func (c *Client) LogCall(ctx context.Context, leadID string, nc comms.NewCall) (comms.CommunicationRecord, error) {
	env, err := do[comms.CommunicationRecord](ctx, c, rest.Post, "/leads/"+url.PathEscape(leadID)+"/calls", nil, nc)
	if err != nil {
		return comms.CommunicationRecord{}, err
	}
	c.cache.Invalidate(LeadKey(leadID), statsPrefix)
	return env.Data, nil
}

// SendSMS sends a template to the lead's numbers and returns one record per number.
func (c *Client) SendSMS(ctx context.Context, leadID string, sms comms.SendSMS) ([]comms.CommunicationRecord, error) {
	env, err := do[[]comms.CommunicationRecord](ctx, c, rest.Post, "/leads/"+url.PathEscape(leadID)+"/sms", nil, sms)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(LeadKey(leadID), statsPrefix)
	return env.Data, nil
}

func (c *Client) Communications(ctx context.Context, leadID string) ([]comms.CommunicationRecord, error) {
	return Fetch(c.cache, LeadKey(leadID)+"communications", func() ([]comms.CommunicationRecord, error) {
		env, err := do[[]comms.CommunicationRecord](ctx, c, rest.Get, "/leads/"+url.PathEscape(leadID)+"/communications", nil, nil)
		return env.Data, err
	})
}

func (c *Client) Templates(ctx context.Context, activeOnly bool) ([]comms.MessageTemplate, error) {
	query := map[string]string{"active": strconv.FormatBool(activeOnly)}
	return Fetch(c.cache, queryKey("templates:", query), func() ([]comms.MessageTemplate, error) {
		env, err := do[[]comms.MessageTemplate](ctx, c, rest.Get, "/templates", query, nil)
		return env.Data, err
	})
}

// CommunicationStats accepts from, to (RFC 3339) and actorId.
func (c *Client) CommunicationStats(ctx context.Context, query map[string]string) (comms.Stats, error) {
	return Fetch(c.cache, queryKey(statsPrefix+"communications", query), func() (comms.Stats, error) {
		env, err := do[comms.Stats](ctx, c, rest.Get, "/communications/stats", query, nil)
		return env.Data, err
	})
}

// Overview accepts from, to (RFC 3339) and assignedTo.
func (c *Client) Overview(ctx context.Context, query map[string]string) (analytics.Overview, error) {
	return Fetch(c.cache, queryKey(statsPrefix+"overview", query), func() (analytics.Overview, error) {
		env, err := do[analytics.Overview](ctx, c, rest.Get, "/analytics/overview", query, nil)
		return env.Data, err
	})
}

func (c *Client) LeadSummary(ctx context.Context, leadID string) (analytics.LeadSummary, error) {
	return Fetch(c.cache, LeadKey(leadID)+"analytics", func() (analytics.LeadSummary, error) {
		env, err := do[analytics.LeadSummary](ctx, c, rest.Get, "/leads/"+url.PathEscape(leadID)+"/analytics", nil, nil)
		return env.Data, err
	})
}

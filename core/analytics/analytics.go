// Package analytics computes dashboard and per-lead reports.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
)

// Lead grouping columns
const (
	ByStatus     = "lead_status"
	ByQuota      = "quota"
	BySource     = "source"
	ByCounsellor = "assigned_to"
)

type Filter struct {
	From       time.Time `query:"from"`
	To         time.Time `query:"to"`
	AssignedTo string    `query:"assignedTo"`
}

// Bucket is one GROUP BY row. Label is set when the key is an ID (counsellors).
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}

type Overview struct {
	TotalLeads      int         `json:"totalLeads"`
	AssignedLeads   int         `json:"assignedLeads"`
	UnassignedLeads int         `json:"unassignedLeads"`
	ByStatus        []Bucket    `json:"byStatus"`
	ByQuota         []Bucket    `json:"byQuota"`
	BySource        []Bucket    `json:"bySource"`
	ByCounsellor    []Bucket    `json:"byCounsellor"`
	Admissions      int         `json:"admissions"`
	ConversionRate  float64     `json:"conversionRate"` // admissions / leads, in %
	Communications  comms.Stats `json:"communications"`
}

type LeadSummary struct {
	LeadID         string         `json:"leadId"`
	Calls          int            `json:"calls"`
	SMS            int            `json:"sms"`
	SMSDelivered   int            `json:"smsDelivered"`
	CallsByOutcome map[string]int `json:"callsByOutcome"`
	Activities     int            `json:"activities"`
	StatusChanges  int            `json:"statusChanges"`
	Comments       int            `json:"comments"`
	LastContactAt  *time.Time     `json:"lastContactAt"`
	DaysSinceEntry int            `json:"daysSinceEntry"`
}

type (
	Repository interface {
		// CountLeads groups the leads matching filter by one of the lead grouping columns.
		CountLeads(ctx context.Context, filter Filter, groupBy string) ([]Bucket, error)
		CountAdmissions(ctx context.Context, filter Filter) (int, error)
	}

	Service interface {
		Overview(ctx context.Context, filter Filter, viewer user.User) (Overview, error)
		LeadSummary(ctx context.Context, leadID string, viewer user.User) (LeadSummary, error)
	}

	service struct {
		repo     Repository
		leadSvc  lead.Service
		commsSvc comms.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, leadSvc lead.Service, commsSvc comms.Service) Service {
	return &service{repo: repo, leadSvc: leadSvc, commsSvc: commsSvc}
}

func (svc *service) Overview(ctx context.Context, filter Filter, viewer user.User) (Overview, error) {
	// counsellors only see their own numbers
	if viewer.IsCounsellor() {
		filter.AssignedTo = viewer.ID
	}

	var (
		ov  Overview
		err error
	)
	if ov.ByStatus, err = svc.repo.CountLeads(ctx, filter, ByStatus); err != nil {
		return Overview{}, errors.Wrap(err, "counting leads by status")
	}
	if ov.ByQuota, err = svc.repo.CountLeads(ctx, filter, ByQuota); err != nil {
		return Overview{}, errors.Wrap(err, "counting leads by quota")
	}
	if ov.BySource, err = svc.repo.CountLeads(ctx, filter, BySource); err != nil {
		return Overview{}, errors.Wrap(err, "counting leads by source")
	}
	if ov.ByCounsellor, err = svc.repo.CountLeads(ctx, filter, ByCounsellor); err != nil {
		return Overview{}, errors.Wrap(err, "counting leads by counsellor")
	}
	if ov.Admissions, err = svc.repo.CountAdmissions(ctx, filter); err != nil {
		return Overview{}, errors.Wrap(err, "counting admissions")
	}

	for _, b := range ov.ByStatus {
		ov.TotalLeads += b.Count
	}
	for _, b := range ov.ByCounsellor {
		if b.Key == "" {
			ov.UnassignedLeads += b.Count
		} else {
			ov.AssignedLeads += b.Count
		}
	}
	if ov.TotalLeads > 0 {
		ov.ConversionRate = float64(ov.Admissions) * 100 / float64(ov.TotalLeads)
	}
	sortBuckets(ov.ByStatus, ov.ByQuota, ov.BySource, ov.ByCounsellor)

	statsFilter := comms.StatsFilter{From: filter.From, To: filter.To}
	if filter.AssignedTo != "" {
		statsFilter.ActorID = filter.AssignedTo
	}
	if ov.Communications, err = svc.commsSvc.Stats(ctx, statsFilter, viewer); err != nil {
		return Overview{}, errors.Wrap(err, "computing communication stats")
	}
	return ov, nil
}

func sortBuckets(groups ...[]Bucket) {
	for _, g := range groups {
		g := g
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Count != g[j].Count {
				return g[i].Count > g[j].Count
			}
			return g[i].Key < g[j].Key
		})
	}
}

func (svc *service) LeadSummary(ctx context.Context, leadID string, viewer user.User) (LeadSummary, error) {
	l, err := svc.leadSvc.Get(ctx, leadID, viewer)
	if err != nil {
		return LeadSummary{}, err
	}
	logs, err := svc.leadSvc.Activities(ctx, leadID, viewer)
	if err != nil {
		return LeadSummary{}, errors.Wrap(err, "querying activities")
	}
	recs, err := svc.commsSvc.History(ctx, leadID, viewer)
	if err != nil {
		return LeadSummary{}, errors.Wrap(err, "querying communications")
	}

	sum := LeadSummary{
		LeadID:         l.ID,
		CallsByOutcome: make(map[string]int),
		Activities:     len(logs),
		DaysSinceEntry: int(core.NowFunc().Sub(l.CreatedAt).Hours() / 24),
	}
	for _, log := range logs {
		switch log.Type {
		case lead.ActivityStatusChange:
			if !log.IsAssignment() {
				sum.StatusChanges++
			}
		case lead.ActivityComment:
			sum.Comments++
		}
	}
	for _, rec := range recs {
		switch {
		case rec.IsCall():
			sum.Calls++
			sum.CallsByOutcome[rec.CallOutcome]++
		case rec.IsSMS():
			sum.SMS++
			if rec.Status == core.DeliverySuccess {
				sum.SMSDelivered++
			}
		}
		if sum.LastContactAt == nil || rec.SentAt.After(*sum.LastContactAt) {
			sentAt := rec.SentAt
			sum.LastContactAt = &sentAt
		}
	}
	return sum, nil
}

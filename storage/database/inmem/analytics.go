package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core/analytics"
	"github.com/trezcool/admitflow/core/joining"
	"github.com/trezcool/admitflow/core/lead"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) CountLeads(_ context.Context, filter analytics.Filter, groupBy string) ([]analytics.Bucket, error) {
	var key func(l lead.Lead) (string, string)
	switch groupBy {
	case analytics.ByStatus:
		key = func(l lead.Lead) (string, string) { return l.LeadStatus, "" }
	case analytics.ByQuota:
		key = func(l lead.Lead) (string, string) { return l.Quota, "" }
	case analytics.BySource:
		key = func(l lead.Lead) (string, string) { return l.Source, "" }
	case analytics.ByCounsellor:
		key = func(l lead.Lead) (string, string) { return l.AssignedTo, l.AssignedToName }
	default:
		return nil, errors.Errorf("unsupported grouping %q", groupBy)
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	index := make(map[string]int)
	buckets := make([]analytics.Bucket, 0)
	for _, l := range repo.db.t.leads {
		if !matchAnalytics(l, filter) {
			continue
		}
		k, label := key(l)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			buckets = append(buckets, analytics.Bucket{Key: k, Label: label})
		}
		buckets[i].Count++
	}
	return buckets, nil
}

func matchAnalytics(l lead.Lead, filter analytics.Filter) bool {
	if filter.AssignedTo != "" && l.AssignedTo != filter.AssignedTo {
		return false
	}
	if !filter.From.IsZero() && l.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && l.CreatedAt.After(filter.To) {
		return false
	}
	return true
}

func (repo *analyticsRepository) CountAdmissions(_ context.Context, filter analytics.Filter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, a := range repo.db.t.admissions {
		if a.Status != joining.AdmissionActive {
			continue
		}
		if filter.AssignedTo != "" && repo.db.t.leads[a.LeadID].AssignedTo != filter.AssignedTo {
			continue
		}
		if !filter.From.IsZero() && a.AdmittedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && a.AdmittedAt.After(filter.To) {
			continue
		}
		n++
	}
	return n, nil
}

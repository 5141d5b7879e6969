package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/comms"
	"github.com/trezcool/admitflow/core/lead"
)

type leadRepository struct {
	db *DB
}

var _ lead.Repository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *DB) lead.Repository {
	return &leadRepository{db: db}
}

func (repo *leadRepository) CreateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	defer repo.db.lockWrite(ctx)()

	repo.db.t.leads[l.ID] = l
	return l, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func matchLead(l lead.Lead, f lead.QueryFilter) bool {
	if f.Search != "" {
		found := containsFold(l.Name, f.Search) ||
			containsFold(l.Email, f.Search) ||
			containsFold(l.EnquiryNumber, f.Search) ||
			containsFold(l.FatherName, f.Search)
		if digits := core.CleanPhone(f.Search); !found && digits != "" {
			found = strings.Contains(l.Phone, digits) || strings.Contains(l.AlternatePhone, digits)
		}
		if !found {
			return false
		}
	}
	if f.EnquiryNumber != "" && !strings.HasPrefix(l.EnquiryNumber, f.EnquiryNumber) {
		return false
	}
	if len(f.Statuses) > 0 && !core.ContainsString(f.Statuses, l.LeadStatus) {
		return false
	}
	if len(f.Quotas) > 0 && !core.ContainsString(f.Quotas, l.Quota) {
		return false
	}
	for _, fld := range [][2]string{
		{f.District, l.District},
		{f.Mandal, l.Mandal},
		{f.State, l.State},
		{f.Course, l.CourseInterested},
		{f.Source, l.Source},
	} {
		if fld[0] != "" && !strings.EqualFold(fld[0], fld[1]) {
			return false
		}
	}
	switch {
	case f.AssignedTo != "":
		if l.AssignedTo != f.AssignedTo {
			return false
		}
	case f.Unassigned:
		if l.IsAssigned() {
			return false
		}
	}
	if !f.CreatedFrom.IsZero() && l.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && l.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

func leadField(l lead.Lead, col string) interface{} {
	switch col {
	case "updated_at":
		return l.UpdatedAt
	case "name":
		return strings.ToLower(l.Name)
	case "enquiry_number":
		return l.EnquiryNumber
	case "lead_status":
		return l.LeadStatus
	case "assigned_at":
		return l.AssignedAt
	default:
		return l.CreatedAt
	}
}

func (repo *leadRepository) filter(f lead.QueryFilter, ordering []core.DBOrdering) []lead.Lead {
	leads := make([]lead.Lead, 0)
	for _, l := range repo.db.t.leads {
		if matchLead(l, f) {
			leads = append(leads, l)
		}
	}
	sortBy(leads, ordering, leadField, func(l lead.Lead) string { return l.ID })
	return leads
}

func (repo *leadRepository) QueryLeads(
	_ context.Context,
	f lead.QueryFilter,
	page core.Page,
	ordering []core.DBOrdering,
) ([]lead.Lead, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	leads := repo.filter(f, ordering)
	return core.Paginate(leads, page), len(leads), nil
}

func (repo *leadRepository) QueryLeadIDs(_ context.Context, f lead.QueryFilter) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	leads := repo.filter(f, lead.DefaultOrdering)
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

func (repo *leadRepository) GetLead(_ context.Context, id string) (lead.Lead, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.t.leads[id]; ok {
		return l, nil
	}
	return lead.Lead{}, lead.ErrNotFound
}

func (repo *leadRepository) GetLeadsByID(_ context.Context, ids ...string) ([]lead.Lead, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	leads := make([]lead.Lead, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if l, ok := repo.db.t.leads[id]; ok && !seen[id] {
			seen[id] = true
			leads = append(leads, l)
		}
	}
	return leads, nil
}

func (repo *leadRepository) UpdateLead(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.leads[l.ID]; !ok {
		return lead.Lead{}, lead.ErrNotFound
	}
	repo.db.t.leads[l.ID] = l
	return l, nil
}

func (repo *leadRepository) DeleteLeadsByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	t := repo.db.t
	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := t.leads[id]; ok {
			delete(t.leads, id)
			delete(t.joinings, id)
			deleted[id] = true
		}
	}
	if len(deleted) == 0 {
		return 0, nil
	}

	logs := t.activities[:0]
	for _, a := range t.activities {
		if !deleted[a.LeadID] {
			logs = append(logs, a)
		}
	}
	t.activities = logs

	recs := make([]comms.CommunicationRecord, 0, len(t.records))
	for _, r := range t.records {
		if !deleted[r.LeadID] {
			recs = append(recs, r)
		}
	}
	t.records = recs

	for id, a := range t.admissions {
		if deleted[a.LeadID] {
			delete(t.admissions, id)
		}
	}
	return len(deleted), nil
}

func (repo *leadRepository) CreateActivityLogs(ctx context.Context, logs ...lead.ActivityLog) error {
	defer repo.db.lockWrite(ctx)()

	repo.db.t.activities = append(repo.db.t.activities, logs...)
	return nil
}

func (repo *leadRepository) QueryActivityLogs(_ context.Context, leadID string) ([]lead.ActivityLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// appended in insertion order
	logs := make([]lead.ActivityLog, 0)
	for _, a := range repo.db.t.activities {
		if a.LeadID == leadID {
			logs = append(logs, a)
		}
	}
	return logs, nil
}

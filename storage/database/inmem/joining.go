package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/joining"
)

type joiningRepository struct {
	db *DB
}

var _ joining.Repository = (*joiningRepository)(nil) // interface compliance check

func NewJoiningRepository(db *DB) joining.Repository {
	return &joiningRepository{db: db}
}

func (repo *joiningRepository) GetJoiningByLead(_ context.Context, leadID string) (joining.Joining, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if j, ok := repo.db.t.joinings[leadID]; ok {
		return j, nil
	}
	return joining.Joining{}, joining.ErrNotFound
}

func (repo *joiningRepository) CreateJoining(ctx context.Context, j joining.Joining) (joining.Joining, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.joinings[j.LeadID]; ok {
		return joining.Joining{}, core.NewConflictError("a joining already exists for this lead")
	}
	repo.db.t.joinings[j.LeadID] = j
	return j, nil
}

func (repo *joiningRepository) UpdateJoining(ctx context.Context, j joining.Joining) (joining.Joining, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.joinings[j.LeadID]; !ok {
		return joining.Joining{}, joining.ErrNotFound
	}
	repo.db.t.joinings[j.LeadID] = j
	return j, nil
}

func (repo *joiningRepository) QueryJoiningsByStatus(_ context.Context, status string) ([]joining.Joining, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	joinings := make([]joining.Joining, 0)
	for _, j := range repo.db.t.joinings {
		if j.Status == status {
			joinings = append(joinings, j)
		}
	}
	sort.Slice(joinings, func(i, j int) bool {
		if !joinings[i].SubmittedAt.Equal(joinings[j].SubmittedAt) {
			return joinings[i].SubmittedAt.Before(joinings[j].SubmittedAt)
		}
		return joinings[i].CreatedAt.Before(joinings[j].CreatedAt)
	})
	return joinings, nil
}

// Admissions

func (repo *joiningRepository) CreateAdmission(ctx context.Context, a joining.Admission) (joining.Admission, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.admissions {
		if other.LeadID == a.LeadID {
			return joining.Admission{}, core.NewConflictError("an admission already exists for this lead")
		}
	}
	repo.db.t.admissions[a.ID] = a
	return a, nil
}

func (repo *joiningRepository) UpdateAdmission(ctx context.Context, a joining.Admission) (joining.Admission, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.admissions[a.ID]; !ok {
		return joining.Admission{}, joining.ErrAdmissionNotFound
	}
	repo.db.t.admissions[a.ID] = a
	return a, nil
}

func (repo *joiningRepository) GetAdmission(_ context.Context, id string) (joining.Admission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.t.admissions[id]; ok {
		return a, nil
	}
	return joining.Admission{}, joining.ErrAdmissionNotFound
}

func (repo *joiningRepository) GetAdmissionByLead(_ context.Context, leadID string) (joining.Admission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.t.admissions {
		if a.LeadID == leadID {
			return a, nil
		}
	}
	return joining.Admission{}, joining.ErrAdmissionNotFound
}

func matchAdmission(a joining.Admission, f joining.AdmissionFilter) bool {
	if f.Search != "" && !containsFold(a.AdmissionNumber, f.Search) && !containsFold(a.Payload.Student.FullName, f.Search) {
		return false
	}
	if f.CourseID != "" && a.CourseID != f.CourseID {
		return false
	}
	if f.Quota != "" && a.Quota != f.Quota {
		return false
	}
	if f.Status != "" && !strings.EqualFold(a.Status, f.Status) {
		return false
	}
	if !f.From.IsZero() && a.AdmittedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && a.AdmittedAt.After(f.To) {
		return false
	}
	return true
}

func (repo *joiningRepository) QueryAdmissions(_ context.Context, f joining.AdmissionFilter, page core.Page) ([]joining.Admission, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	admissions := make([]joining.Admission, 0)
	for _, a := range repo.db.t.admissions {
		if matchAdmission(a, f) {
			admissions = append(admissions, a)
		}
	}
	sort.Slice(admissions, func(i, j int) bool {
		if !admissions[i].AdmittedAt.Equal(admissions[j].AdmittedAt) {
			return admissions[i].AdmittedAt.After(admissions[j].AdmittedAt)
		}
		return admissions[i].AdmissionNumber > admissions[j].AdmissionNumber
	})
	return core.Paginate(admissions, page), len(admissions), nil
}

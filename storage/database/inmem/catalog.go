package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/admitflow/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	defer repo.db.lockWrite(ctx)()

	for _, other := range repo.db.t.courses {
		if other.Code == c.Code {
			return catalog.Course{}, catalog.ErrCourseCodeUsed
		}
	}
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.courses[c.ID]; !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *catalogRepository) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.t.courses[id]; ok {
		return c, nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) GetCourseByCode(_ context.Context, code string) (catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, c := range repo.db.t.courses {
		if c.Code == code {
			return c, nil
		}
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) QueryCourses(_ context.Context, activeOnly bool) ([]catalog.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]catalog.Course, 0, len(repo.db.t.courses))
	for _, c := range repo.db.t.courses {
		if activeOnly && !c.IsActive {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	defer repo.db.lockWrite(ctx)()

	t := repo.db.t
	if _, ok := t.courses[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	delete(t.courses, id)
	for bid, b := range t.branches {
		if b.CourseID == id {
			delete(t.branches, bid)
		}
	}
	for fid, f := range t.fees {
		if f.CourseID == id {
			delete(t.fees, fid)
		}
	}
	return nil
}

// Branches

func (repo *catalogRepository) CreateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	defer repo.db.lockWrite(ctx)()

	repo.db.t.branches[b.ID] = b
	return b, nil
}

func (repo *catalogRepository) UpdateBranch(ctx context.Context, b catalog.Branch) (catalog.Branch, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.branches[b.ID]; !ok {
		return catalog.Branch{}, catalog.ErrBranchNotFound
	}
	repo.db.t.branches[b.ID] = b
	return b, nil
}

func (repo *catalogRepository) GetBranch(_ context.Context, id string) (catalog.Branch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.t.branches[id]; ok {
		return b, nil
	}
	return catalog.Branch{}, catalog.ErrBranchNotFound
}

func (repo *catalogRepository) QueryBranches(_ context.Context, courseID string) ([]catalog.Branch, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	branches := make([]catalog.Branch, 0)
	for _, b := range repo.db.t.branches {
		if b.CourseID == courseID {
			branches = append(branches, b)
		}
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Code < branches[j].Code })
	return branches, nil
}

func (repo *catalogRepository) DeleteBranch(ctx context.Context, id string) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.branches[id]; !ok {
		return catalog.ErrBranchNotFound
	}
	delete(repo.db.t.branches, id)
	return nil
}

// Fees

func (repo *catalogRepository) UpsertFee(ctx context.Context, f catalog.FeeStructure) (catalog.FeeStructure, error) {
	defer repo.db.lockWrite(ctx)()

	for id, existing := range repo.db.t.fees {
		if existing.CourseID == f.CourseID && existing.Quota == f.Quota && existing.AcademicYear == f.AcademicYear {
			f.ID = id
			f.CreatedAt = existing.CreatedAt
			break
		}
	}
	repo.db.t.fees[f.ID] = f
	return f, nil
}

func (repo *catalogRepository) QueryFees(_ context.Context, filter catalog.FeeFilter) ([]catalog.FeeStructure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	fees := make([]catalog.FeeStructure, 0)
	for _, f := range repo.db.t.fees {
		if filter.CourseID != "" && f.CourseID != filter.CourseID {
			continue
		}
		if filter.Quota != "" && f.Quota != filter.Quota {
			continue
		}
		if filter.AcademicYear != "" && f.AcademicYear != filter.AcademicYear {
			continue
		}
		fees = append(fees, f)
	}
	sort.Slice(fees, func(i, j int) bool {
		if fees[i].AcademicYear != fees[j].AcademicYear {
			return fees[i].AcademicYear > fees[j].AcademicYear
		}
		return fees[i].Quota < fees[j].Quota
	})
	return fees, nil
}

func (repo *catalogRepository) DeleteFee(ctx context.Context, id string) error {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.t.fees[id]; !ok {
		return catalog.ErrFeeNotFound
	}
	delete(repo.db.t.fees, id)
	return nil
}

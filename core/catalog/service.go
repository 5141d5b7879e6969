package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
)

var (
	// errors
	ErrCourseNotFound = core.NewNotFoundError("course")
	ErrBranchNotFound = core.NewNotFoundError("branch")
	ErrFeeNotFound    = core.NewNotFoundError("fee structure")
	ErrCourseCodeUsed = errors.New("a course with this code already exists")
	ErrBranchCodeUsed = errors.New("a branch with this code already exists for the course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		GetCourseByCode(ctx context.Context, code string) (Course, error)
		QueryCourses(ctx context.Context, activeOnly bool) ([]Course, error)
		// DeleteCourse deletes the course with its branches & fee structures.
		DeleteCourse(ctx context.Context, id string) error

		CreateBranch(ctx context.Context, b Branch) (Branch, error)
		UpdateBranch(ctx context.Context, b Branch) (Branch, error)
		GetBranch(ctx context.Context, id string) (Branch, error)
		QueryBranches(ctx context.Context, courseID string) ([]Branch, error)
		DeleteBranch(ctx context.Context, id string) error

		// UpsertFee replaces the fee structure of the same course, quota & academic year.
		UpsertFee(ctx context.Context, f FeeStructure) (FeeStructure, error)
		QueryFees(ctx context.Context, filter FeeFilter) ([]FeeStructure, error)
		DeleteFee(ctx context.Context, id string) error
	}

	Service interface {
		ListCourses(ctx context.Context, activeOnly bool) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		CreateCourse(ctx context.Context, nc NewCourse) (Course, error)
		UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		ListBranches(ctx context.Context, courseID string) ([]Branch, error)
		CreateBranch(ctx context.Context, courseID string, nb NewBranch) (Branch, error)
		UpdateBranch(ctx context.Context, id string, ub UpdateBranch) (Branch, error)
		DeleteBranch(ctx context.Context, id string) error

		ListFees(ctx context.Context, filter FeeFilter) ([]FeeStructure, error)
		SaveFee(ctx context.Context, nf NewFee) (FeeStructure, error)
		DeleteFee(ctx context.Context, id string) error
		// FeeFor returns the fee structure of a course for the quota & academic year.
		FeeFor(ctx context.Context, courseID, quota, academicYear string) (FeeStructure, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Courses

func (svc *service) ListCourses(ctx context.Context, activeOnly bool) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx, activeOnly)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []Course{}
	}
	return courses, nil
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetCourseByCode(ctx, nc.Code); err == nil {
		return Course{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: ErrCourseCodeUsed.Error()})
	} else if !core.IsNotFound(err) {
		return Course{}, errors.Wrap(err, "finding course by code")
	}

	now := core.NowFunc()
	return svc.repo.CreateCourse(ctx, Course{
		ID:            uuid.NewString(),
		Code:          nc.Code,
		Name:          nc.Name,
		DurationYears: nc.DurationYears,
		IsActive:      nc.IsActive == nil || *nc.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) UpdateCourse(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.Name = core.FirstNonEmpty(uc.Name, c.Name)
	if uc.DurationYears > 0 {
		c.DurationYears = uc.DurationYears
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) DeleteCourse(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// Branches

func (svc *service) ListBranches(ctx context.Context, courseID string) ([]Branch, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	branches, err := svc.repo.QueryBranches(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	if branches == nil {
		branches = []Branch{}
	}
	return branches, nil
}

func (svc *service) CreateBranch(ctx context.Context, courseID string, nb NewBranch) (Branch, error) {
	branches, err := svc.ListBranches(ctx, courseID)
	if err != nil {
		return Branch{}, err
	}
	for _, b := range branches {
		if b.Code == nb.Code {
			return Branch{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: ErrBranchCodeUsed.Error()})
		}
	}

	now := core.NowFunc()
	return svc.repo.CreateBranch(ctx, Branch{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Code:      nb.Code,
		Name:      nb.Name,
		Seats:     nb.Seats,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) UpdateBranch(ctx context.Context, id string, ub UpdateBranch) (Branch, error) {
	b, err := svc.repo.GetBranch(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	b.Name = core.FirstNonEmpty(ub.Name, b.Name)
	if ub.Seats != nil {
		b.Seats = *ub.Seats
	}
	b.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateBranch(ctx, b)
}

func (svc *service) DeleteBranch(ctx context.Context, id string) error {
	return svc.repo.DeleteBranch(ctx, id)
}

// Fees

func (svc *service) ListFees(ctx context.Context, filter FeeFilter) ([]FeeStructure, error) {
	fees, err := svc.repo.QueryFees(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	if fees == nil {
		fees = []FeeStructure{}
	}
	return fees, nil
}

func (svc *service) SaveFee(ctx context.Context, nf NewFee) (FeeStructure, error) {
	if _, err := svc.repo.GetCourse(ctx, nf.CourseID); err != nil {
		if core.IsNotFound(err) {
			return FeeStructure{}, core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: ErrCourseNotFound.Error()})
		}
		return FeeStructure{}, errors.Wrap(err, "finding course")
	}

	now := core.NowFunc()
	return svc.repo.UpsertFee(ctx, FeeStructure{
		ID:           uuid.NewString(),
		CourseID:     nf.CourseID,
		Quota:        nf.Quota,
		AcademicYear: nf.AcademicYear,
		Components:   nf.Components,
		Total:        sumComponents(nf.Components),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) DeleteFee(ctx context.Context, id string) error {
	return svc.repo.DeleteFee(ctx, id)
}

func (svc *service) FeeFor(ctx context.Context, courseID, quota, academicYear string) (FeeStructure, error) {
	fees, err := svc.repo.QueryFees(ctx, FeeFilter{CourseID: courseID, Quota: quota, AcademicYear: academicYear})
	if err != nil {
		return FeeStructure{}, errors.Wrap(err, "querying fee structures")
	}
	if len(fees) == 0 {
		return FeeStructure{}, ErrFeeNotFound
	}
	return fees[0], nil
}

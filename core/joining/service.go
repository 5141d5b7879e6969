package joining

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admitflow/core"
	"github.com/trezcool/admitflow/core/catalog"
	"github.com/trezcool/admitflow/core/lead"
	"github.com/trezcool/admitflow/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("joining")
	ErrAdmissionNotFound = core.NewNotFoundError("admission")
	ErrApprovedLocked    = core.NewConflictError("an approved joining cannot be modified")
	ErrNotDraft          = core.NewConflictError("only draft joinings can be submitted")
	ErrNotPending        = core.NewConflictError("joining is not pending approval")
)

type (
	Repository interface {
		GetJoiningByLead(ctx context.Context, leadID string) (Joining, error)
		CreateJoining(ctx context.Context, j Joining) (Joining, error)
		UpdateJoining(ctx context.Context, j Joining) (Joining, error)
		QueryJoiningsByStatus(ctx context.Context, status string) ([]Joining, error)

		CreateAdmission(ctx context.Context, a Admission) (Admission, error)
		UpdateAdmission(ctx context.Context, a Admission) (Admission, error)
		GetAdmission(ctx context.Context, id string) (Admission, error)
		GetAdmissionByLead(ctx context.Context, leadID string) (Admission, error)
		QueryAdmissions(ctx context.Context, filter AdmissionFilter, page core.Page) ([]Admission, int, error)
	}

	Service interface {
		Get(ctx context.Context, leadID string, viewer user.User) (Joining, error)
		SaveDraft(ctx context.Context, leadID string, sj SaveJoining, actor user.User) (Joining, error)
		Submit(ctx context.Context, leadID string, actor user.User) (Joining, error)
		Approve(ctx context.Context, leadID string, actor user.User) (Admission, error)
		SendBack(ctx context.Context, leadID string, sb SendBack, actor user.User) (Joining, error)
		ListPending(ctx context.Context) ([]Joining, error)

		GetAdmission(ctx context.Context, id string) (Admission, error)
		GetAdmissionByLead(ctx context.Context, leadID string, viewer user.User) (Admission, error)
		QueryAdmissions(ctx context.Context, filter AdmissionFilter, page core.Page) ([]Admission, core.PageMeta, error)
		UpdateAdmission(ctx context.Context, id string, ua UpdateAdmission) (Admission, error)
	}

	service struct {
		repo       Repository
		tx         core.Transactor
		seq        core.Sequencer
		leadSvc    lead.Service
		catalogSvc catalog.Service
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	tx core.Transactor,
	seq core.Sequencer,
	leadSvc lead.Service,
	catalogSvc catalog.Service,
	logger core.Logger,
) Service {
	return &service{repo: repo, tx: tx, seq: seq, leadSvc: leadSvc, catalogSvc: catalogSvc, logger: logger}
}

func (svc *service) Get(ctx context.Context, leadID string, viewer user.User) (Joining, error) {
	if _, err := svc.leadSvc.Get(ctx, leadID, viewer); err != nil {
		return Joining{}, err
	}
	return svc.repo.GetJoiningByLead(ctx, leadID)
}

// prefill seeds a new joining form from the lead.
func prefill(l lead.Lead) Payload {
	return Payload{
		Student: StudentSection{FullName: l.Name, Phone: l.Phone, Email: l.Email},
		Parents: ParentsSection{FatherName: l.FatherName, FatherPhone: l.FatherPhone, MotherName: l.MotherName},
		Address: AddressSection{Village: l.Village, Mandal: l.Mandal, District: l.District, State: l.State},
	}
}

func (svc *service) SaveDraft(ctx context.Context, leadID string, sj SaveJoining, actor user.User) (Joining, error) {
	var j Joining
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		l, err := svc.leadSvc.Get(ctx, leadID, actor)
		if err != nil {
			return err
		}
		if err = svc.checkCourse(ctx, sj.CourseID, sj.BranchID); err != nil {
			return err
		}

		now := core.NowFunc()
		j, err = svc.repo.GetJoiningByLead(ctx, leadID)
		switch {
		case core.IsNotFound(err):
			payload := prefill(l)
			mergePayload(&payload, sj.Payload)
			j = Joining{
				ID:        uuid.NewString(),
				LeadID:    leadID,
				Status:    StatusDraft,
				CourseID:  sj.CourseID,
				BranchID:  sj.BranchID,
				Quota:     core.FirstNonEmpty(sj.Quota, l.Quota),
				Payload:   payload,
				CreatedAt: now,
				UpdatedAt: now,
			}
			j, err = svc.repo.CreateJoining(ctx, j)
			return errors.Wrap(err, "creating joining")
		case err != nil:
			return errors.Wrap(err, "finding joining")
		}

		if j.IsApproved() {
			return ErrApprovedLocked
		}
		if j.IsPending() && !actor.IsManager() {
			return core.ErrForbidden
		}
		j.CourseID = core.FirstNonEmpty(sj.CourseID, j.CourseID)
		j.BranchID = core.FirstNonEmpty(sj.BranchID, j.BranchID)
		j.Quota = core.FirstNonEmpty(sj.Quota, j.Quota)
		mergePayload(&j.Payload, sj.Payload)
		j.UpdatedAt = now
		j, err = svc.repo.UpdateJoining(ctx, j)
		return errors.Wrap(err, "updating joining")
	})
	if err != nil {
		return Joining{}, err
	}
	return j, nil
}

// mergePayload copies the non-empty sections of src over dst.
func mergePayload(dst *Payload, src Payload) {
	if src.Student != (StudentSection{}) {
		dst.Student = src.Student
	}
	if src.Parents != (ParentsSection{}) {
		dst.Parents = src.Parents
	}
	if src.Address != (AddressSection{}) {
		dst.Address = src.Address
	}
	if len(src.Education) > 0 {
		dst.Education = src.Education
	}
	if len(src.Documents) > 0 {
		dst.Documents = src.Documents
	}
}

func (svc *service) checkCourse(ctx context.Context, courseID, branchID string) error {
	if courseID == "" {
		return nil
	}
	if _, err := svc.catalogSvc.GetCourse(ctx, courseID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "courseId", Error: catalog.ErrCourseNotFound.Error()})
		}
		return errors.Wrap(err, "finding course")
	}
	if branchID == "" {
		return nil
	}
	branches, err := svc.catalogSvc.ListBranches(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	for _, b := range branches {
		if b.ID == branchID {
			return nil
		}
	}
	return core.NewValidationError(nil, core.FieldError{Field: "branchId", Error: catalog.ErrBranchNotFound.Error()})
}

func (svc *service) Submit(ctx context.Context, leadID string, actor user.User) (Joining, error) {
	var j Joining
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if j, err = svc.Get(ctx, leadID, actor); err != nil {
			return err
		}
		if !j.IsDraft() {
			return ErrNotDraft
		}
		if missing := j.missingFields(); len(missing) > 0 {
			return core.NewValidationError(nil, missing...)
		}

		now := core.NowFunc()
		j.Status = StatusPendingApproval
		j.SubmittedAt = now
		j.SubmittedBy = actor.ID
		j.Remarks = ""
		j.UpdatedAt = now
		j, err = svc.repo.UpdateJoining(ctx, j)
		return errors.Wrap(err, "updating joining")
	})
	if err != nil {
		return Joining{}, err
	}
	return j, nil
}

// Approve mints the admission of a pending joining and marks the lead as admitted.
func (svc *service) Approve(ctx context.Context, leadID string, actor user.User) (Admission, error) {
	if !actor.IsManager() {
		return Admission{}, core.ErrForbidden
	}

	var adm Admission
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		j, err := svc.Get(ctx, leadID, actor)
		if err != nil {
			return err
		}
		if !j.IsPending() {
			return ErrNotPending
		}

		course, err := svc.catalogSvc.GetCourse(ctx, j.CourseID)
		if err != nil {
			return errors.Wrap(err, "finding course")
		}

		now := core.NowFunc()
		seq, err := svc.seq.Next(ctx, admissionSeqKey(now, course.Code))
		if err != nil {
			return errors.Wrap(err, "getting admission sequence")
		}

		var totalFee float64
		fee, err := svc.catalogSvc.FeeFor(ctx, course.ID, j.Quota, catalog.AcademicYear(now))
		switch {
		case err == nil:
			totalFee = fee.Total
		case core.IsNotFound(err):
			svc.logger.Warn(fmt.Sprintf("no fee structure for course %s quota %s", course.Code, j.Quota))
		default:
			return errors.Wrap(err, "finding fee structure")
		}

		adm, err = svc.repo.CreateAdmission(ctx, Admission{
			ID:              uuid.NewString(),
			AdmissionNumber: FormatAdmissionNumber(now, course.Code, seq),
			LeadID:          j.LeadID,
			JoiningID:       j.ID,
			CourseID:        j.CourseID,
			BranchID:        j.BranchID,
			Quota:           j.Quota,
			Payload:         j.Payload,
			TotalFee:        totalFee,
			Status:          AdmissionActive,
			AdmittedAt:      now,
			UpdatedAt:       now,
		})
		if err != nil {
			return errors.Wrap(err, "creating admission")
		}

		j.Status = StatusApproved
		j.ApprovedAt = now
		j.ApprovedBy = actor.ID
		j.UpdatedAt = now
		if _, err = svc.repo.UpdateJoining(ctx, j); err != nil {
			return errors.Wrap(err, "updating joining")
		}

		_, _, err = svc.leadSvc.AddActivity(ctx, leadID, lead.NewActivity{
			NewStatus: lead.StatusAdmitted,
			Comment:   fmt.Sprintf("Admission %s approved", adm.AdmissionNumber),
		}, actor)
		return errors.Wrap(err, "marking lead as admitted")
	})
	if err != nil {
		return Admission{}, err
	}
	svc.logger.Info(fmt.Sprintf("admission %s minted for lead %s", adm.AdmissionNumber, leadID), actor)
	return adm, nil
}

func (svc *service) SendBack(ctx context.Context, leadID string, sb SendBack, actor user.User) (Joining, error) {
	if !actor.IsManager() {
		return Joining{}, core.ErrForbidden
	}

	var j Joining
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if j, err = svc.Get(ctx, leadID, actor); err != nil {
			return err
		}
		if !j.IsPending() {
			return ErrNotPending
		}
		j.Status = StatusDraft
		j.Remarks = sb.Remarks
		j.UpdatedAt = core.NowFunc()
		j, err = svc.repo.UpdateJoining(ctx, j)
		return errors.Wrap(err, "updating joining")
	})
	if err != nil {
		return Joining{}, err
	}
	return j, nil
}

func (svc *service) ListPending(ctx context.Context) ([]Joining, error) {
	joinings, err := svc.repo.QueryJoiningsByStatus(ctx, StatusPendingApproval)
	if err != nil {
		return nil, errors.Wrap(err, "querying pending joinings")
	}
	if joinings == nil {
		joinings = []Joining{}
	}
	return joinings, nil
}

// Admissions

func (svc *service) GetAdmission(ctx context.Context, id string) (Admission, error) {
	return svc.repo.GetAdmission(ctx, id)
}

func (svc *service) GetAdmissionByLead(ctx context.Context, leadID string, viewer user.User) (Admission, error) {
	if _, err := svc.leadSvc.Get(ctx, leadID, viewer); err != nil {
		return Admission{}, err
	}
	return svc.repo.GetAdmissionByLead(ctx, leadID)
}

func (svc *service) QueryAdmissions(ctx context.Context, filter AdmissionFilter, page core.Page) ([]Admission, core.PageMeta, error) {
	page = core.NewPage(page.Page, page.Limit)
	adms, total, err := svc.repo.QueryAdmissions(ctx, filter, page)
	if err != nil {
		return nil, core.PageMeta{}, errors.Wrap(err, "querying admissions")
	}
	if adms == nil {
		adms = []Admission{}
	}
	return adms, core.BuildPageMeta(total, page), nil
}

func (svc *service) UpdateAdmission(ctx context.Context, id string, ua UpdateAdmission) (Admission, error) {
	adm, err := svc.repo.GetAdmission(ctx, id)
	if err != nil {
		return Admission{}, err
	}
	if ua.Student != nil {
		adm.Payload.Student = *ua.Student
	}
	if ua.Parents != nil {
		adm.Payload.Parents = *ua.Parents
	}
	if ua.Address != nil {
		adm.Payload.Address = *ua.Address
	}
	if ua.Status != "" {
		adm.Status = ua.Status
	}
	adm.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateAdmission(ctx, adm)
}

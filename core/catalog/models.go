package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
)

type Course struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	DurationYears int       `json:"durationYears"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Branch struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Seats     int       `json:"seats"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type FeeComponent struct {
	Name   string  `json:"name" validate:"required"`
	Amount float64 `json:"amount" validate:"min=0"`
}

type FeeStructure struct {
	ID           string         `json:"id"`
	CourseID     string         `json:"courseId"`
	Quota        string         `json:"quota"`
	AcademicYear string         `json:"academicYear"` // 2026-27
	Components   []FeeComponent `json:"components"`
	Total        float64        `json:"total"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func sumComponents(comps []FeeComponent) float64 {
	var total float64
	for _, c := range comps {
		total += c.Amount
	}
	return total
}

// AcademicYear returns the academic year t falls in; years start in June.
func AcademicYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.June {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

type NewCourse struct {
	Code          string `json:"code" validate:"required,alphanum,max=10"`
	Name          string `json:"name" validate:"required"`
	DurationYears int    `json:"durationYears" validate:"required,min=1,max=6"`
	IsActive      *bool  `json:"isActive"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name          string `json:"name"`
	DurationYears int    `json:"durationYears" validate:"omitempty,min=1,max=6"`
	IsActive      *bool  `json:"isActive"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	return validate.Struct(uc)
}

type NewBranch struct {
	Code  string `json:"code" validate:"required,alphanum,max=10"`
	Name  string `json:"name" validate:"required"`
	Seats int    `json:"seats" validate:"min=0"`
}

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Code = strings.ToUpper(core.CleanString(nb.Code))
	nb.Name = core.CleanString(nb.Name)
	return validate.Struct(nb)
}

type UpdateBranch struct {
	Name  string `json:"name"`
	Seats *int   `json:"seats" validate:"omitempty,min=0"`
}

func (ub *UpdateBranch) Validate(validate *validator.Validate) error {
	ub.Name = core.CleanString(ub.Name)
	return validate.Struct(ub)
}

// NewFee creates or replaces the fee structure of a (course, quota, academic year).
type NewFee struct {
	CourseID     string         `json:"courseId" validate:"required"`
	Quota        string         `json:"quota" validate:"required,quota"`
	AcademicYear string         `json:"academicYear" validate:"required,academic_year"`
	Components   []FeeComponent `json:"components" validate:"required,min=1,dive"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.AcademicYear = core.CleanString(nf.AcademicYear)
	for i := range nf.Components {
		nf.Components[i].Name = core.CleanString(nf.Components[i].Name)
	}
	return validate.Struct(nf)
}

type FeeFilter struct {
	CourseID     string `query:"courseId"`
	Quota        string `query:"quota"`
	AcademicYear string `query:"academicYear"`
}

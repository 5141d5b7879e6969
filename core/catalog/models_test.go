package catalog

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/admitflow/core"
)

func TestAcademicYear(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{date: time.Date(2026, time.May, 31, 0, 0, 0, 0, time.UTC), want: "2025-26"},
		{date: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), want: "2026-27"},
		{date: time.Date(2099, time.December, 1, 0, 0, 0, 0, time.UTC), want: "2099-00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AcademicYear(tt.date))
	}
}

func TestNewFee_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	core.RegisterEnum(validate, translator, "quota", "invalid quota", []string{"Management", "NRI"})
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		fee     NewFee
		wantErr bool
	}{
		{
			name: "valid",
			fee:  NewFee{CourseID: "c1", Quota: "NRI", AcademicYear: "2026-27", Components: []FeeComponent{{Name: "Tuition", Amount: 1000}}},
		},
		{
			name:    "bad academic year",
			fee:     NewFee{CourseID: "c1", Quota: "NRI", AcademicYear: "2026-28", Components: []FeeComponent{{Name: "Tuition", Amount: 1000}}},
			wantErr: true,
		},
		{
			name:    "no components",
			fee:     NewFee{CourseID: "c1", Quota: "NRI", AcademicYear: "2026-27"},
			wantErr: true,
		},
		{
			name:    "negative amount",
			fee:     NewFee{CourseID: "c1", Quota: "NRI", AcademicYear: "2026-27", Components: []FeeComponent{{Name: "Tuition", Amount: -1}}},
			wantErr: true,
		},
		{
			name:    "unknown quota",
			fee:     NewFee{CourseID: "c1", Quota: "Sports", AcademicYear: "2026-27", Components: []FeeComponent{{Name: "Tuition", Amount: 1}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fee.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_sumComponents(t *testing.T) {
	assert.Equal(t, 1750.5, sumComponents([]FeeComponent{{Name: "a", Amount: 1000}, {Name: "b", Amount: 750.5}}))
	assert.Zero(t, sumComponents(nil))
}

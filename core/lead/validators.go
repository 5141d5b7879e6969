package lead

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
)

// InitValidators registers the lead_status & quota tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, "lead_status", "invalid lead status", AllStatuses)
	core.RegisterEnum(validate, translator, "quota", "invalid quota", AllQuotas)
}

package comms

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admitflow/core"
)

// InitValidators registers the call_outcome tag.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, "call_outcome", "invalid call outcome", AllOutcomes)
}

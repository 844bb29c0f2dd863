package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// decodeArgs binds the loose planner argument bag onto a typed request via a
// JSON round trip, then validates it. Type mismatches and failed validation
// both come back as validation_error envelopes, never as transport errors.
func decodeArgs[T any](validate *validator.Validate, args map[string]any, dst *T) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return validationErr("arguments illisibles: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return validationErr("le champ %q attend un %s", typeErr.Field, typeErr.Type)
		}
		return validationErr("arguments invalides: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("validate arguments: %w", err)
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldName(fe))
			}
			return validationErr("champs manquants ou invalides: %s", strings.Join(fields, ", "))
		}
		return validationErr("arguments invalides: %v", err)
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	// StructNamespace is Request.Field; keep just the leaf, snake_cased the
	// way the catalog names it.
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

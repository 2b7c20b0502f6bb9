package app

import (
	"errors"
	"reflect"
	"strings"

	"exam-submission-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so error payloads match the request shape.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct runs tag validation and folds every failure into one ValidationError.
// Missing fields take precedence; malformed ones are reported only when nothing is missing.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			missing = append(missing, fieldPath(fe))
		} else {
			invalid = append(invalid, fieldPath(fe))
		}
	}
	if len(missing) > 0 {
		return domain.NewValidationError("missing required fields", missing)
	}
	return domain.NewValidationError("invalid fields", invalid)
}

// fieldPath strips the root struct name from the namespace ("QuestionInput.content" -> "content").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

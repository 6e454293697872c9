// Package validation checks request and command inputs with
// go-playground/validator and reports failures as structured validation
// errors carrying per-field messages.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
	"github.com/Aman-CERP/invsearch/internal/store"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = validate.RegisterValidation("element_kind", func(fl validator.FieldLevel) bool {
		return store.ElementKind(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("field_type", func(fl validator.FieldLevel) bool {
		return store.FieldType(fl.Field().String()).Valid()
	})
}

// Struct validates s. Failures are returned as an ERR_401 AppError whose
// details map each offending field to a readable message.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fields := Fields(err)
	if len(fields) == 0 {
		return apperr.ValidationError("invalid input", err)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ae := apperr.ValidationError(fmt.Sprintf("invalid %s: %s", names[0], fields[names[0]]), err)
	for _, name := range names {
		ae = ae.WithDetail(name, fields[name])
	}
	return ae
}

// Fields converts validator errors into field name → message.
// Other errors yield an empty map.
func Fields(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return out
	}
	for _, e := range ve {
		out[e.Field()] = message(e)
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "max":
		return fmt.Sprintf("maximum length is %s", e.Param())
	case "min":
		return fmt.Sprintf("minimum length is %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "unique":
		return "must not contain duplicates"
	case "element_kind":
		return fmt.Sprintf("unknown element kind %q", e.Value())
	case "field_type":
		return fmt.Sprintf("unknown field type %q", e.Value())
	default:
		return fmt.Sprintf("failed on '%s'", e.Tag())
	}
}

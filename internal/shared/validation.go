package shared

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// FormErrors maps form field names to user facing messages. The "general"
// key carries form-wide errors.
type FormErrors map[string]string

// NewValidator returns a validator that reports fields by their form tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidationErrors translates validator errors into FormErrors. Errors of any
// other type end up under "general".
func ValidationErrors(err error) FormErrors {
	errs := FormErrors{}
	if err == nil {
		return errs
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["general"] = UserSafeMessage(err)
		return errs
	}
	for _, fe := range fieldErrs {
		if _, exists := errs[fe.Field()]; exists {
			continue
		}
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	label := humanize(fe.StructField())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email", "gt", "number", "numeric":
		return label + " is invalid"
	case "min":
		return label + " is too short"
	case "max":
		return label + " is too long"
	case "eqfield":
		return "The passwords must match"
	default:
		return label + " is invalid"
	}
}

// humanize turns "ConfirmPassword" into "Confirm password" and "RevieweeID"
// into "Reviewee id".
func humanize(name string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range name {
		upper := unicode.IsUpper(r)
		if i > 0 && upper {
			if prevLower {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
		prevLower = !upper
	}
	return b.String()
}

// NormalizeEmail trims and lowercases an email address. Emails are stored in
// lowercase whatever the user typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName trims a display name and converts it to NFC so visually equal
// names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Package validator registers the clinic's custom binding rules on the
// validator/v10 engine that gin uses for request binding.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-scheduler/internal/schedule"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s-]{6,18}[0-9]$`)

// FieldError is the client-facing shape of a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required":  "field is required",
	"email":     "invalid email format",
	"min":       "value is too short",
	"max":       "value is too long",
	"url":       "invalid url",
	"datetime":  "date must be YYYY-MM-DD",
	"slot_time": "time must be HH:MM",
	"phone":     "invalid phone number",
	"pin6":      "must be exactly 6 digits",
}

// Register adds the custom rules to v and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"slot_time": func(fl validator.FieldLevel) bool {
			_, err := schedule.ParseClock(fl.Field().String())
			return err == nil
		},
		"phone": func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		},
		"pin6": func(fl validator.FieldLevel) bool {
			return security.ValidPIN(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

var ginOnce sync.Once

// RegisterGin installs the rules on gin's default binding engine. Safe to
// call more than once.
func RegisterGin() error {
	var err error
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin binding engine is not validator/v10")
			return
		}
		err = Register(v)
	})
	return err
}

// Fields flattens a binding error into per-field messages. It returns nil
// when err is not a validation failure.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = e.Error()
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cap-cambodia/cap/internal/catalog"
	"github.com/cap-cambodia/cap/internal/challenge"
)

type LanguageRequest struct {
	Language string `json:"language" validate:"required,language"`
}

type TextRequest struct {
	Text string `json:"text" validate:"required"`
}

type AnswerRequest struct {
	Choice string `json:"choice" validate:"required,oneof=A B a b"`
}

// ReportRequest is the community report form. Accuracy may be omitted when
// a share draft is pending; the draft score wins either way.
type ReportRequest struct {
	Type        string `json:"type" validate:"omitempty,max=32"`
	Description string `json:"description" validate:"max=500"`
	Explanation string `json:"explanation" validate:"max=2000"`
	Category    string `json:"category" validate:"required"`
	Accuracy    *int   `json:"accuracy" validate:"omitempty,min=0,max=100"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		_, err := catalog.ParseLanguage(fl.Field().String())
		return err == nil
	})
	return v
}

func GetValidator() *validator.Validate {
	return validate
}

func FormatValidationErrors(err error) []ValidationError {
	var out []ValidationError
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		var message string
		switch fe.Tag() {
		case "required":
			message = fe.Field() + " is required"
		case "min":
			message = fe.Field() + " must be at least " + fe.Param()
		case "max":
			message = fe.Field() + " must be at most " + fe.Param()
		case "oneof":
			message = fe.Field() + " must be one of: " + fe.Param()
		case "language":
			message = fe.Field() + " must be km or en"
		default:
			message = fe.Field() + " is invalid"
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: message})
	}
	return out
}

func (r AnswerRequest) choice() challenge.Choice {
	c, _ := challenge.ParseChoice(r.Choice)
	return c
}

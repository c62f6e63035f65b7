package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/services/ai"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("learning_style", validateLearningStyle); err != nil {
		panic(fmt.Sprintf("failed to register learning_style validator: %v", err))
	}
	if err := Validate.RegisterValidation("model_kind", validateModelKind); err != nil {
		panic(fmt.Sprintf("failed to register model_kind validator: %v", err))
	}
}

// validateLearningStyle accepts any spelling ParseLearningStyle accepts.
// An empty value clears the style.
func validateLearningStyle(fl validator.FieldLevel) bool {
	_, err := nlp.ParseLearningStyle(fl.Field().String())
	return err == nil
}

func validateModelKind(fl validator.FieldLevel) bool {
	_, err := ai.ParseKind(fl.Field().String())
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// FieldErrors renders validator errors as "field: rule" pairs.
func FieldErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

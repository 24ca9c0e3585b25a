package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"golang.org/x/text/language"

	"outlook_service/internal/app/apperr"
)

var validate = newValidator()

// newValidator adds notblank, which rejects whitespace-only text like requireText does.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// TrendsHash is the SHA-256 digest, hex encoded, of the exact trends text.
func TrendsHash(trends string) string {
	sum := sha256.Sum256([]byte(trends))
	return hex.EncodeToString(sum[:])
}

func validateStruct(op string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Validation, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.New(apperr.Validation, op, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "lte":
		return fe.Field() + " must be at most " + fe.Param()
	}
	return fe.Field() + " failed " + fe.Tag()
}

func requireText(op, field, v string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.New(apperr.Validation, op, field+" is required")
	}
	return nil
}

// validLang accepts well-formed, known language tags such as "EN" or "fr-CA".
func validLang(tag string) bool {
	_, err := language.Parse(tag)
	return err == nil
}

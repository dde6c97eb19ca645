package common

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/mcnijman/go-emailaddress"
)

// GenericEchoValidator validates bound request bodies and answers 400 on failure.
// Besides the built-in tags it knows "emailaddress".
type GenericEchoValidator struct {
	Validator *validator.Validate
	once      sync.Once
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	gv.once.Do(func() {
		if gv.Validator == nil {
			gv.Validator = NewValidator()
		}
	})
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
	}
	return nil
}

func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("emailaddress", isEmailAddress)
	return v
}

func isEmailAddress(fl validator.FieldLevel) bool {
	_, err := emailaddress.Parse(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

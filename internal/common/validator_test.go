package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

type contactRequest struct {
	Email string `validate:"required,emailaddress"`
	Link  string `validate:"omitempty,url"`
}

func TestGenericEchoValidator(t *testing.T) {
	tests := []struct {
		name    string
		request contactRequest
		wantErr bool
	}{
		{name: "valid", request: contactRequest{Email: "ada@example.com", Link: "https://example.com"}},
		{name: "surrounding spaces", request: contactRequest{Email: " ada@example.com "}},
		{name: "missing email", request: contactRequest{}, wantErr: true},
		{name: "no at sign", request: contactRequest{Email: "ada.example.com"}, wantErr: true},
		{name: "bad link", request: contactRequest{Email: "ada@example.com", Link: "example"}, wantErr: true},
	}

	v := &GenericEchoValidator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.request)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
				t.Errorf("expected a 400 HTTPError, got %v", err)
			}
		})
	}
}

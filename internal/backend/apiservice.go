package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jo-hoe/boothprint/internal/backend/database"
	"github.com/jo-hoe/boothprint/internal/backend/lock"
	"github.com/jo-hoe/boothprint/internal/backend/printing"
	"github.com/jo-hoe/boothprint/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/mcnijman/go-emailaddress"
)

// BoothService is the part of the core service exposed over HTTP
type BoothService interface {
	Submit(ctx context.Context, submission database.NewSubmission) (*core.SubmitResult, error)
	Evaluate(ctx context.Context) (*printing.Evaluation, error)
	TestPrint(ctx context.Context) (printing.PrintResult, error)
	TestEmail(ctx context.Context) error
	GeneratePrompt(ctx context.Context, text string) (string, error)
}

type PrintRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,emailaddress"`
	Company  string `json:"company" validate:"required"`
	ImageURL string `json:"image_url" validate:"required,url"`
}

type PrintResponse struct {
	Success        bool `json:"success"`
	ShouldPrintNow bool `json:"should_print_now"`
	IsPrintingNow  bool `json:"is_printing_now"`
}

type BatchResponse struct {
	Ready     bool     `json:"ready"`
	Pending   int      `json:"pending"`
	ImageURLs []string `json:"image_urls"`
}

type TestPrintResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

type GenerateRequest struct {
	Text string `json:"text" validate:"required"`
}

type GenerateResponse struct {
	Completion string `json:"completion"`
}

type APIService struct {
	service BoothService
}

func NewAPIService(service BoothService) *APIService {
	return &APIService{service: service}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/", s.healthHandler)

	e.POST("/print", s.printHandler)
	e.GET("/batch", s.batchHandler)
	e.POST("/testprinter", s.testPrinterHandler)
	e.POST("/testemail", s.testEmailHandler)
	e.POST("/generate", s.generateHandler)
}

func (s *APIService) healthHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]bool{"healthy": true})
}

func (s *APIService) printHandler(ctx echo.Context) error {
	var request PrintRequest
	if err := ctx.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	address, err := emailaddress.Parse(strings.TrimSpace(request.Email))
	if err != nil {
		slog.Error("printHandler: invalid email address",
			"status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "received invalid email address")
	}

	// the print cycle must finish even if the kiosk drops the connection
	result, err := s.service.Submit(context.WithoutCancel(ctx.Request().Context()), database.NewSubmission{
		Name:     request.Name,
		Email:    address.String(),
		Company:  request.Company,
		ImageURL: request.ImageURL,
	})
	if err != nil {
		slog.Error("printHandler: failed to submit image",
			"status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit image")
	}

	return ctx.JSON(http.StatusOK, PrintResponse{
		Success:        result.Success,
		ShouldPrintNow: result.ShouldPrintNow,
		IsPrintingNow:  result.IsPrintingNow,
	})
}

func (s *APIService) batchHandler(ctx echo.Context) error {
	evaluation, err := s.service.Evaluate(ctx.Request().Context())
	if err != nil {
		slog.Error("batchHandler: failed to evaluate batch",
			"status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to evaluate batch")
	}

	return ctx.JSON(http.StatusOK, BatchResponse{
		Ready:     evaluation.Ready,
		Pending:   len(evaluation.Candidates),
		ImageURLs: evaluation.ImageURLs(),
	})
}

func (s *APIService) testPrinterHandler(ctx echo.Context) error {
	result, err := s.service.TestPrint(context.WithoutCancel(ctx.Request().Context()))
	if errors.Is(err, lock.ErrLockHeld) {
		return echo.NewHTTPError(http.StatusConflict, "printer is busy")
	}
	if err != nil {
		slog.Error("testPrinterHandler: test print failed",
			"status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "test print failed")
	}

	return ctx.JSON(http.StatusOK, TestPrintResponse{Status: string(result.Status), JobID: result.JobID})
}

func (s *APIService) testEmailHandler(ctx echo.Context) error {
	err := s.service.TestEmail(ctx.Request().Context())
	if errors.Is(err, core.ErrNoTestRecipient) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no test recipient configured")
	}
	if err != nil {
		slog.Error("testEmailHandler: failed to send test email",
			"status", http.StatusBadGateway, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to send test email")
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *APIService) generateHandler(ctx echo.Context) error {
	var request GenerateRequest
	if err := ctx.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "received malformed request body")
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	completion, err := s.service.GeneratePrompt(ctx.Request().Context(), request.Text)
	if errors.Is(err, core.ErrPromptUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "prompt generation is not configured")
	}
	if err != nil {
		slog.Error("generateHandler: prompt generation failed",
			"status", http.StatusBadGateway, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "prompt generation failed")
	}

	return ctx.JSON(http.StatusOK, GenerateResponse{Completion: completion})
}

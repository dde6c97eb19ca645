package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
	"github.com/jo-hoe/boothprint/internal/backend/database"
	"github.com/jo-hoe/boothprint/internal/backend/fetch"
	"github.com/jo-hoe/boothprint/internal/backend/lock"
	"github.com/jo-hoe/boothprint/internal/backend/mail"
	"github.com/jo-hoe/boothprint/internal/backend/printing"
	"github.com/jo-hoe/boothprint/internal/backend/prompt"

	// registers the sheet commands in the default registry
	_ "github.com/jo-hoe/boothprint/internal/backend/commands"
)

var (
	// ErrPromptUnavailable is returned when no text model is configured
	ErrPromptUnavailable = errors.New("prompt generation is not configured")
	// ErrNoTestRecipient is returned by TestEmail when mail.testRecipient is empty
	ErrNoTestRecipient = errors.New("no test email recipient configured")
)

// SampleImageURLs are used by the printer and email self-tests
var SampleImageURLs = []string{
	"https://cdn.openai.com/labs/images/A%20Shiba%20Inu%20dog%20wearing%20a%20beret%20and%20black%20turtleneck.webp?v=1",
	"https://cdn.openai.com/labs/images/A%20comic%20book%20cover%20of%20a%20superhero%20wearing%20headphones.webp?v=1",
	"https://cdn.openai.com/labs/images/A%20cat%20riding%20a%20motorcycle.webp?v=1",
	"https://cdn.openai.com/labs/images/A%20photograph%20of%20a%20sunflower%20with%20sunglasses%20on%20in%20the%20middle%20of%20the%20flower%20in%20a%20field%20on%20a%20bright%20sunny%20day.webp?v=1",
	"https://cdn.openai.com/labs/images/A%20handpalm%20with%20a%20tree%20growing%20on%20top%20of%20it.webp?v=1",
	"https://cdn.openai.com/labs/images/An%20oil%20pastel%20drawing%20of%20an%20annoyed%20cat%20in%20a%20spaceship.webp?v=1",
}

const emailTimeout = 2 * time.Minute

// Dependencies are the external collaborators of the core service
type Dependencies struct {
	Store   database.DatabaseService
	Fetcher fetch.Fetcher
	Queue   printing.PrintQueue
	Locker  lock.Locker
	Mailer  mail.Mailer
	// Model may be nil, which disables prompt generation
	Model prompt.TextModel
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	evaluator       *printing.BatchEvaluator
	compositor      *printing.Compositor
	dispatcher      *printing.Dispatcher
	locker          lock.Locker
	mailer          mail.Mailer
	generator       *prompt.Generator

	emails sync.WaitGroup
}

// SubmitResult answers a print request
type SubmitResult struct {
	Success        bool
	ShouldPrintNow bool
	IsPrintingNow  bool
}

// CycleResult describes what one print cycle did
type CycleResult struct {
	Ready   bool
	Pending int
	Printed bool
	BatchID string
	Print   printing.PrintResult
}

// NewCoreService wires the production collaborators from the configuration
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	locker, err := lock.NewLocker(config.Lock.Type, lock.RedisConfig{
		Addr:     config.Lock.RedisAddr,
		Password: config.Secrets.RedisPassword,
		DB:       config.Lock.RedisDB,
		TTL:      config.Lock.TTL(),
	})
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize print lock: %w", err)
	}

	fetcher := fetch.NewHTTPFetcher(config.Fetch.Timeout(), config.Fetch.MaxBytes)

	var model prompt.TextModel
	if config.Secrets.GeminiAPIKey != "" {
		model, err = prompt.NewGeminiModel(ctx, config.Secrets.GeminiAPIKey, config.Prompt.Model)
		if err != nil {
			_ = locker.Close()
			_ = databaseService.Close()
			return nil, err
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set, prompt generation disabled")
	}

	service, err := NewCoreServiceWithDependencies(ctx, config, Dependencies{
		Store:   databaseService,
		Fetcher: fetcher,
		Queue:   printing.NewLPQueue(config.Printer.Command, config.Printer.Destination, config.Printer.Timeout()),
		Locker:  locker,
		Mailer: mail.NewMailer(config.Secrets.SendGridAPIKey, fetcher, mail.Config{
			From:     config.Mail.From,
			FromName: config.Mail.FromName,
			Subject:  config.Mail.Subject,
		}),
		Model: model,
	})
	if err != nil {
		_ = locker.Close()
		_ = databaseService.Close()
		return nil, err
	}
	return service, nil
}

// NewCoreServiceWithDependencies builds the service around the given collaborators and
// releases batch claims left behind by an interrupted run
func NewCoreServiceWithDependencies(ctx context.Context, config *ServiceConfig, deps Dependencies) (*CoreService, error) {
	pipeline, err := commandstructure.NewCommandInvokerFromConfig(sheetCommands(config.Sheet))
	if err != nil {
		return nil, fmt.Errorf("failed to build sheet commands: %w", err)
	}
	slog.Info("sheet commands configured", "commands", pipeline.Names())

	compositor, err := printing.NewCompositor(deps.Fetcher, pipeline, config.Storage.ImagesDir, config.Storage.BatchesDir)
	if err != nil {
		return nil, err
	}

	released, err := deps.Store.ReleaseUnprintedClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to release stale batch claims: %w", err)
	}
	if released > 0 {
		slog.Warn("released stale batch claims", "submissions", released)
	}

	service := &CoreService{
		config:          config,
		databaseService: deps.Store,
		evaluator:       printing.NewBatchEvaluator(deps.Store, printing.BatchSize),
		compositor:      compositor,
		dispatcher:      printing.NewDispatcher(deps.Queue, deps.Store),
		locker:          deps.Locker,
		mailer:          deps.Mailer,
	}
	if deps.Model != nil {
		service.generator = prompt.NewGenerator(deps.Model)
	}
	return service, nil
}

// sheetCommands fills the branding path into BrandingCommand, or drops the command when
// no branding is configured
func sheetCommands(sheet Sheet) []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, 0, len(sheet.Commands))
	for _, cmd := range sheet.Commands {
		params := make(map[string]any, len(cmd.Params)+1)
		for k, v := range cmd.Params {
			params[k] = v
		}

		if cmd.Name == "BrandingCommand" {
			if _, ok := params["path"]; !ok {
				if sheet.BrandingPath == "" {
					slog.Warn("no branding path configured, skipping BrandingCommand")
					continue
				}
				params["path"] = sheet.BrandingPath
			}
		}
		configs = append(configs, commandstructure.CommandConfig{Name: cmd.Name, Params: params})
	}
	return configs
}

// Submit stores a submission, runs a print cycle and schedules the email to the submitter.
// A failed insert is reported through Success; print problems are only logged.
func (service *CoreService) Submit(ctx context.Context, submission database.NewSubmission) (*SubmitResult, error) {
	result := &SubmitResult{}

	if _, err := service.databaseService.CreateSubmission(ctx, submission); err != nil {
		slog.Error("failed to store submission", "email", submission.Email, "error", err)
	} else {
		result.Success = true
	}

	cycle, err := service.RunPrintCycle(ctx)
	if err != nil {
		slog.Error("print cycle failed", "error", err)
	}
	if cycle != nil {
		result.ShouldPrintNow = cycle.Ready
		result.IsPrintingNow = cycle.Printed
	}

	service.ScheduleEmail(submission.Email, submission.ImageURL)
	return result, nil
}

// Evaluate reports whether a sheet is ready without changing anything
func (service *CoreService) Evaluate(ctx context.Context) (*printing.Evaluation, error) {
	return service.evaluator.Evaluate(ctx)
}

// RunPrintCycle prints one sheet when enough submissions are pending. Only one cycle prints
// at a time; a cycle that finds the lock taken leaves its rows for the next trigger.
func (service *CoreService) RunPrintCycle(ctx context.Context) (*CycleResult, error) {
	evaluation, err := service.evaluator.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	result := &CycleResult{Ready: evaluation.Ready, Pending: len(evaluation.Candidates)}
	if !evaluation.Ready {
		slog.Debug("batch not ready", "pending", result.Pending, "batch_size", printing.BatchSize)
		return result, nil
	}

	unlock, err := service.locker.TryLock(ctx)
	if errors.Is(err, lock.ErrLockHeld) {
		slog.Info("another print job is running, deferring batch", "pending", result.Pending)
		return result, nil
	}
	if err != nil {
		return result, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to release print lock", "error", err)
		}
	}()

	claim, err := service.databaseService.ClaimBatch(ctx, printing.BatchSize)
	if errors.Is(err, database.ErrBatchConflict) {
		slog.Warn("batch claimed concurrently, deferring", "error", err)
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to claim batch: %w", err)
	}
	if claim == nil {
		return result, nil
	}
	result.BatchID = claim.ID

	sheet, err := service.compositor.ComposeBatch(ctx, claim)
	if err != nil {
		if releaseErr := service.databaseService.ReleaseBatch(context.WithoutCancel(ctx), claim.ID); releaseErr != nil {
			slog.Error("failed to release batch", "batch_id", claim.ID, "error", releaseErr)
		}
		return result, fmt.Errorf("failed to compose batch %s: %w", claim.ID, err)
	}

	printResult, err := service.dispatcher.Dispatch(ctx, sheet, claim.ID, true)
	result.Print = printResult
	result.Printed = true
	return result, err
}

// TestPrint prints the sample sheet without touching any submission
func (service *CoreService) TestPrint(ctx context.Context) (printing.PrintResult, error) {
	unlock, err := service.locker.TryLock(ctx)
	if err != nil {
		return printing.PrintResult{}, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to release print lock", "error", err)
		}
	}()

	sheet, err := service.compositor.Compose(ctx, SampleImageURLs)
	if err != nil {
		return printing.PrintResult{}, fmt.Errorf("failed to compose test sheet: %w", err)
	}
	return service.dispatcher.Dispatch(ctx, sheet, "", false)
}

// TestEmail sends a random sample image to the configured test recipient
func (service *CoreService) TestEmail(ctx context.Context) error {
	recipient := service.config.Mail.TestRecipient
	if recipient == "" {
		return ErrNoTestRecipient
	}
	imageURL := SampleImageURLs[rand.IntN(len(SampleImageURLs))]
	return service.mailer.SendImage(ctx, recipient, imageURL)
}

// GeneratePrompt expands text and stores the completion
func (service *CoreService) GeneratePrompt(ctx context.Context, text string) (string, error) {
	if service.generator == nil {
		return "", ErrPromptUnavailable
	}
	completion, err := service.generator.Generate(ctx, text)
	if err != nil {
		return "", err
	}
	if _, err := service.databaseService.CreatePromptCompletion(ctx, text, completion); err != nil {
		slog.Error("failed to store prompt completion", "error", err)
	}
	return completion, nil
}

// ScheduleEmail sends the image in the background; Close waits for pending emails
func (service *CoreService) ScheduleEmail(email, imageURL string) {
	service.emails.Add(1)
	go func() {
		defer service.emails.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := service.mailer.SendImage(ctx, email, imageURL); err != nil {
			slog.Error("failed to send email", "email", email, "image_url", imageURL, "error", err)
		}
	}()
}

// PollPrintCycles runs a print cycle every interval until ctx is done
func (service *CoreService) PollPrintCycles(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := service.RunPrintCycle(ctx); err != nil {
				slog.Error("scheduled print cycle failed", "error", err)
			}
		}
	}
}

// Close waits for pending emails and releases the store and lock
func (service *CoreService) Close() error {
	service.emails.Wait()
	return errors.Join(service.locker.Close(), service.databaseService.Close())
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if !databaseService.DoesDatabaseExist() {
		_ = databaseService.Close()
		return nil, fmt.Errorf("database %s is not reachable", config.Database.ConnectionString)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

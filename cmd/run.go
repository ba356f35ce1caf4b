package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/chart"
	"github.com/spigell/resume-tuner/internal/logger"
	"github.com/spigell/resume-tuner/internal/notify"
	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/secrets"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/service/gemini"
	"github.com/spigell/resume-tuner/internal/service/remote"
	"github.com/spigell/resume-tuner/internal/stage"
	"github.com/spigell/resume-tuner/internal/terminal"
	"github.com/spigell/resume-tuner/internal/workflow"
)

const (
	PromptJobDescription = "Enter job description"
	PromptExtract        = "Extract skills"
	PromptUpload         = "Upload resume file"
	PromptResumeText     = "Enter resume text"
	PromptAnalyze        = "Analyze resume"
	PromptFormat         = "Choose output format"
	PromptTemplate       = "Choose template style"
	PromptTailor         = "Tailor resume"
	PromptPreview        = "Preview tailored resume"
	PromptCreate         = "Create resume from answers"
	PromptReset          = "Reset session"
	PromptExit           = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{
		PromptJobDescription, PromptExtract, PromptUpload, PromptResumeText, PromptAnalyze,
		PromptFormat, PromptTemplate, PromptTailor, PromptPreview, PromptCreate, PromptReset, PromptExit,
	},
	Size: 12,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive resume workflow",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("backend", "b", "", "service backend: remote or gemini")
	runCmd.Flags().StringP("output-dir", "o", "", "directory for tailored documents and previews")

	viper.BindPFlag("service.backend", runCmd.Flags().Lookup("backend"))
	viper.BindPFlag("workflow.output-dir", runCmd.Flags().Lookup("output-dir"))
}

// workspace is the UI side of one interactive run.
type workspace struct {
	jobDescription string

	session     *workflow.Session
	controllers *stage.Controllers
	surface     *terminal.Surface
	notifier    *notify.Channel
	logger      *zap.Logger

	// read asks the user for one line of input.
	read func(label string) (string, error)
}

// run is the main command for the cli.
func run() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-tuner", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	gateway, err := newGateway(ctx, config, logger)
	if err != nil {
		logger.Fatal(
			"creating a service gateway",
			zap.Error(err),
			zap.String("hint", "set RESUME_TUNER_URL or service.url, and GEMINI_API_KEY_FILE for the gemini backend"),
		)
	}

	ws, err := newWorkspace(gateway, config, logger, os.Stdout)
	if err != nil {
		logger.Fatal("preparing the workspace", zap.Error(err))
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Info("exiting", zap.Error(err))
			return
		}

		if err := ws.handleAction(ctx, action); errors.Is(err, errExit) {
			return
		}
	}
}

func newWorkspace(gateway service.Gateway, config *Config, logger *zap.Logger, out io.Writer) (*workspace, error) {
	sess := workflow.NewSession(chart.NewRenderer(terminal.NewBarCanvas(out), logger))

	format := resume.OutputFormat(config.Workflow.OutputFormat)
	style := resume.TemplateStyle(config.Workflow.TemplateStyle)
	if err := sess.SetOptions(resume.OptionsPatch{OutputFormat: &format, TemplateStyle: &style}).Validate(); err != nil {
		return nil, err
	}

	surface := terminal.NewSurface(out, config.Workflow.OutputDir, logger)
	channel := notify.New(terminal.NewNotifications(out), logger)

	controllers := stage.New(gateway, surface, channel, logger)
	if config.Workflow.Policy == PolicyLastRequest {
		controllers.Policy = stage.LastRequestWins
	}

	return &workspace{
		session:     sess,
		controllers: controllers,
		surface:     surface,
		notifier:    channel,
		logger:      logger,
		read:        promptLine,
	}, nil
}

// handleAction performs one menu action. Failures other than an exit request
// or a cancelled prompt are reported to the user and the session carries on.
func (w *workspace) handleAction(ctx context.Context, action string) error {
	err := w.perform(ctx, action)
	if err == nil || errors.Is(err, errExit) {
		return err
	}

	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		w.logger.Debug("prompt cancelled", zap.String("action", action), zap.Error(err))
		return nil
	}

	w.logger.Warn("action failed", zap.String("action", action), zap.Error(err))
	w.notifier.Notify(err.Error(), notify.KindError)

	return nil
}

func (w *workspace) perform(ctx context.Context, action string) error {
	switch action {
	case PromptJobDescription:
		text, err := w.readText("Job description (text or @file)")
		if err != nil {
			return err
		}
		w.jobDescription = text
		return nil
	case PromptExtract:
		return w.wait(ctx, w.controllers.Extract(ctx, w.session, w.jobDescription))
	case PromptUpload:
		return w.upload(ctx)
	case PromptResumeText:
		text, err := w.readText("Resume (text or @file)")
		if err != nil {
			return err
		}
		w.surface.SetResumeText(text)
		return nil
	case PromptAnalyze:
		return w.wait(ctx, w.controllers.Analyze(ctx, w.session, w.surface.ResumeText(), w.jobDescription))
	case PromptFormat:
		return w.chooseFormat()
	case PromptTemplate:
		return w.chooseTemplate()
	case PromptTailor:
		return w.wait(ctx, w.controllers.Tailor(ctx, w.session, w.surface.ResumeText(), w.jobDescription))
	case PromptPreview:
		return w.wait(ctx, w.controllers.Preview(ctx, w.session, w.surface.ResumeText(), w.jobDescription))
	case PromptCreate:
		text, err := w.readText("About you: contact, summary, education, skills, projects (text or @file)")
		if err != nil {
			return err
		}
		return w.wait(ctx, w.controllers.Create(ctx, w.session, text))
	case PromptReset:
		w.session.Reset()
		if r := w.session.Renderer(); r != nil {
			r.Destroy()
		}
		w.jobDescription = ""
		w.surface.ClearFileSelection()
		w.notifier.Notify("Session reset", notify.KindInfo)
		return nil
	case PromptExit:
		w.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func (w *workspace) upload(ctx context.Context) error {
	path, err := (&promptui.Prompt{Label: "Resume file (pdf or docx)"}).Run()
	if err != nil {
		return err
	}

	selection, err := terminal.LoadFile(path)
	if err != nil {
		w.logger.Warn("loading resume file", zap.String("path", path), zap.Error(err))
		w.notifier.Notify(stage.MsgNoFile, notify.KindError)
		return nil
	}

	w.surface.Select(selection)

	return w.wait(ctx, w.controllers.Ingest(ctx, w.session, w.surface.Selection()))
}

func (w *workspace) chooseFormat() error {
	items := make([]string, 0, len(resume.OutputFormats))
	for _, f := range resume.OutputFormats {
		items = append(items, string(f))
	}

	_, selected, err := (&promptui.Select{Label: "Output format", Items: items}).Run()
	if err != nil {
		return err
	}

	format := resume.OutputFormat(selected)
	opts := w.session.SetOptions(resume.OptionsPatch{OutputFormat: &format})
	w.logger.Debug("options updated", zap.String("format", string(opts.OutputFormat)))

	return nil
}

func (w *workspace) chooseTemplate() error {
	items := make([]string, 0, len(resume.TemplateStyles))
	for _, s := range resume.TemplateStyles {
		items = append(items, string(s))
	}

	_, selected, err := (&promptui.Select{Label: "Template style", Items: items}).Run()
	if err != nil {
		return err
	}

	style := resume.TemplateStyle(selected)
	opts := w.session.SetOptions(resume.OptionsPatch{TemplateStyle: &style})
	w.logger.Debug("options updated", zap.String("template", string(opts.TemplateStyle)))

	return nil
}

// wait blocks until the request has been handled so output does not overlap the next prompt.
func (w *workspace) wait(ctx context.Context, req *stage.Request) error {
	if err := req.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %s: %w", req.Stage, err)
	}
	return nil
}

// readText prompts for a single line. A leading @ reads the rest as a file path.
func (w *workspace) readText(label string) (string, error) {
	value, err := w.read(label)
	if err != nil {
		return "", err
	}

	return loadText(value)
}

func promptLine(label string) (string, error) {
	return (&promptui.Prompt{Label: label}).Run()
}

func loadText(value string) (string, error) {
	path, ok := strings.CutPrefix(strings.TrimSpace(value), "@")
	if !ok {
		return value, nil
	}

	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return string(data), nil
}

func newGateway(ctx context.Context, config *Config, base *zap.Logger) (service.Gateway, error) {
	var fallback service.Gateway

	if config.Service.URL != "" {
		token, err := secrets.Load(secrets.Source{
			Name:     "service token",
			File:     config.Service.TokenFile,
			Env:      "RESUME_TUNER_TOKEN",
			Optional: true,
		})
		if err != nil {
			return nil, err
		}

		client := remote.New(logger.WithBackend(base, BackendRemote, ""), config.Service.URL, token)
		if config.Service.Timeout > 0 {
			client.HTTPClient.Timeout = config.Service.Timeout
		}
		if config.Service.UserAgent != "" {
			client.UserAgent = config.Service.UserAgent
		}
		client.SetRateLimit(config.Service.RateLimit, config.Service.Burst)
		fallback = client
	}

	switch config.Service.Backend {
	case BackendRemote:
		if fallback == nil {
			return nil, errors.New("service.url is required for the remote backend")
		}
		return fallback, nil
	case BackendGemini:
		if config.Gemini == nil {
			return nil, errors.New("gemini configuration is required for the gemini backend")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: config.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model)
		if err != nil {
			return nil, err
		}

		if fallback == nil {
			base.Warn("no service url configured, resume upload, tailoring and creation are unavailable")
		}

		gw, err := gemini.NewGateway(generator, fallback, logger.WithBackend(base, BackendGemini, generator.Model()), config.Gemini.CacheSize, config.Gemini.MaxLogLength)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", config.Service.Backend)
	}
}

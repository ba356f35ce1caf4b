// Package stage implements the workflow step controllers. Each controller runs
// the same protocol: precondition check, loading indication, a single
// asynchronous gateway call, then completion handling.
package stage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/logger"
	"github.com/spigell/resume-tuner/internal/notify"
	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/workflow"
)

// Region is a part of the UI surface a stage draws into.
type Region string

const (
	RegionSkills   Region = "skills"
	RegionResume   Region = "resume"
	RegionAnalysis Region = "analysis"
	RegionTailor   Region = "tailor"
	RegionPreview  Region = "preview"
	RegionCreate   Region = "create"
)

// Surface is the rendering port the controllers present through.
type Surface interface {
	ShowLoading(region Region)
	ShowFailure(region Region, message string)
	RenderSkills(skills []string)
	SetResumeText(text string)
	ClearFileSelection()
	RenderAnalysis(result resume.MatchResult)
	RenderPreview(markup string)
	SaveDocument(doc resume.Document) error
}

type Notifier interface {
	Notify(message string, kind notify.Kind)
}

// Policy decides what happens when responses of one stage arrive out of order.
type Policy int

const (
	// LastResponseWins applies every completion in arrival order.
	LastResponseWins Policy = iota
	// LastRequestWins drops completions superseded by a newer request of the same stage.
	LastRequestWins
)

type Controllers struct {
	// mu serialises the synchronous phases and the completion handlers.
	mu       sync.Mutex
	gateway  service.Gateway
	surface  Surface
	notifier Notifier
	logger   *zap.Logger

	Policy Policy
}

func New(gateway service.Gateway, surface Surface, notifier Notifier, logger *zap.Logger) *Controllers {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controllers{
		gateway:  gateway,
		surface:  surface,
		notifier: notifier,
		logger:   logger,
	}
}

// ValidationError is an unmet precondition. It never reaches the gateway.
type ValidationError struct {
	Stage   workflow.Stage
	Kind    notify.Kind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Request tracks one controller invocation.
type Request struct {
	Stage workflow.Stage
	// Seq is zero for rejected requests.
	Seq       uint64
	rejection *ValidationError
	done      chan struct{}
}

// Rejection returns the unmet precondition, or nil when the request was dispatched.
func (r *Request) Rejection() error {
	if r.rejection == nil {
		return nil
	}
	return r.rejection
}

// Wait blocks until completion handling has finished.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once completion handling has finished.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// call performs the gateway request and returns the completion to apply on success.
type call func(ctx context.Context) (complete func() error, err error)

// reject reports an unmet precondition. The caller holds c.mu.
func (c *Controllers) reject(stage workflow.Stage, kind notify.Kind, message string) *Request {
	c.notifier.Notify(message, kind)
	c.logger.Debug("precondition failed", append(logger.StageFields(string(stage), 0), zap.String("reason", message))...)

	done := make(chan struct{})
	close(done)

	return &Request{
		Stage:     stage,
		rejection: &ValidationError{Stage: stage, Kind: kind, Message: message},
		done:      done,
	}
}

// dispatch shows the busy indicator and starts the gateway call. The caller holds c.mu.
func (c *Controllers) dispatch(ctx context.Context, sess *workflow.Session, stage workflow.Stage, region Region, failure string, fn call) *Request {
	c.surface.ShowLoading(region)

	seq := sess.Begin(stage)
	req := &Request{Stage: stage, Seq: seq, done: make(chan struct{})}
	log := logger.WithFields(c.logger, logger.StageFields(string(stage), seq)...)

	// In-flight requests are never cancelled.
	ctx = context.WithoutCancel(ctx)

	log.Debug("dispatching request")

	go func() {
		defer close(req.done)

		complete, err := fn(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.Policy == LastRequestWins && seq < sess.Latest(stage) {
			log.Debug("dropping superseded response", zap.Uint64("latest", sess.Latest(stage)))
			return
		}

		if err == nil {
			err = complete()
		}

		if err != nil {
			message := fmt.Sprintf("%s: %s", failure, service.Message(err))
			c.surface.ShowFailure(region, message)
			c.notifier.Notify(message, notify.KindError)
			log.Warn("stage failed", zap.Error(err))
			return
		}

		log.Debug("stage completed")
	}()

	return req
}

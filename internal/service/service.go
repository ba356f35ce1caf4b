package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/resume-tuner/internal/resume"
)

const (
	OpExtractSkills = "extract_skills"
	OpUploadResume  = "upload_resume"
	OpAnalyzeResume = "analyze_resume"
	OpTailorResume  = "tailor_resume"
	OpPreviewResume = "preview_resume"
	OpCreateResume  = "create_resume"
)

// Gateway issues requests to the resume tuning service. Each call is attempted
// exactly once; every failure is returned as *Error.
type Gateway interface {
	ExtractSkills(ctx context.Context, jobDescription string) (resume.Extraction, error)
	IngestResume(ctx context.Context, file resume.FileSelection) (string, error)
	AnalyzeResume(ctx context.Context, req AnalyzeRequest) (resume.MatchResult, error)
	TailorResume(ctx context.Context, req TailorRequest) (resume.Document, error)
	PreviewResume(ctx context.Context, req PreviewRequest) (string, error)
	CreateResume(ctx context.Context, req CreateRequest) (resume.Document, error)
}

type AnalyzeRequest struct {
	ResumeText     string
	Skills         []string
	JobDescription string
	ByCategory     map[string][]string
}

type TailorRequest struct {
	ResumeText     string
	JobDescription string
	OutputFormat   resume.OutputFormat
	TemplateStyle  resume.TemplateStyle
}

type PreviewRequest struct {
	ResumeText     string
	JobDescription string
}

// CreateRequest carries free-form answers about the candidate that are turned
// into a new one-page resume.
type CreateRequest struct {
	Responses string
}

// Error is the single failure type surfaced by gateways. Transport and
// service-reported failures are not distinguished.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Failure wraps err into an *Error for op. An *Error passes through unchanged.
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Op: op, Message: err.Error(), Err: err}
}

// Failuref builds an *Error for op without an underlying cause.
func Failuref(op, format string, args ...any) error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Message returns the user-facing part of a gateway failure.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}

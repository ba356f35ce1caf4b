package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-tuner/internal/notify"
	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/workflow"
)

const (
	MsgNoJobDescription = "Please enter a job description"
	MsgNoFile           = "Please select a resume file"
	MsgInvalidFileType  = "Please upload a PDF or DOCX file"
	MsgFileTooLarge     = "File size exceeds 5MB limit"
	MsgNoResume         = "Please enter your resume text or upload a resume file"
	MsgNoSkills         = "Please extract skills from a job description first"
	MsgMissingInputs    = "Please ensure you have both resume and job description"
	MsgResumeUploaded   = "Resume uploaded successfully"
	MsgNoResponses      = "No responses provided"
)

// Extract requests the skills of jobDescription and replaces the session skills on success.
func (c *Controllers) Extract(ctx context.Context, sess *workflow.Session, jobDescription string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(jobDescription) == "" {
		return c.reject(workflow.StageExtraction, notify.KindError, MsgNoJobDescription)
	}

	return c.dispatch(ctx, sess, workflow.StageExtraction, RegionSkills, "Error extracting skills",
		func(ctx context.Context) (func() error, error) {
			extraction, err := c.gateway.ExtractSkills(ctx, jobDescription)
			if err != nil {
				return nil, err
			}

			return func() error {
				sess.SetExtraction(extraction)
				c.surface.RenderSkills(sess.Skills())
				return nil
			}, nil
		})
}

// Ingest uploads the selected resume file and replaces the resume text with its content.
// Unsupported or oversized files clear the selection.
func (c *Controllers) Ingest(ctx context.Context, sess *workflow.Session, file *resume.FileSelection) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if file == nil {
		return c.reject(workflow.StageIngestion, notify.KindError, MsgNoFile)
	}

	if !resume.AllowedMIMEType(file.MIMEType) {
		c.surface.ClearFileSelection()
		return c.reject(workflow.StageIngestion, notify.KindError, MsgInvalidFileType)
	}

	size := file.Size
	if n := int64(len(file.Data)); n > size {
		size = n
	}
	if size > resume.MaxUploadSize {
		c.surface.ClearFileSelection()
		return c.reject(workflow.StageIngestion, notify.KindWarning, MsgFileTooLarge)
	}

	selected := *file

	return c.dispatch(ctx, sess, workflow.StageIngestion, RegionResume, "Error uploading resume",
		func(ctx context.Context) (func() error, error) {
			text, err := c.gateway.IngestResume(ctx, selected)
			if err != nil {
				return nil, err
			}

			return func() error {
				c.surface.SetResumeText(text)
				c.notifier.Notify(MsgResumeUploaded, notify.KindSuccess)
				return nil
			}, nil
		})
}

// Analyze scores resumeText against the session skills and renders the result
// and the match chart.
func (c *Controllers) Analyze(ctx context.Context, sess *workflow.Session, resumeText, jobDescription string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(resumeText) == "" {
		return c.reject(workflow.StageAnalysis, notify.KindError, MsgNoResume)
	}

	extraction := sess.Extraction()
	if len(extraction.Skills) == 0 {
		return c.reject(workflow.StageAnalysis, notify.KindWarning, MsgNoSkills)
	}

	req := service.AnalyzeRequest{
		ResumeText:     resumeText,
		Skills:         extraction.Skills,
		JobDescription: jobDescription,
		ByCategory:     extraction.ByCategory,
	}

	return c.dispatch(ctx, sess, workflow.StageAnalysis, RegionAnalysis, "Error analyzing resume",
		func(ctx context.Context) (func() error, error) {
			result, err := c.gateway.AnalyzeResume(ctx, req)
			if err != nil {
				return nil, err
			}

			result = result.Reconcile(req.Skills)

			return func() error {
				c.surface.RenderAnalysis(result)
				if renderer := sess.Renderer(); renderer != nil {
					renderer.Render(result)
				}
				return nil
			}, nil
		})
}

// Tailor requests a tailored document in the session output format and saves it.
// The user is told about the format before the request resolves.
func (c *Controllers) Tailor(ctx context.Context, sess *workflow.Session, resumeText, jobDescription string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobDescription) == "" {
		return c.reject(workflow.StageTailoring, notify.KindWarning, MsgMissingInputs)
	}

	opts := sess.Options()
	req := service.TailorRequest{
		ResumeText:     resumeText,
		JobDescription: jobDescription,
		OutputFormat:   opts.OutputFormat,
		TemplateStyle:  opts.TemplateStyle,
	}

	c.notifier.Notify(fmt.Sprintf("Generating tailored resume in %s format...", opts.OutputFormat), notify.KindSuccess)

	return c.dispatch(ctx, sess, workflow.StageTailoring, RegionTailor, "Error tailoring resume",
		func(ctx context.Context) (func() error, error) {
			doc, err := c.gateway.TailorResume(ctx, req)
			if err != nil {
				return nil, err
			}

			doc.Name = req.OutputFormat.DocumentName()
			if doc.MIMEType == "" {
				doc.MIMEType = req.OutputFormat.MIMEType()
			}

			return func() error {
				if err := c.surface.SaveDocument(doc); err != nil {
					return fmt.Errorf("save %s: %w", doc.Name, err)
				}
				return nil
			}, nil
		})
}

// Preview renders a tailored version of the resume without producing a document.
func (c *Controllers) Preview(ctx context.Context, sess *workflow.Session, resumeText, jobDescription string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(jobDescription) == "" {
		return c.reject(workflow.StagePreview, notify.KindWarning, MsgMissingInputs)
	}

	req := service.PreviewRequest{ResumeText: resumeText, JobDescription: jobDescription}

	return c.dispatch(ctx, sess, workflow.StagePreview, RegionPreview, "Error generating preview",
		func(ctx context.Context) (func() error, error) {
			markup, err := c.gateway.PreviewResume(ctx, req)
			if err != nil {
				return nil, err
			}

			return func() error {
				c.surface.RenderPreview(markup)
				return nil
			}, nil
		})
}

// Create builds a new one-page resume from free-form answers and saves it as
// resume.CreatedDocumentName.
func (c *Controllers) Create(ctx context.Context, sess *workflow.Session, responses string) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(responses) == "" {
		return c.reject(workflow.StageCreation, notify.KindError, MsgNoResponses)
	}

	req := service.CreateRequest{Responses: responses}

	return c.dispatch(ctx, sess, workflow.StageCreation, RegionCreate, "Error creating resume",
		func(ctx context.Context) (func() error, error) {
			doc, err := c.gateway.CreateResume(ctx, req)
			if err != nil {
				return nil, err
			}

			doc.Name = resume.CreatedDocumentName
			if doc.MIMEType == "" {
				doc.MIMEType = resume.MIMETypePDF
			}

			return func() error {
				if err := c.surface.SaveDocument(doc); err != nil {
					return fmt.Errorf("save %s: %w", doc.Name, err)
				}
				return nil
			}, nil
		})
}

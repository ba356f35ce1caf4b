// Package remote implements service.Gateway over the resume tuning HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
)

const (
	userAgent      = "spigell/resume-tuner"
	defaultTimeout = 2 * time.Minute
)

var _ service.Gateway = (*Client)(nil)

type Client struct {
	token      string
	logger     *zap.Logger
	limiter    *rate.Limiter
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, apiURL, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// SetRateLimit caps outgoing requests to perMinute with the given burst.
// A non-positive perMinute removes the limit.
func (c *Client) SetRateLimit(perMinute, burst int) {
	if perMinute <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
}

type extractResponse struct {
	Skills     []string            `mapstructure:"skills"`
	ByCategory map[string][]string `mapstructure:"skills_by_category"`
}

type uploadResponse struct {
	ResumeText string `mapstructure:"resume_text"`
}

type analyzeResponse struct {
	Emotion          string         `mapstructure:"emotion"`
	MatchPercentage  float64        `mapstructure:"match_percentage"`
	MatchedSkills    []string       `mapstructure:"matched_skills"`
	UnmatchedSkills  []string       `mapstructure:"unmatched_skills"`
	CategoryAnalysis map[string]any `mapstructure:"category_analysis"`
}

type previewResponse struct {
	TailoredResume string `mapstructure:"tailored_resume"`
}

func (c *Client) ExtractSkills(ctx context.Context, jobDescription string) (resume.Extraction, error) {
	payload := map[string]any{"job_description": jobDescription}

	var resp extractResponse
	if err := c.postJSON(ctx, service.OpExtractSkills, payload, &resp); err != nil {
		return resume.Extraction{}, err
	}

	return resume.Extraction{Skills: cleanList(resp.Skills), ByCategory: resp.ByCategory}, nil
}

func (c *Client) IngestResume(ctx context.Context, file resume.FileSelection) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MIMEType)

	part, err := w.CreatePart(header)
	if err != nil {
		return "", service.Failure(service.OpUploadResume, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", service.Failure(service.OpUploadResume, err)
	}
	if err := w.Close(); err != nil {
		return "", service.Failure(service.OpUploadResume, err)
	}

	body, _, err := c.post(ctx, service.OpUploadResume, &b, w.FormDataContentType())
	if err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := decodeJSON(service.OpUploadResume, body, &resp); err != nil {
		return "", err
	}

	return resp.ResumeText, nil
}

func (c *Client) AnalyzeResume(ctx context.Context, req service.AnalyzeRequest) (resume.MatchResult, error) {
	payload := map[string]any{
		"resume_text": req.ResumeText,
		"skills":      req.Skills,
	}
	if req.JobDescription != "" {
		payload["job_description"] = req.JobDescription
	}
	if len(req.ByCategory) > 0 {
		payload["skills_by_category"] = req.ByCategory
	}

	var resp analyzeResponse
	if err := c.postJSON(ctx, service.OpAnalyzeResume, payload, &resp); err != nil {
		return resume.MatchResult{}, err
	}

	return resume.MatchResult{
		MatchPercentage:  resp.MatchPercentage,
		MatchedSkills:    resp.MatchedSkills,
		UnmatchedSkills:  resp.UnmatchedSkills,
		Mood:             resp.Emotion,
		CategoryAnalysis: resp.CategoryAnalysis,
	}, nil
}

func (c *Client) TailorResume(ctx context.Context, req service.TailorRequest) (resume.Document, error) {
	form := url.Values{}
	form.Set("resume_text", req.ResumeText)
	form.Set("job_description", req.JobDescription)
	form.Set("output_format", string(req.OutputFormat))
	form.Set("template_style", string(req.TemplateStyle))

	body, contentType, err := c.post(ctx, service.OpTailorResume,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return resume.Document{}, err
	}

	if len(body) == 0 {
		return resume.Document{}, service.Failuref(service.OpTailorResume, "empty document returned")
	}

	if contentType == "" {
		contentType = req.OutputFormat.MIMEType()
	}

	return resume.Document{
		Name:     req.OutputFormat.DocumentName(),
		MIMEType: contentType,
		Payload:  body,
	}, nil
}

func (c *Client) PreviewResume(ctx context.Context, req service.PreviewRequest) (string, error) {
	payload := map[string]any{
		"resume_text":     req.ResumeText,
		"job_description": req.JobDescription,
	}

	var resp previewResponse
	if err := c.postJSON(ctx, service.OpPreviewResume, payload, &resp); err != nil {
		return "", err
	}

	return resp.TailoredResume, nil
}

// CreateResume sends free-form answers and receives a one-page PDF resume.
func (c *Client) CreateResume(ctx context.Context, req service.CreateRequest) (resume.Document, error) {
	data, err := json.Marshal(map[string]any{"responses": req.Responses})
	if err != nil {
		return resume.Document{}, service.Failure(service.OpCreateResume, fmt.Errorf("marshal request: %w", err))
	}

	body, respType, err := c.post(ctx, service.OpCreateResume, bytes.NewReader(data), contentType)
	if err != nil {
		return resume.Document{}, err
	}

	if len(body) == 0 {
		return resume.Document{}, service.Failuref(service.OpCreateResume, "empty document returned")
	}

	// A JSON body carries an error, never a document.
	if respType == contentType {
		var raw map[string]any
		if err := json.Unmarshal(body, &raw); err == nil {
			if msg := errorMessage(raw); msg != "" {
				return resume.Document{}, service.Failuref(service.OpCreateResume, "%s", msg)
			}
		}
		return resume.Document{}, service.Failuref(service.OpCreateResume, "unexpected JSON response")
	}

	if respType == "" {
		respType = resume.MIMETypePDF
	}

	return resume.Document{
		Name:     resume.CreatedDocumentName,
		MIMEType: respType,
		Payload:  body,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, op string, payload any, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return service.Failure(op, fmt.Errorf("marshal request: %w", err))
	}

	body, _, err := c.post(ctx, op, bytes.NewReader(data), contentType)
	if err != nil {
		return err
	}

	return decodeJSON(op, body, target)
}

// decodeJSON decodes a loosely typed service response into target. A body
// carrying an "error" key is a failure even with a success status.
func decodeJSON(op string, body []byte, target any) error {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return service.Failure(op, fmt.Errorf("malformed response: %w", err))
	}

	if msg := errorMessage(raw); msg != "" {
		return service.Failuref(op, "%s", msg)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return service.Failure(op, err)
	}

	if err := decoder.Decode(raw); err != nil {
		return service.Failure(op, fmt.Errorf("malformed response: %w", err))
	}

	return nil
}

func errorMessage(raw map[string]any) string {
	v, ok := raw["error"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%v", v)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

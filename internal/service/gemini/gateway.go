// Package gemini implements service.Gateway on top of the Gemini API for the
// text-only operations, delegating document handling to a fallback gateway.
package gemini

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/utils"
)

//go:embed prompts/*.md
var prompts embed.FS

const (
	defaultMaxLogLength = 200
	defaultCacheSize    = 64
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

var _ service.Gateway = (*Gateway)(nil)

type Gateway struct {
	generator contentGenerator
	fallback  service.Gateway
	logger    *zap.Logger
	maxLogLen int
	skills    *lru.Cache[string, resume.Extraction]
	inflight  singleflight.Group
}

// NewGateway builds a Gemini-backed gateway. fallback serves ingestion and
// document rendering and may be nil, in which case those operations fail.
func NewGateway(generator contentGenerator, fallback service.Gateway, logger *zap.Logger, cacheSize, maxLogLength int) (*Gateway, error) {
	if generator == nil {
		return nil, fmt.Errorf("gemini generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	cache, err := lru.New[string, resume.Extraction](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create skills cache: %w", err)
	}

	return &Gateway{
		generator: generator,
		fallback:  fallback,
		logger:    logger,
		maxLogLen: maxLogLength,
		skills:    cache,
	}, nil
}

// ExtractSkills asks the model for the skills in jobDescription. Results are
// cached by description and concurrent identical requests share one call.
func (g *Gateway) ExtractSkills(ctx context.Context, jobDescription string) (resume.Extraction, error) {
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(strings.TrimSpace(jobDescription))))
	if cached, ok := g.skills.Get(key); ok {
		g.logger.Debug("skills served from cache", zap.Int("skills", len(cached.Skills)))
		return cached.Clone(), nil
	}

	v, err, shared := g.inflight.Do(key, func() (any, error) {
		return g.extractSkills(ctx, key, jobDescription)
	})
	if err != nil {
		return resume.Extraction{}, err
	}
	if shared {
		g.logger.Debug("skills extraction shared with a concurrent request")
	}

	return v.(resume.Extraction).Clone(), nil
}

func (g *Gateway) extractSkills(ctx context.Context, key, jobDescription string) (resume.Extraction, error) {
	prompt, err := buildPrompt("extract.md", "JOB_DESCRIPTION", sanitizeInput(jobDescription))
	if err != nil {
		return resume.Extraction{}, service.Failure(service.OpExtractSkills, err)
	}

	raw, err := g.generate(ctx, service.OpExtractSkills, prompt, true)
	if err != nil {
		return resume.Extraction{}, err
	}

	extraction := parseExtraction(raw)
	if len(extraction.Skills) == 0 {
		return resume.Extraction{}, service.Failuref(service.OpExtractSkills, "no skills found in job description")
	}

	g.skills.Add(key, extraction.Clone())

	return extraction, nil
}

func (g *Gateway) AnalyzeResume(ctx context.Context, req service.AnalyzeRequest) (resume.MatchResult, error) {
	skillsJSON, err := json.Marshal(req.Skills)
	if err != nil {
		return resume.MatchResult{}, service.Failure(service.OpAnalyzeResume, err)
	}

	byCategory := "none"
	if len(req.ByCategory) > 0 {
		data, err := json.Marshal(req.ByCategory)
		if err != nil {
			return resume.MatchResult{}, service.Failure(service.OpAnalyzeResume, err)
		}
		byCategory = string(data)
	}

	prompt, err := buildPrompt("analyze.md",
		"SKILLS", string(skillsJSON),
		"SKILLS_BY_CATEGORY", byCategory,
		"JOB_DESCRIPTION", orNone(sanitizeInput(req.JobDescription)),
		"RESUME", sanitizeInput(req.ResumeText),
	)
	if err != nil {
		return resume.MatchResult{}, service.Failure(service.OpAnalyzeResume, err)
	}

	raw, err := g.generate(ctx, service.OpAnalyzeResume, prompt, true)
	if err != nil {
		return resume.MatchResult{}, err
	}

	result, err := parseAnalysis(raw)
	if err != nil {
		return resume.MatchResult{}, service.Failure(service.OpAnalyzeResume, err)
	}

	return result, nil
}

func (g *Gateway) PreviewResume(ctx context.Context, req service.PreviewRequest) (string, error) {
	prompt, err := buildPrompt("preview.md",
		"JOB_DESCRIPTION", sanitizeInput(req.JobDescription),
		"RESUME", sanitizeInput(req.ResumeText),
	)
	if err != nil {
		return "", service.Failure(service.OpPreviewResume, err)
	}

	raw, err := g.generate(ctx, service.OpPreviewResume, prompt, false)
	if err != nil {
		return "", err
	}

	return stripFence(raw), nil
}

func (g *Gateway) IngestResume(ctx context.Context, file resume.FileSelection) (string, error) {
	if g.fallback == nil {
		return "", service.Failuref(service.OpUploadResume, "resume upload requires the remote service")
	}
	return g.fallback.IngestResume(ctx, file)
}

func (g *Gateway) TailorResume(ctx context.Context, req service.TailorRequest) (resume.Document, error) {
	if g.fallback == nil {
		return resume.Document{}, service.Failuref(service.OpTailorResume, "document generation requires the remote service")
	}
	return g.fallback.TailorResume(ctx, req)
}

// CreateResume structures free-form answers into resume sections and hands the
// plain-text result to the fallback, which renders the PDF.
func (g *Gateway) CreateResume(ctx context.Context, req service.CreateRequest) (resume.Document, error) {
	responses := strings.TrimSpace(sanitizeInput(req.Responses))
	if responses == "" {
		return resume.Document{}, service.Failuref(service.OpCreateResume, "No responses provided")
	}
	if g.fallback == nil {
		return resume.Document{}, service.Failuref(service.OpCreateResume, "document generation requires the remote service")
	}

	prompt, err := buildPrompt("create.md", "RESPONSES", responses)
	if err != nil {
		return resume.Document{}, service.Failure(service.OpCreateResume, err)
	}

	raw, err := g.generate(ctx, service.OpCreateResume, prompt, true)
	if err != nil {
		return resume.Document{}, err
	}

	sections, err := parseSections(raw)
	if err != nil {
		return resume.Document{}, service.Failure(service.OpCreateResume, err)
	}

	return g.fallback.CreateResume(ctx, service.CreateRequest{Responses: sectionsText(sections)})
}

func (g *Gateway) generate(ctx context.Context, op, prompt string, jsonOutput bool) (string, error) {
	g.logger.Debug("gemini generate content request",
		zap.String("op", op),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	var (
		raw string
		err error
	)
	if jsonOutput {
		raw, err = g.generator.GenerateJSON(ctx, prompt)
	} else {
		raw, err = g.generator.GenerateContent(ctx, prompt)
	}
	if err != nil {
		return "", service.Failure(op, err)
	}

	g.logger.Debug("gemini generate content response",
		zap.String("op", op),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, g.maxLogLen)),
	)

	return raw, nil
}

// buildPrompt fills the named template from key/value pairs in a single pass.
// Substituted text is never rescanned for placeholders.
func buildPrompt(name string, pairs ...string) (string, error) {
	if len(pairs)%2 != 0 {
		return "", fmt.Errorf("prompt %s: unpaired placeholder %q", name, pairs[len(pairs)-1])
	}

	data, err := prompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}

	oldnew := make([]string, 0, len(pairs))
	for i := 0; i < len(pairs); i += 2 {
		oldnew = append(oldnew, "{{"+pairs[i]+"}}", pairs[i+1])
	}

	return strings.NewReplacer(oldnew...).Replace(string(data)), nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

// Package terminal renders the workflow to a text terminal.
package terminal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/stage"
)

const PreviewFileName = "resume_preview.html"

var _ stage.Surface = (*Surface)(nil)

// Surface prints stage output and keeps the user-owned inputs: the resume
// text and the selected file.
type Surface struct {
	mu        sync.Mutex
	out       io.Writer
	outputDir string
	logger    *zap.Logger

	resumeText string
	selection  *resume.FileSelection
}

func NewSurface(out io.Writer, outputDir string, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputDir == "" {
		outputDir = "."
	}

	return &Surface{out: out, outputDir: outputDir, logger: logger}
}

func (s *Surface) ResumeText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeText
}

func (s *Surface) Selection() *resume.FileSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Select records the file chosen by the user.
func (s *Surface) Select(file *resume.FileSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = file
}

func (s *Surface) SetResumeText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeText = text
	s.printf("%s\n%s\n", styleHeader.Render("Resume"), styleBox.Render(text))
}

func (s *Surface) ClearFileSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

func (s *Surface) ShowLoading(region stage.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("%s\n", styleMuted.Render(loadingText(region)))
}

func (s *Surface) ShowFailure(region stage.Region, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("%s %s\n", styleMuted.Render("["+string(region)+"]"), styleError.Render(message))
}

func (s *Surface) RenderSkills(skills []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make([]string, 0, len(skills))
	for _, skill := range skills {
		tags = append(tags, styleSkill.Render("["+skill+"]"))
	}
	s.printf("%s\n%s\n", styleHeader.Render(fmt.Sprintf("Extracted skills (%d)", len(skills))), strings.Join(tags, " "))
}

func (s *Surface) RenderAnalysis(result resume.MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", styleHeader.Render(fmt.Sprintf("%s: %.0f%% match", result.Mood, result.MatchPercentage)))
	for _, skill := range result.MatchedSkills {
		fmt.Fprintf(&b, "  %s %s\n", styleMatched.Render("✓"), skill)
	}
	for _, skill := range result.UnmatchedSkills {
		fmt.Fprintf(&b, "  %s %s\n", styleMissing.Render("✗"), skill)
	}

	categories := make([]string, 0, len(result.CategoryAnalysis))
	for name := range result.CategoryAnalysis {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		fmt.Fprintf(&b, "  %s %v\n", styleMuted.Render(name+":"), result.CategoryAnalysis[name])
	}

	s.printf("%s", b.String())
}

// RenderPreview writes the markup next to the tailored documents and prints
// its text along with how much it differs from the current resume text.
func (s *Surface) RenderPreview(markup string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.writeFile(PreviewFileName, []byte(markup))
	if err != nil {
		s.logger.Warn("writing preview", zap.Error(err))
	}

	lines, err := previewLines(markup)
	if err != nil {
		s.logger.Warn("parsing preview markup", zap.Error(err))
		lines = textLines(markup)
	}

	s.printf("%s\n%s\n", styleHeader.Render("Preview"), styleBox.Render(strings.Join(lines, "\n")))

	if s.resumeText != "" {
		changes := diffLines(textLines(s.resumeText), lines)
		s.printf("%s %s\n",
			styleMatched.Render(fmt.Sprintf("+%d", changes.Added)),
			styleMissing.Render(fmt.Sprintf("-%d lines compared to your resume", changes.Removed)),
		)
	}

	if path != "" {
		s.printf("%s %s\n", styleMuted.Render("Preview saved to"), path)
	}
}

func (s *Surface) SaveDocument(doc resume.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.writeFile(doc.Name, doc.Payload)
	if err != nil {
		return err
	}

	s.logger.Info("saved resume document", zap.String("path", path), zap.Int("size", len(doc.Payload)))
	s.printf("%s %s\n", styleMatched.Render("Saved"), path)

	return nil
}

// writeFile stores data under the output dir, keeping only the base of name.
func (s *Surface) writeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(s.outputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

func (s *Surface) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func loadingText(region stage.Region) string {
	switch region {
	case stage.RegionSkills:
		return "Extracting skills..."
	case stage.RegionResume:
		return "Uploading resume..."
	case stage.RegionAnalysis:
		return "Analyzing resume..."
	case stage.RegionTailor:
		return "Tailoring resume..."
	case stage.RegionPreview:
		return "Generating preview..."
	case stage.RegionCreate:
		return "Creating resume..."
	default:
		return "Loading..."
	}
}

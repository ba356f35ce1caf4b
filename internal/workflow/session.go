// Package workflow holds the per-session pipeline state shared by the stage controllers.
package workflow

import (
	"sync"

	"github.com/spigell/resume-tuner/internal/chart"
	"github.com/spigell/resume-tuner/internal/resume"
)

type Stage string

const (
	StageExtraction Stage = "extraction"
	StageIngestion  Stage = "ingestion"
	StageAnalysis   Stage = "analysis"
	StageTailoring  Stage = "tailoring"
	StagePreview    Stage = "preview"
	StageCreation   Stage = "creation"
)

// Session is the single source of truth for a workflow run. Every write
// replaces a whole value; readers always get copies. The zero value is usable
// and starts from resume.DefaultOptions without a chart.
type Session struct {
	mu         sync.RWMutex
	extraction resume.Extraction
	options    resume.Options
	seq        map[Stage]uint64
	renderer   *chart.Renderer
}

func NewSession(renderer *chart.Renderer) *Session {
	return &Session{
		options:  resume.DefaultOptions(),
		seq:      make(map[Stage]uint64),
		renderer: renderer,
	}
}

// SetSkills replaces the extracted skills, dropping any category grouping.
func (s *Session) SetSkills(skills []string) {
	s.SetExtraction(resume.Extraction{Skills: skills})
}

func (s *Session) SetExtraction(e resume.Extraction) {
	e = e.Clone()

	s.mu.Lock()
	s.extraction = e
	s.mu.Unlock()
}

func (s *Session) Skills() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.extraction.Skills...)
}

func (s *Session) Extraction() resume.Extraction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.extraction.Clone()
}

// SetOptions merges the patch into a fresh value and swaps it in.
func (s *Session) SetOptions(patch resume.OptionsPatch) resume.Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options = s.currentOptions().Apply(patch)
	return s.options
}

func (s *Session) Options() resume.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentOptions()
}

func (s *Session) currentOptions() resume.Options {
	if s.options == (resume.Options{}) {
		return resume.DefaultOptions()
	}
	return s.options
}

// Reset forgets the extracted skills.
func (s *Session) Reset() {
	s.mu.Lock()
	s.extraction = resume.Extraction{}
	s.mu.Unlock()
}

// Begin issues the next request sequence number for stage.
func (s *Session) Begin(stage Stage) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == nil {
		s.seq = make(map[Stage]uint64)
	}
	s.seq[stage]++
	return s.seq[stage]
}

// Latest is the newest sequence number issued for stage, zero if none.
func (s *Session) Latest(stage Stage) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seq[stage]
}

// Renderer is the match chart owner for this session; nil when the session has no chart.
func (s *Session) Renderer() *chart.Renderer {
	return s.renderer
}

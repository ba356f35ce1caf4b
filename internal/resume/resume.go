// Package resume holds the data exchanged between the workflow stages.
package resume

import (
	"math"
	"strings"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// MaxUploadSize is the largest resume file accepted for ingestion (5 MiB).
	MaxUploadSize = 5 * 1024 * 1024

	// CreatedDocumentName is the file a resume built from scratch is saved under.
	CreatedDocumentName = "My_Resume.pdf"
)

// Extraction is the outcome of skill extraction for one job description.
type Extraction struct {
	// Skills keeps the order returned by the extraction service.
	Skills     []string
	ByCategory map[string][]string
}

// Clone returns a deep copy so holders never share backing arrays.
func (e Extraction) Clone() Extraction {
	out := Extraction{Skills: append([]string(nil), e.Skills...)}
	if e.ByCategory != nil {
		out.ByCategory = make(map[string][]string, len(e.ByCategory))
		for k, v := range e.ByCategory {
			out.ByCategory[k] = append([]string(nil), v...)
		}
	}
	return out
}

// MatchResult is the comparison of a resume against the extracted skills.
type MatchResult struct {
	MatchPercentage  float64
	MatchedSkills    []string
	UnmatchedSkills  []string
	Mood             string
	CategoryAnalysis map[string]any
}

// FileSelection is a resume file picked by the user.
type FileSelection struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

// Document is a generated resume ready to be saved.
type Document struct {
	Name     string
	MIMEType string
	Payload  []byte
}

// AllowedMIMEType reports whether the resume file type can be ingested.
func AllowedMIMEType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType == MIMETypePDF || mimeType == MIMETypeDOCX
}

// ClampPercentage bounds p to [0,100]; NaN becomes 0.
func ClampPercentage(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

var moods = []struct {
	below float64
	label string
}{
	{10, "Critical Gaps"},
	{20, "Major Gaps"},
	{30, "Substantial Gaps"},
	{40, "Moderate Gaps"},
	{50, "Minor Gaps"},
	{60, "Fair Match"},
	{70, "Good Match"},
	{80, "Strong Match"},
	{90, "Excellent Match"},
}

// Mood maps a match percentage to the display label used when the service sends none.
func Mood(p float64) string {
	p = ClampPercentage(p)
	for _, m := range moods {
		if p < m.below {
			return m.label
		}
	}
	return "Outstanding Fit"
}

// Reconcile makes the result partition skills exactly: every skill the service
// reported as matched (exact match first, then case-insensitive) lands in
// MatchedSkills, everything else in UnmatchedSkills, both in skills order.
func (r MatchResult) Reconcile(skills []string) MatchResult {
	exact := make(map[string]int, len(r.MatchedSkills))
	folded := make(map[string]int, len(r.MatchedSkills))
	for _, s := range r.MatchedSkills {
		exact[s]++
		folded[strings.ToLower(strings.TrimSpace(s))]++
	}

	out := MatchResult{
		MatchPercentage:  ClampPercentage(r.MatchPercentage),
		MatchedSkills:    make([]string, 0, len(skills)),
		UnmatchedSkills:  make([]string, 0, len(skills)),
		Mood:             strings.TrimSpace(r.Mood),
		CategoryAnalysis: r.CategoryAnalysis,
	}

	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		switch {
		case exact[skill] > 0:
			exact[skill]--
			folded[key]--
			out.MatchedSkills = append(out.MatchedSkills, skill)
		case folded[key] > 0:
			folded[key]--
			out.MatchedSkills = append(out.MatchedSkills, skill)
		default:
			out.UnmatchedSkills = append(out.UnmatchedSkills, skill)
		}
	}

	if out.Mood == "" {
		out.Mood = Mood(out.MatchPercentage)
	}

	return out
}

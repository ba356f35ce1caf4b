package gemini

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/spigell/resume-tuner/internal/resume"
)

// categoryOrder fixes the flattening order of the categories the extraction prompt asks for.
var categoryOrder = []string{"Technical Skills", "Soft Skills", "Domain Knowledge"}

// parseExtraction accepts the categorised JSON answer; anything else is read
// as a comma-separated list of technical skills.
func parseExtraction(raw string) resume.Extraction {
	cleaned := extractJSON(raw)

	var list []any
	if err := decodeJSON(cleaned, &list); err == nil {
		return resume.Extraction{Skills: coerceStrings(list)}
	}

	var data map[string]any
	if err := decodeJSON(cleaned, &data); err != nil {
		skills := splitList(cleaned)
		return resume.Extraction{
			Skills:     skills,
			ByCategory: map[string][]string{categoryOrder[0]: skills},
		}
	}

	if flat, ok := data["skills"]; ok && len(data) == 1 {
		skills := coerceStrings(flat)
		return resume.Extraction{Skills: skills}
	}

	byCategory := make(map[string][]string, len(data))
	for category, value := range data {
		byCategory[category] = coerceStrings(value)
	}

	skills := make([]string, 0)
	for _, category := range orderedCategories(byCategory) {
		skills = append(skills, byCategory[category]...)
	}

	return resume.Extraction{Skills: skills, ByCategory: byCategory}
}

func orderedCategories(byCategory map[string][]string) []string {
	ordered := make([]string, 0, len(byCategory))
	known := make(map[string]bool, len(categoryOrder))
	for _, category := range categoryOrder {
		known[category] = true
		if _, ok := byCategory[category]; ok {
			ordered = append(ordered, category)
		}
	}

	rest := make([]string, 0)
	for category := range byCategory {
		if !known[category] {
			rest = append(rest, category)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}

func parseAnalysis(raw string) (resume.MatchResult, error) {
	var data map[string]any
	if err := decodeJSON(extractJSON(raw), &data); err != nil {
		return resume.MatchResult{}, fmt.Errorf("parse gemini response: %w", err)
	}

	percentage := coerceFloat(data["match_percentage"])
	if math.IsNaN(percentage) {
		return resume.MatchResult{}, fmt.Errorf("parse gemini response: match_percentage is missing")
	}
	percentage = resume.ClampPercentage(percentage)

	var categories map[string]any
	if v, ok := data["category_analysis"].(map[string]any); ok {
		categories = v
	}

	return resume.MatchResult{
		MatchPercentage:  percentage,
		MatchedSkills:    coerceStrings(data["matched_skills"]),
		UnmatchedSkills:  coerceStrings(data["unmatched_skills"]),
		Mood:             resume.Mood(percentage),
		CategoryAnalysis: categories,
	}, nil
}

// sectionOrder fixes the order of the sections the creation prompt asks for.
var sectionOrder = []string{
	"Contact Information",
	"Professional Summary",
	"Education",
	"Skills",
	"Projects",
	"Achievements",
	"Certifications",
}

type section struct {
	Title string
	Lines []string
}

// parseSections reads the creation answer. Known sections come first in
// sectionOrder, any others follow by name; empty sections are dropped.
func parseSections(raw string) ([]section, error) {
	var data map[string]any
	if err := decodeJSON(extractJSON(raw), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	byTitle := make(map[string][]string, len(data))
	for title, value := range data {
		if lines := coerceStrings(value); len(lines) > 0 {
			byTitle[strings.TrimSpace(title)] = lines
		}
	}
	if len(byTitle) == 0 {
		return nil, fmt.Errorf("no resume content generated")
	}

	known := make(map[string]bool, len(sectionOrder))
	sections := make([]section, 0, len(byTitle))
	for _, title := range sectionOrder {
		known[title] = true
		if lines, ok := byTitle[title]; ok {
			sections = append(sections, section{Title: title, Lines: lines})
		}
	}

	rest := make([]string, 0)
	for title := range byTitle {
		if !known[title] {
			rest = append(rest, title)
		}
	}
	sort.Strings(rest)
	for _, title := range rest {
		sections = append(sections, section{Title: title, Lines: byTitle[title]})
	}

	return sections, nil
}

// sectionsText renders sections as upper-case headings followed by bullet lines.
func sectionsText(sections []section) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(strings.ToUpper(s.Title))
		b.WriteByte('\n')
		for _, line := range s.Lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// decodeJSON unmarshals raw and retries once on a repaired copy when raw
// starts like a JSON document.
func decodeJSON(raw string, target any) error {
	err := json.Unmarshal([]byte(raw), target)
	if err == nil || !(strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[")) {
		return err
	}

	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return err
	}

	return json.Unmarshal([]byte(repaired), target)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// stripFence removes a surrounding markdown code fence of any language.
func stripFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	if idx := strings.Index(raw, "\n"); idx != -1 {
		raw = raw[idx+1:]
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func splitList(raw string) []string {
	return coerceStrings(strings.Split(raw, ","))
}

func coerceStrings(v any) []string {
	out := make([]string, 0)
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range val {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

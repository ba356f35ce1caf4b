package terminal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const previewBlocks = "h1, h2, h3, h4, p, li"

// previewLines flattens preview markup into one line per text block.
func previewLines(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	var lines []string
	doc.Find(previewBlocks).Each(func(_ int, sel *goquery.Selection) {
		// Nested blocks are visited on their own.
		if sel.Find(previewBlocks).Length() > 0 {
			return
		}
		if line := collapseSpace(sel.Text()); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		lines = textLines(doc.Text())
	}

	return lines, nil
}

// Changes counts the lines the tailored text adds and removes.
type Changes struct {
	Added   int
	Removed int
}

func diffLines(before, after []string) Changes {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(joinLines(before), joinLines(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var c Changes
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			c.Added += len(textLines(d.Text))
		case diffmatchpatch.DiffDelete:
			c.Removed += len(textLines(d.Text))
		}
	}
	return c
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func textLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = collapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

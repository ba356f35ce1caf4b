package resume

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type OutputFormat string

const (
	FormatPDF  OutputFormat = "pdf"
	FormatDOCX OutputFormat = "docx"
)

type TemplateStyle string

const (
	TemplateProfessional TemplateStyle = "professional"
	TemplateClassic      TemplateStyle = "classic"
	TemplateModern       TemplateStyle = "modern"
	TemplateMinimal      TemplateStyle = "minimal"
)

var (
	OutputFormats  = []OutputFormat{FormatPDF, FormatDOCX}
	TemplateStyles = []TemplateStyle{TemplateProfessional, TemplateClassic, TemplateModern, TemplateMinimal}
)

// Options are the user-selected settings for tailoring and preview.
type Options struct {
	OutputFormat  OutputFormat  `validate:"oneof=pdf docx"`
	TemplateStyle TemplateStyle `validate:"oneof=professional classic modern minimal"`
}

// OptionsPatch carries a partial update; nil fields keep the current value.
type OptionsPatch struct {
	OutputFormat  *OutputFormat
	TemplateStyle *TemplateStyle
}

var validate = validator.New()

// DefaultOptions is the variant selected when a workflow starts.
func DefaultOptions() Options {
	return Options{OutputFormat: FormatPDF, TemplateStyle: TemplateProfessional}
}

// Apply returns a new value with the patch fields replaced.
func (o Options) Apply(p OptionsPatch) Options {
	if p.OutputFormat != nil {
		o.OutputFormat = OutputFormat(strings.ToLower(strings.TrimSpace(string(*p.OutputFormat))))
	}
	if p.TemplateStyle != nil {
		o.TemplateStyle = TemplateStyle(strings.ToLower(strings.TrimSpace(string(*p.TemplateStyle))))
	}
	return o
}

func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid workflow options: %w", err)
	}
	return nil
}

// DocumentName is the file name a tailored resume is saved under.
func (f OutputFormat) DocumentName() string {
	return "tailored_resume." + string(f)
}

// MIMEType of a document rendered in this format.
func (f OutputFormat) MIMEType() string {
	if f == FormatDOCX {
		return MIMETypeDOCX
	}
	return MIMETypePDF
}

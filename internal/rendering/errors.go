// Package rendering renders completed sectional reports as HTML, JSON, plain text and PDF.
package rendering

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is wrapped by Render for formats it does not know.
var ErrUnsupportedFormat = errors.New("unsupported format")

// RenderError reports which format, and optionally which section, failed to render.
type RenderError struct {
	Format  Format
	Section string
	Cause   error
}

func (e *RenderError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "render %s", e.Format)
	if e.Section != "" {
		fmt.Fprintf(&sb, " section %q", e.Section)
	}
	if e.Cause != nil {
		sb.WriteString(": " + e.Cause.Error())
	}
	return sb.String()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

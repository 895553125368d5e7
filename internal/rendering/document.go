package rendering

import (
	"fmt"
	"strings"
	"time"

	"github.com/allstarteams/sectional-reports/internal/types"
)

// Format is an output format of the final report.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name, empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatText, "txt":
		return FormatText, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported format %q: must be html, json, text or pdf", s)
	}
}

// ContentType is the HTTP media type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/html; charset=utf-8"
	}
}

// Extension is the file extension of the format.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Document is a completed report ready to render.
type Document struct {
	Participant string
	UserID      int64
	ReportType  types.ReportType
	ReportID    string
	Sections    []types.Section
	GeneratedAt time.Time
}

// NewDocument collects the completed sections of a snapshot in catalogue order.
func NewDocument(participant string, p types.ReportProgress, generatedAt time.Time) *Document {
	doc := &Document{
		Participant: participant,
		UserID:      p.UserID,
		ReportType:  p.ReportType,
		ReportID:    p.ReportID,
		GeneratedAt: generatedAt,
	}
	for _, s := range p.Sections {
		if s.Status == types.SectionCompleted {
			doc.Sections = append(doc.Sections, s)
		}
	}
	return doc
}

// Title is the document title shown on every format.
func (d *Document) Title() string {
	if d.Participant == "" {
		return d.ReportType.Label()
	}
	return d.Participant + " - " + d.ReportType.Label()
}

// Render renders the document in the given format.
func Render(d *Document, f Format) ([]byte, error) {
	switch f {
	case FormatHTML:
		out, err := RenderHTML(d)
		return []byte(out), err
	case FormatJSON:
		return RenderJSON(d)
	case FormatText:
		out, err := RenderText(d)
		return []byte(out), err
	case FormatPDF:
		return RenderPDF(d)
	default:
		return nil, &RenderError{Format: f, Cause: ErrUnsupportedFormat}
	}
}

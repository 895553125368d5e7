package rendering

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, "Times New Roman", serif; max-width: 820px; margin: 2rem auto; padding: 0 1rem; color: #212529; line-height: 1.6; }
header { border-bottom: 3px solid #0066cc; margin-bottom: 2rem; }
header h1 { margin-bottom: 0.2rem; }
header p { color: #6c757d; margin-top: 0; }
section { margin-bottom: 2.5rem; }
section > h2 { color: #0066cc; }
footer { color: #6c757d; font-size: 0.85rem; border-top: 1px solid #dee2e6; padding-top: 1rem; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p>{{.Subtitle}}</p>
</header>
{{range .Sections}}<section id="section-{{.ID}}">
<h2>{{.Title}}</h2>
{{.Body}}
</section>
{{end}}<footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(reportTemplate))

type htmlSection struct {
	ID    int
	Title string
	Body  template.HTML
}

type htmlData struct {
	Title       string
	Subtitle    string
	Sections    []htmlSection
	GeneratedAt string
}

// RenderHTML renders the document as a standalone HTML page.
func RenderHTML(d *Document) (string, error) {
	data := htmlData{
		Title:       d.Title(),
		Subtitle:    d.ReportType.Subtitle(),
		GeneratedAt: d.GeneratedAt.UTC().Format(time.RFC1123),
	}
	for _, s := range d.Sections {
		body, err := SanitizeHTML(s.Content)
		if err != nil {
			return "", &RenderError{Format: FormatHTML, Section: s.Title, Cause: err}
		}
		data.Sections = append(data.Sections, htmlSection{ID: s.ID, Title: s.Title, Body: template.HTML(body)})
	}

	var result strings.Builder
	if err := htmlTemplate.Execute(&result, data); err != nil {
		return "", &RenderError{Format: FormatHTML, Cause: err}
	}
	return result.String(), nil
}

var unsafeElements = "script,style,iframe,object,embed,link,meta,form"

// SanitizeHTML strips active content from generated section markup.
func SanitizeHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc.Find(unsafeElements).Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			kept := node.Attr[:0]
			for _, a := range node.Attr {
				if !unsafeAttr(a.Key, a.Val) {
					kept = append(kept, a)
				}
			}
			node.Attr = kept
		}
	})
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

func unsafeAttr(key, val string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "on") {
		return true
	}
	if key == "href" || key == "src" {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "javascript:")
	}
	return false
}

type jsonSection struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type jsonDocument struct {
	UserID      int64         `json:"userId"`
	ReportType  string        `json:"reportType"`
	ReportID    string        `json:"reportId,omitempty"`
	Title       string        `json:"title"`
	Participant string        `json:"participantName,omitempty"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Sections    []jsonSection `json:"sections"`
}

// RenderJSON renders the document as JSON with the raw section HTML.
func RenderJSON(d *Document) ([]byte, error) {
	out := jsonDocument{
		UserID:      d.UserID,
		ReportType:  string(d.ReportType),
		ReportID:    d.ReportID,
		Title:       d.Title(),
		Participant: d.Participant,
		GeneratedAt: d.GeneratedAt,
		Sections:    make([]jsonSection, 0, len(d.Sections)),
	}
	for _, s := range d.Sections {
		out.Sections = append(out.Sections, jsonSection{ID: s.ID, Title: s.Title, Content: s.Content})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, &RenderError{Format: FormatJSON, Cause: err}
	}
	return data, nil
}

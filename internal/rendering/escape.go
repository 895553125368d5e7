package rendering

import (
	"strings"
	"unicode"
)

// SafeFilename turns text into a lowercase, dash separated file name component.
func SafeFilename(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text))
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			result.WriteRune(r)
			dash = false
		case !dash && result.Len() > 0:
			result.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(result.String(), "-")
}

// Filename is the download name of the document in the given format.
func Filename(d *Document, f Format) string {
	name := SafeFilename(d.Participant)
	if name == "" {
		name = "participant"
	}
	return name + "-" + SafeFilename(string(d.ReportType)) + "-report." + f.Extension()
}

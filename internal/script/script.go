// Package script converts between the free-text script box and the
// structured speaker/text lines the render platform consumes.
package script

import (
	"strings"

	"github.com/shortreel/api/internal/model"
)

// Parse splits free-text script input into speaker/text lines. A line of
// the form "Speaker: text" is attributed to that speaker; a line without a
// colon is narration with no speaker. Blank lines are skipped.
func Parse(input string) []model.ScriptLine {
	var lines []model.ScriptLine
	for _, raw := range strings.Split(input, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		speaker, text, found := strings.Cut(line, ":")
		if !found {
			lines = append(lines, model.ScriptLine{Text: line})
			continue
		}

		lines = append(lines, model.ScriptLine{
			Speaker: strings.TrimSpace(speaker),
			Text:    strings.TrimSpace(text),
		})
	}
	return lines
}

// Join renders script lines back into the free-text form Parse accepts.
func Join(lines []model.ScriptLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if line.Speaker != "" {
			b.WriteString(line.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(line.Text)
	}
	return b.String()
}

// Speakers returns the distinct speakers in order of first appearance.
func Speakers(lines []model.ScriptLine) []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, line := range lines {
		if line.Speaker == "" || seen[line.Speaker] {
			continue
		}
		seen[line.Speaker] = true
		speakers = append(speakers, line.Speaker)
	}
	return speakers
}

// Segments converts script lines into ordered project script segments.
func Segments(lines []model.ScriptLine) []model.ScriptSegment {
	segments := make([]model.ScriptSegment, 0, len(lines))
	for i, line := range lines {
		segments = append(segments, model.ScriptSegment{
			Index:   i,
			Speaker: line.Speaker,
			Text:    line.Text,
		})
	}
	return segments
}

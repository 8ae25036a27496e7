package story

import "strings"

const titleMarker = "Title: "

// ExtractTitle pulls the title out of generated story text. The first line
// carrying a "Title: " marker wins; without a marker the trimmed first line
// is used as-is.
func ExtractTitle(text string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, titleMarker); ok {
			return strings.TrimSpace(rest)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}

// Body returns the story text without its title marker line. Text that never
// carried a marker is returned unchanged apart from surrounding whitespace.
func Body(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, titleMarker) {
			rest := append(append([]string{}, lines[:i]...), lines[i+1:]...)
			return strings.TrimSpace(strings.Join(rest, "\n"))
		}
	}
	return strings.TrimSpace(text)
}

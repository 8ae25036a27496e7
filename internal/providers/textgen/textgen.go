// Package textgen turns a validated story request into generated story text.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyteller/internal/domain/story"
	"storyteller/internal/providers/genai"
)

// Params carries everything the prompt needs.
type Params struct {
	SubjectName string
	SubjectAge  int
	Theme       string
	LengthClass string
	Locale      string
}

// Generator produces story text. Implementations may fail or time out; they
// must never block past the request context.
type Generator interface {
	Generate(ctx context.Context, p Params) (string, error)
}

// Gemini generates stories through the shared genai client.
type Gemini struct {
	client *genai.Client
}

func NewGemini(client *genai.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Generate(ctx context.Context, p Params) (string, error) {
	text, err := g.client.GenerateText(ctx, BuildPrompt(p))
	if err != nil {
		return "", fmt.Errorf("textgen: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("textgen: backend returned empty story")
	}
	return text, nil
}

// wordsForLength maps a length class to an approximate word budget.
func wordsForLength(class string) int {
	switch class {
	case story.LengthMedium:
		return 600
	case story.LengthLong:
		return 900
	default:
		return 300
	}
}

// BuildPrompt renders the bedtime-story prompt. The title-first format is
// load-bearing: title extraction downstream depends on it.
func BuildPrompt(p Params) string {
	age := "young"
	if p.SubjectAge > 0 {
		age = fmt.Sprintf("%d year old", p.SubjectAge)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional children's bedtime story writer. Write an engaging, age-appropriate bedtime story for %s, a %s child.\n\n", p.SubjectName, age)
	b.WriteString("Story requirements:\n")
	fmt.Fprintf(&b, "- Theme: %s\n", p.Theme)
	fmt.Fprintf(&b, "- Length: about %d words\n", wordsForLength(p.LengthClass))
	b.WriteString("- Include a title at the beginning, on its own line, prefixed with \"Title: \"\n")
	fmt.Fprintf(&b, "- Make the main character named %s\n", p.SubjectName)
	b.WriteString("- Include a moral lesson appropriate for the child's age\n")
	b.WriteString("- Use simple language that a child would understand\n")
	b.WriteString("- Create a cozy, calming story perfect for bedtime\n")
	b.WriteString("- End with a gentle conclusion that encourages sleep\n")
	if p.Locale != "" && p.Locale != "en" {
		fmt.Fprintf(&b, "- Write the story in the language with code %q\n", p.Locale)
	}
	b.WriteString("\nFormat the story with the title at the top, followed by the story text. Do not include any additional commentary.\n")
	return b.String()
}

var _ Generator = (*Gemini)(nil)

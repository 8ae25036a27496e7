// Package imagegen produces the cover illustration for a story.
package imagegen

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyteller/internal/providers/genai"
)

// Params carries the record attributes the illustration prompt draws on.
type Params struct {
	Title       string
	Theme       string
	SubjectName string
}

// Generator produces cover image bytes. The artifact key's extension fixes
// the content type, so implementations return bytes only.
type Generator interface {
	Generate(ctx context.Context, p Params) ([]byte, error)
}

// Gemini generates covers through the shared genai client.
type Gemini struct {
	client *genai.Client
}

func NewGemini(client *genai.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Generate(ctx context.Context, p Params) ([]byte, error) {
	data, err := g.client.GenerateImage(ctx, BuildPrompt(p))
	if err != nil {
		return nil, fmt.Errorf("imagegen: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("imagegen: backend returned empty image")
	}
	return data, nil
}

// BuildPrompt renders the cover illustration prompt.
func BuildPrompt(p Params) string {
	theme := cases.Title(language.Und).String(p.Theme)
	return fmt.Sprintf(
		"Create a colorful, child-friendly illustration for a bedtime story titled %q with a %s theme. "+
			"The main character is named %s. Make it dreamy and suitable for a children's book cover. "+
			"Use soft colors and a warm, comforting style.",
		p.Title, theme, p.SubjectName,
	)
}

var _ Generator = (*Gemini)(nil)

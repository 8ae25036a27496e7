package worker

import (
	"context"

	"storyteller/internal/domain/story"
	"storyteller/internal/providers/imagegen"
	"storyteller/internal/providers/speech"
)

// AudioStage narrates the full story text.
type AudioStage struct {
	Speech speech.Synthesizer
}

func (s *AudioStage) Field() story.ArtifactField { return story.FieldAudio }

func (s *AudioStage) Generate(ctx context.Context, rec *story.Record, text string) (string, []byte, error) {
	data, err := s.Speech.Synthesize(ctx, text)
	if err != nil {
		return "", nil, err
	}
	return story.AudioKey(rec.ID), data, nil
}

// ImageStage renders the cover from the record's own attributes, which is why
// it needs the point read the harness already performed.
type ImageStage struct {
	Images imagegen.Generator
}

func (s *ImageStage) Field() story.ArtifactField { return story.FieldImage }

func (s *ImageStage) Generate(ctx context.Context, rec *story.Record, text string) (string, []byte, error) {
	data, err := s.Images.Generate(ctx, imagegen.Params{
		Title:       rec.Title,
		Theme:       rec.Theme,
		SubjectName: rec.SubjectName,
	})
	if err != nil {
		return "", nil, err
	}
	return story.ImageKey(rec.ID), data, nil
}

var (
	_ Stage = (*AudioStage)(nil)
	_ Stage = (*ImageStage)(nil)
)

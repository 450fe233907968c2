package session

import (
	"context"
	"strings"

	"github.com/r3d91ll/innercritic/internal/persona"
	"github.com/r3d91ll/innercritic/internal/prompts"
)

// GeneratePortrait draws the critic from description, or from the stored
// physical description when description is empty, and saves the image in
// the persona's appearance.
func (s *Session) GeneratePortrait(ctx context.Context, description string) (persona.Persona, error) {
	p := s.personaRef()
	if p == nil {
		return persona.Persona{}, ErrNoPersona
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = strings.TrimSpace(p.Appearance.PhysicalDescription)
	}
	if description == "" {
		return *p, ErrNoDescription
	}

	prompt := prompts.PortraitPrompt(description)
	url, err := s.model.GenerateImage(ctx, prompt)
	if err != nil {
		return *p, err
	}

	return s.UpdatePersona(ctx, func(cur persona.Persona) (persona.Persona, error) {
		return cur.WithAppearance(persona.Appearance{
			ImageURL:            url,
			ImagePrompt:         prompt,
			PhysicalDescription: description,
		}), nil
	})
}

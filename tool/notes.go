package tool

import (
	"context"
)

type ReadContextInput struct{}

type UpdateContextInput struct {
	Section string `json:"section" jsonschema:"required,enum=overview,enum=key_tables,enum=relationships,enum=common_patterns,enum=notes" jsonschema_description:"Which section to update"`
	Content string `json:"content" jsonschema:"required" jsonschema_description:"The new content for this section. Be concise, bullet points preferred."`
}

func (b *Builtins) registerReadContext(r *Registry) error {
	return Register(r, Definition{
		Name:        ReadContext,
		Description: "Read the context file containing notes about this data platform. Check this first to see what you already know before exploring.",
		Kind:        KindInternal,
	}, func(_ context.Context, _ ReadContextInput) (*Result, error) {
		text, err := b.Notes.Read()
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	})
}

func (b *Builtins) registerUpdateContext(r *Registry) error {
	return Register(r, Definition{
		Name: UpdateContext,
		Description: "Update the context file with new insights about the data platform.\n\n" +
			"Use this to record useful information you discover, such as:\n" +
			"- What key tables contain\n" +
			"- How tables relate to each other\n" +
			"- Common query patterns that work well\n" +
			"- Non-obvious facts (e.g. \"each row is a line item, not an order\")\n\n" +
			"IMPORTANT: Keep the context CONCISE. Update existing sections rather than appending duplicates. The goal is a quick reference, not a log.",
		Kind: KindInternal,
	}, func(_ context.Context, in UpdateContextInput) (*Result, error) {
		text, err := b.Notes.Update(in.Section, in.Content)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	})
}

package ai

import "context"

// Client defines an interface for the optional language-model collaborator.
// Implementations return the raw model output; callers must treat it as
// untrusted and validate every field before use.
type Client interface {
	// Available reports whether the collaborator is configured at all.
	Available() bool
	// StructuredExtract sends one bounded extraction request and returns the
	// model's raw text reply. Any transport or API failure is returned as-is;
	// the caller decides the fallback.
	StructuredExtract(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

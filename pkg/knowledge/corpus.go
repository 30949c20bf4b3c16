package knowledge

import (
	_ "embed"
)

//go:embed corpus/ronai.md
var ronAI string

// DefaultSources returns the built-in product knowledge the chatbot answers
// from.
func DefaultSources() []Source {
	return []Source{{Name: "ronai", Text: ronAI}}
}

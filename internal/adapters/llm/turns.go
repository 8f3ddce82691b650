package llm

import "github.com/PabloGalante/singlechat/internal/domain"

// turn is the minimal wire shape of one history entry.
type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toTurns drops identifiers and parents; only role and content are sent.
func toTurns(history []domain.Message) []turn {
	out := make([]turn, 0, len(history))
	for _, m := range history {
		out = append(out, turn{Role: string(m.Role), Content: m.Content})
	}
	return out
}

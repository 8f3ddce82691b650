package domain

type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversational roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

package chat

import "time"

// Role identifies who produced a turn or prompt message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
)

// Valid reports whether r may be stored in a session history.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Turn is one immutable message within a session history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptMessage is one element of the ordered context handed to the agent.
type PromptMessage struct {
	Role Role
	Text string
}

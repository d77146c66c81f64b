package chat

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidTurn      = errors.New("invalid turn")
	ErrIDExhausted      = errors.New("session id generation exhausted")
	ErrRegistryClosed   = errors.New("session registry closed")
	ErrAgentInvocation  = errors.New("agent invocation failed")
	ErrAgentUnavailable = errors.New("agent unavailable")
)

// AgentInvocationError wraps any failure of the agent collaborator. It
// matches ErrAgentInvocation with errors.Is and unwraps to the provider
// error.
type AgentInvocationError struct {
	Err      error
	TimedOut bool
}

func (e *AgentInvocationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("agent invocation timed out: %v", e.Err)
	}
	return fmt.Sprintf("agent invocation failed: %v", e.Err)
}

func (e *AgentInvocationError) Unwrap() error { return e.Err }

func (e *AgentInvocationError) Is(target error) bool {
	return target == ErrAgentInvocation
}

// Timeout reports whether the call was cut off by the request deadline.
// Timed-out exchanges are safe to retry.
func (e *AgentInvocationError) Timeout() bool { return e.TimedOut }

// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type EvaluationID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewEvaluationID() EvaluationID {
	return EvaluationID(uuid.New().String())
}

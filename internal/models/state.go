package models

import "time"

// FlowState is the persisted Answer Store and step pointer of one member's
// active flow of a given type.
type FlowState struct {
	UserID     string    `json:"user_id"`
	FlowType   FlowType  `json:"flow_type"`
	InstanceID string    `json:"instance_id"`
	Step       int       `json:"step"`
	Answers    Answers   `json:"answers"`
	Complete   bool      `json:"complete"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

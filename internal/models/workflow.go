package models

import "time"

// WorkflowAction — текущий шаг многошагового диалога пользователя.
type WorkflowAction string

const (
	ActionIdle           WorkflowAction = ""
	ActionCreateRole     WorkflowAction = "create_role"
	ActionCreateAmount   WorkflowAction = "create_amount"
	ActionCreateTerms    WorkflowAction = "create_terms"
	ActionCreatePassword WorkflowAction = "create_password"
	ActionJoinPassword   WorkflowAction = "join_password"
)

type WorkflowData struct {
	Role     DealRole `json:"role,omitempty"`
	Amount   float64  `json:"amount,omitempty"`
	Terms    string   `json:"terms,omitempty"`
	DealCode string   `json:"deal_code,omitempty"`
	DealID   int64    `json:"deal_id,omitempty"`
}

type WorkflowSession struct {
	UserID    int64          `json:"user_id"`
	Action    WorkflowAction `json:"current_action"`
	Data      WorkflowData   `json:"session_data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

package models

// Complaint is a user report, stored as a Redis hash under "complaint:<id>"
// and indexed by the "complaints:all" set.
type Complaint struct {
	ID           int64  `json:"complaint_id"`
	ReporterID   string `json:"reporter_id"`
	TargetUserID string `json:"target_user_id"`
	MessageID    string `json:"message_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

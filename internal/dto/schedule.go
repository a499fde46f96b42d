package dto

import "time"

// ── Schedule DTOs ──

// CreateScheduleRequest new session
type CreateScheduleRequest struct {
	Subject         string     `json:"subject"          binding:"required,max=255"`
	Institution     string     `json:"institution"      binding:"max=255"`
	DiscussionTopic string     `json:"discussion_topic"`
	Date            *time.Time `json:"date"             binding:"required"`
	Participants    []string   `json:"participants"     binding:"max=12"` // slot order, "" for an empty slot
}

// UpdateScheduleRequest field-level edit; nil fields stay unchanged
type UpdateScheduleRequest struct {
	Subject         *string        `json:"subject"          binding:"omitempty,max=255"`
	Institution     *string        `json:"institution"      binding:"omitempty,max=255"`
	DiscussionTopic *string        `json:"discussion_topic"`
	Date            *time.Time     `json:"date"`
	Participants    map[int]string `json:"participants"` // slot (1-12) -> name
	Cascade         bool           `json:"cascade"`      // shift later sessions of the same series
	Confirm         bool           `json:"confirm"`
}

// ScheduleResponse schedule view
type ScheduleResponse struct {
	ID              string   `json:"id"`
	Subject         string   `json:"subject"`
	Institution     string   `json:"institution"`
	DiscussionTopic string   `json:"discussion_topic"`
	Date            *string  `json:"date"` // RFC 3339, null when unknown
	Participants    []string `json:"participants"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// UpdateScheduleResponse result of an edit, with cascade count
type UpdateScheduleResponse struct {
	Schedule ScheduleResponse `json:"schedule"`
	Shifted  int              `json:"shifted"`
	DayDiff  int              `json:"day_diff"`
}

// ConfirmationPrompt returned with 409 when a write needs confirm=true
type ConfirmationPrompt struct {
	Count       int    `json:"count"`
	Subject     string `json:"subject,omitempty"`
	Institution string `json:"institution,omitempty"`
	Field       string `json:"field,omitempty"`
	Find        string `json:"find,omitempty"`
	Replace     string `json:"replace,omitempty"`
}

// BulkReplaceRequest find/replace one field across schedules
type BulkReplaceRequest struct {
	Field   string `json:"field"   binding:"required"`
	Find    string `json:"find"    binding:"required"`
	Replace string `json:"replace"`
	Confirm bool   `json:"confirm"`
}

// BulkReplaceResponse committed bulk replace
type BulkReplaceResponse struct {
	Field   string `json:"field"`
	Matched int    `json:"matched"`
	Updated int64  `json:"updated"`
	Batches int    `json:"batches"`
}

// Row actions
const (
	RowActionEdit   = "edit"
	RowActionSave   = "save"
	RowActionCancel = "cancel"
	RowActionDelete = "delete"
)

// RowActionRequest admin table row command; save carries the edit inline
type RowActionRequest struct {
	Action string `json:"action" binding:"required"`
	UpdateScheduleRequest
}

// RowActionResponse result of a row command
type RowActionResponse struct {
	Action   string            `json:"action"`
	Schedule *ScheduleResponse `json:"schedule,omitempty"`
	Shifted  int               `json:"shifted,omitempty"`
	Deleted  bool              `json:"deleted,omitempty"`
}

// ImportRequest import from a published sheet URL
type ImportRequest struct {
	URL string `json:"url" binding:"omitempty,url"`
}

// ImportResponse CSV import outcome
type ImportResponse struct {
	Imported    int   `json:"imported"`
	DroppedRows int   `json:"dropped_rows"`          // wrong field count
	Undated     int   `json:"undated"`               // stored without a date
	UndatedRows []int `json:"undated_rows,omitempty"` // 1-based source line numbers
}

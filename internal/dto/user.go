package dto

// UpdateDisplayNameRequest change the name used to match schedules
type UpdateDisplayNameRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
}

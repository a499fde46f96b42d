package dto

// AgendaEntry one upcoming session for a participant
type AgendaEntry struct {
	ScheduleID        string   `json:"schedule_id"`
	Subject           string   `json:"subject"`
	Date              string   `json:"date"`
	Institution       string   `json:"institution"`
	DiscussionTopic   string   `json:"discussion_topic"`
	OtherParticipants []string `json:"other_participants"`
}

// MyAgendaResponse the caller's agenda
type MyAgendaResponse struct {
	DisplayName       string        `json:"display_name"`
	RemainingSessions int           `json:"remaining_sessions"`
	Entries           []AgendaEntry `json:"entries"`
}

// ParticipantAgenda one participant in the admin summary
type ParticipantAgenda struct {
	Name    string        `json:"name"`
	Entries []AgendaEntry `json:"entries"`
}

// AgendaSummaryResponse per-participant summary, sorted by name
type AgendaSummaryResponse struct {
	Participants []ParticipantAgenda `json:"participants"`
}

// FeedResponse subscribable calendar URL
type FeedResponse struct {
	URL       string `json:"url"`
	QRCodePNG string `json:"qr_code_png"` // base64
	ExpiresAt string `json:"expires_at"`
}

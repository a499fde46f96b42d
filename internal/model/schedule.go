package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// MaxParticipants fixed number of participant slots per schedule
const MaxParticipants = 12

// Schedule one session (schedules).
// Participants live in fixed slots; empty slots are allowed and skipped.
type Schedule struct {
	ScheduleID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	Subject         string     `gorm:"type:varchar(255);not null;default:''"          json:"subject"`
	Institution     string     `gorm:"type:varchar(255);not null;default:''"          json:"institution"`
	DiscussionTopic string     `gorm:"type:text;not null;default:''"                  json:"discussion_topic"`
	Date            *time.Time `gorm:"type:timestamptz;index"                         json:"date"` // NULL when an imported date could not be parsed

	Participant1  string `gorm:"column:participant_1;type:varchar(255);not null;default:''"  json:"participant_1"`
	Participant2  string `gorm:"column:participant_2;type:varchar(255);not null;default:''"  json:"participant_2"`
	Participant3  string `gorm:"column:participant_3;type:varchar(255);not null;default:''"  json:"participant_3"`
	Participant4  string `gorm:"column:participant_4;type:varchar(255);not null;default:''"  json:"participant_4"`
	Participant5  string `gorm:"column:participant_5;type:varchar(255);not null;default:''"  json:"participant_5"`
	Participant6  string `gorm:"column:participant_6;type:varchar(255);not null;default:''"  json:"participant_6"`
	Participant7  string `gorm:"column:participant_7;type:varchar(255);not null;default:''"  json:"participant_7"`
	Participant8  string `gorm:"column:participant_8;type:varchar(255);not null;default:''"  json:"participant_8"`
	Participant9  string `gorm:"column:participant_9;type:varchar(255);not null;default:''"  json:"participant_9"`
	Participant10 string `gorm:"column:participant_10;type:varchar(255);not null;default:''" json:"participant_10"`
	Participant11 string `gorm:"column:participant_11;type:varchar(255);not null;default:''" json:"participant_11"`
	Participant12 string `gorm:"column:participant_12;type:varchar(255);not null;default:''" json:"participant_12"`

	// derived from the participant slots, never written directly
	SearchableParticipants pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"searchable_participants"`
	BaseModel
}

// TableName table name
func (Schedule) TableName() string { return "schedules" }

func (s *Schedule) slots() [MaxParticipants]*string {
	return [MaxParticipants]*string{
		&s.Participant1, &s.Participant2, &s.Participant3, &s.Participant4,
		&s.Participant5, &s.Participant6, &s.Participant7, &s.Participant8,
		&s.Participant9, &s.Participant10, &s.Participant11, &s.Participant12,
	}
}

// Participants returns all twelve slots in order, empty ones included
func (s *Schedule) Participants() []string {
	out := make([]string, 0, MaxParticipants)
	for _, p := range s.slots() {
		out = append(out, *p)
	}
	return out
}

// Participant returns slot n (1-based)
func (s *Schedule) Participant(n int) string {
	if n < 1 || n > MaxParticipants {
		return ""
	}
	return *s.slots()[n-1]
}

// SetParticipant sets slot n (1-based). Out of range slots are ignored.
// Callers must RefreshSearchableParticipants afterwards.
func (s *Schedule) SetParticipant(n int, name string) {
	if n < 1 || n > MaxParticipants {
		return
	}
	*s.slots()[n-1] = name
}

// Names returns the trimmed non-empty participant names in slot order
func (s *Schedule) Names() []string {
	var names []string
	for _, p := range s.slots() {
		if n := strings.TrimSpace(*p); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// RefreshSearchableParticipants recomputes the normalized lookup set
// from the current slots.
func (s *Schedule) RefreshSearchableParticipants() {
	s.SearchableParticipants = SearchableNames(s.Participants())
}

// SearchableNames lowercases and trims names, dropping empties and duplicates
func SearchableNames(names []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := NormalizeName(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// FieldValue reads a text field. Date is not a text field and yields "".
func (s *Schedule) FieldValue(f ScheduleField) string {
	switch f {
	case FieldSubject:
		return s.Subject
	case FieldInstitution:
		return s.Institution
	case FieldDiscussionTopic:
		return s.DiscussionTopic
	}
	if n := f.ParticipantSlot(); n > 0 {
		return s.Participant(n)
	}
	return ""
}

// SetFieldValue writes a text field, refreshing the searchable set when a
// participant slot changes.
func (s *Schedule) SetFieldValue(f ScheduleField, v string) {
	switch f {
	case FieldSubject:
		s.Subject = v
	case FieldInstitution:
		s.Institution = v
	case FieldDiscussionTopic:
		s.DiscussionTopic = v
	default:
		if n := f.ParticipantSlot(); n > 0 {
			s.SetParticipant(n, v)
			s.RefreshSearchableParticipants()
		}
	}
}

// BeforeCreate keeps the searchable set in sync for every insert path
func (s *Schedule) BeforeCreate(_ *gorm.DB) error {
	s.RefreshSearchableParticipants()
	return nil
}

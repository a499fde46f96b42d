package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownField field name is not a schedule column or alias
var ErrUnknownField = errors.New("unknown schedule field")

// ScheduleField a schedules column that can be addressed by name
type ScheduleField string

const (
	FieldSubject         ScheduleField = "subject"
	FieldInstitution     ScheduleField = "institution"
	FieldDiscussionTopic ScheduleField = "discussion_topic"
	FieldDate            ScheduleField = "date"
)

const participantPrefix = "participant_"

// ParticipantField returns the field for slot n (1-based)
func ParticipantField(n int) ScheduleField {
	return ScheduleField(participantPrefix + strconv.Itoa(n))
}

var fieldAliases = map[string]ScheduleField{
	"subject":          FieldSubject,
	"mata_pelajaran":   FieldSubject,
	"institution":      FieldInstitution,
	"institusi":        FieldInstitution,
	"discussion_topic": FieldDiscussionTopic,
	"materi_diskusi":   FieldDiscussionTopic,
	"date":             FieldDate,
	"tanggal":          FieldDate,
}

// ParseScheduleField resolves a column name or a spreadsheet header
// ("Mata_Pelajaran", "Materi Diskusi", "Peserta 3", ...) to a field.
func ParseScheduleField(name string) (ScheduleField, error) {
	key := strings.ToLower(strings.Join(strings.Fields(name), "_"))
	if f, ok := fieldAliases[key]; ok {
		return f, nil
	}
	for _, prefix := range []string{"peserta_", participantPrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			n, err := strconv.Atoi(rest)
			if err == nil && n >= 1 && n <= MaxParticipants {
				return ParticipantField(n), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Column database column name
func (f ScheduleField) Column() string {
	return string(f)
}

// ParticipantSlot returns the 1-based slot, or 0 when f is not a participant
func (f ScheduleField) ParticipantSlot() int {
	rest, ok := strings.CutPrefix(string(f), participantPrefix)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > MaxParticipants {
		return 0
	}
	return n
}

// IsBulkReplaceable subject, institution and participant slots only
func (f ScheduleField) IsBulkReplaceable() bool {
	return f == FieldSubject || f == FieldInstitution || f.ParticipantSlot() > 0
}

// Label spreadsheet header used by the original sheet
func (f ScheduleField) Label() string {
	switch f {
	case FieldSubject:
		return "Mata_Pelajaran"
	case FieldInstitution:
		return "Institusi"
	case FieldDiscussionTopic:
		return "Materi Diskusi"
	case FieldDate:
		return "Tanggal"
	}
	if n := f.ParticipantSlot(); n > 0 {
		return "Peserta " + strconv.Itoa(n)
	}
	return string(f)
}

// ScheduleFields every addressable field in sheet order
func ScheduleFields() []ScheduleField {
	fields := []ScheduleField{FieldDate, FieldSubject, FieldInstitution, FieldDiscussionTopic}
	for i := 1; i <= MaxParticipants; i++ {
		fields = append(fields, ParticipantField(i))
	}
	return fields
}

package service

import (
	"sort"
	"time"

	"github.com/msyamrijal/jadwal-website/internal/model"
)

// AgendaEntry one upcoming session as seen by one participant
type AgendaEntry struct {
	ScheduleID        string
	Subject           string
	Date              time.Time
	Institution       string
	DiscussionTopic   string
	OtherParticipants []string
}

// StartOfDay midnight of t in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// BuildAgendas groups records into per-participant agendas.
//
// Records without a date or dated before local midnight of now are left
// out. Keys are the trimmed slot values, case preserved. Each agenda is
// sorted by date; equal dates keep input order.
func BuildAgendas(records []model.Schedule, now time.Time) map[string][]AgendaEntry {
	agendas := make(map[string][]AgendaEntry)
	midnight := StartOfDay(now)

	for i := range records {
		rec := &records[i]
		if rec.Date == nil || rec.Date.Before(midnight) {
			continue
		}

		names := rec.Names()
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			others := make([]string, 0, len(names)-1)
			for _, other := range names {
				if other != name {
					others = append(others, other)
				}
			}

			agendas[name] = append(agendas[name], AgendaEntry{
				ScheduleID:        rec.ScheduleID,
				Subject:           rec.Subject,
				Date:              *rec.Date,
				Institution:       rec.Institution,
				DiscussionTopic:   rec.DiscussionTopic,
				OtherParticipants: others,
			})
		}
	}

	for name := range agendas {
		entries := agendas[name]
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].Date.Before(entries[b].Date)
		})
	}
	return agendas
}

package domain

import (
	"sort"
	"time"
)

type Watchtime struct {
	ChannelID EntityID
	Chatters  map[string]int64
	UpdatedAt time.Time
}

type ChatterMinutes struct {
	UserID  string
	Minutes int64
}

// Observe records one poll sighting for each chatter. A first sighting only
// registers the chatter, later sightings add a minute.
func (w *Watchtime) Observe(userIDs []string, now time.Time) {
	if w.Chatters == nil {
		w.Chatters = map[string]int64{}
	}
	for _, userID := range userIDs {
		if _, ok := w.Chatters[userID]; !ok {
			w.Chatters[userID] = 0
			continue
		}
		w.Chatters[userID]++
	}
	w.UpdatedAt = now
}

func (w Watchtime) Top(n int) []ChatterMinutes {
	out := make([]ChatterMinutes, 0, len(w.Chatters))
	for userID, minutes := range w.Chatters {
		out = append(out, ChatterMinutes{UserID: userID, Minutes: minutes})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].UserID < out[j].UserID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Package links persists meeting links one at a time and tallies outcomes.
package links

import (
	"context"

	appLog "unical/internal/log"
)

// Saver stores a single lesson link.
type Saver interface {
	SaveLink(ctx context.Context, lessonID, url string) error
}

// Item is one link write.
type Item struct {
	LessonID string `json:"lesson_id"`
	URL      string `json:"url"`
}

// Tally is the aggregate outcome of a bulk save.
type Tally struct {
	Saved  int      `json:"saved"`
	Failed int      `json:"failed"`
	Stored []string `json:"-"`
}

// SaveAll writes items sequentially. A failing item is counted and the loop
// moves on; only context cancellation stops it early, with the remaining
// items counted as failed.
func SaveAll(ctx context.Context, s Saver, items []Item) Tally {
	var t Tally
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			t.Failed += len(items) - i
			appLog.Error("link save aborted", err, "remaining", len(items)-i)
			break
		}
		if err := s.SaveLink(ctx, it.LessonID, it.URL); err != nil {
			t.Failed++
			appLog.Error("link save failed", err, "lesson_id", it.LessonID)
			continue
		}
		t.Saved++
		t.Stored = append(t.Stored, it.LessonID)
	}
	appLog.Info("link save completed", "saved", t.Saved, "failed", t.Failed)
	return t
}

package shop

import (
	"fmt"
	"time"

	"profitcruiser/internal/state"
)

// ViewSnapshot is the per-script view tally, the site total and the
// daily timeline.
type ViewSnapshot struct {
	Views    map[string]int        `json:"views"`
	Total    int                   `json:"total"`
	Timeline []state.TimelineEntry `json:"timeline"`
}

// RecordView counts one page view for a script and bumps today's
// timeline bucket.
func (s *Service) RecordView(slug string) (ViewSnapshot, error) {
	var snap ViewSnapshot
	err := s.store.Update(func(doc *state.Document) error {
		if doc.Views == nil {
			doc.Views = map[string]int{}
		}
		doc.Views[slug]++
		doc.BumpViewTimeline(time.Now().UTC().Format("2006-01-02"))
		doc.AppendActivity(fmt.Sprintf("View recorded for %s", slug))
		snap = snapshotViews(doc)
		return nil
	})
	return snap, err
}

// Views returns the current view counts without mutating anything.
func (s *Service) Views() ViewSnapshot {
	var snap ViewSnapshot
	s.store.View(func(doc *state.Document) {
		snap = snapshotViews(doc)
	})
	return snap
}

func snapshotViews(doc *state.Document) ViewSnapshot {
	views := make(map[string]int, len(doc.Views))
	total := 0
	for slug, count := range doc.Views {
		views[slug] = count
		total += count
	}
	return ViewSnapshot{
		Views:    views,
		Total:    total,
		Timeline: append([]state.TimelineEntry(nil), doc.ViewTimeline...),
	}
}

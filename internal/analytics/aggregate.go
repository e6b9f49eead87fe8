// Package analytics turns the interaction event log into session-deduplicated
// dashboard metrics.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/tappo/tappo/internal/models"
)

const (
	// TopButtonsLimit caps the button ranking.
	TopButtonsLimit = 10
	// UntitledButton labels button clicks that carried no text.
	UntitledButton = "Untitled"
)

// sessionSet is a set of distinct session ids.
type sessionSet map[string]struct{}

func (s sessionSet) add(id string) { s[id] = struct{}{} }

type tagBucket struct {
	touches sessionSet
	reviews sessionSet
}

func newTagBucket() *tagBucket {
	return &tagBucket{touches: sessionSet{}, reviews: sessionSet{}}
}

// ConversionRate is reviews/touches as a whole percent, rounded half away
// from zero. It is 0 when there are no touches.
func ConversionRate(reviews, touches int) int {
	if touches <= 0 {
		return 0
	}
	return int(math.Round(float64(reviews) / float64(touches) * 100))
}

// ButtonLabel is the ranking label for a button click.
func ButtonLabel(blockText string) string {
	if label := strings.TrimSpace(blockText); label != "" {
		return label
	}
	return UntitledButton
}

// Compute aggregates events into a report. tags are the tags in scope in
// display order; events should be ordered oldest first since button ties
// keep first-encountered order. Events without a session are ignored.
//
// Overall counts deduplicate sessions across the whole event set while each
// tag deduplicates within its own events, so per-tag touches need not sum to
// the overall figure.
func Compute(tags []*models.NfcTag, events []*models.InteractionEvent) models.Report {
	touches := sessionSet{}
	reviews := sessionSet{}

	perTag := make(map[string]*tagBucket, len(tags))
	for _, t := range tags {
		perTag[t.ID] = newTagBucket()
	}

	buttons := make(map[string]sessionSet)
	var buttonOrder []string

	for _, ev := range events {
		if ev.SessionID == "" {
			continue
		}

		switch ev.EventType {
		case models.EventNFCTouch:
			touches.add(ev.SessionID)
		case models.EventReviewClick:
			reviews.add(ev.SessionID)
		case models.EventButtonClick:
			label := ButtonLabel(ev.BlockText)
			set, ok := buttons[label]
			if !ok {
				set = sessionSet{}
				buttons[label] = set
				buttonOrder = append(buttonOrder, label)
			}
			set.add(ev.SessionID)
		}

		if ev.NfcTagID == "" {
			continue
		}
		b, ok := perTag[ev.NfcTagID]
		if !ok {
			continue
		}
		switch ev.EventType {
		case models.EventNFCTouch:
			b.touches.add(ev.SessionID)
		case models.EventReviewClick:
			b.reviews.add(ev.SessionID)
		}
	}

	report := models.Report{
		Overall: models.PeriodMetrics{
			UniqueTouches:      len(touches),
			UniqueReviewClicks: len(reviews),
			ConversionRate:     ConversionRate(len(reviews), len(touches)),
		},
		PerTag:     make([]models.TagMetric, 0, len(tags)),
		TopButtons: make([]models.ButtonRanking, 0, len(buttonOrder)),
	}

	for _, t := range tags {
		b := perTag[t.ID]
		report.PerTag = append(report.PerTag, models.TagMetric{
			TagID:          t.ID,
			Name:           t.DisplayName(),
			Touches:        len(b.touches),
			Reviews:        len(b.reviews),
			ConversionRate: ConversionRate(len(b.reviews), len(b.touches)),
		})
	}
	sort.SliceStable(report.PerTag, func(i, j int) bool {
		return report.PerTag[i].Touches > report.PerTag[j].Touches
	})

	for _, label := range buttonOrder {
		report.TopButtons = append(report.TopButtons, models.ButtonRanking{
			Label:        label,
			UniqueClicks: len(buttons[label]),
		})
	}
	sort.SliceStable(report.TopButtons, func(i, j int) bool {
		return report.TopButtons[i].UniqueClicks > report.TopButtons[j].UniqueClicks
	})
	if len(report.TopButtons) > TopButtonsLimit {
		report.TopButtons = report.TopButtons[:TopButtonsLimit]
	}

	return report
}

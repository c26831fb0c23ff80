package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/getpup/pupstore/es"
	"github.com/getpup/pupstore/es/recorder"
)

// DefaultSectionSize is the page size of a notification log unless
// configured otherwise.
const DefaultSectionSize = 10

// Section is one bounded, resumable page of a notification log.
// It is an immutable view computed per request and never persisted.
//
// ID describes the first and last notification actually contained in
// the section as "<first>,<last>", which can be a sparser range than
// requested when the underlying sequence has gaps. NextID is the
// section to request next, and is empty when the section is not full:
// empty means "caught up for now, poll again later", never "stream
// exhausted" — the log is append-only and unbounded, so new
// notifications can appear at the same boundary.
type Section struct {
	// ID describes the notifications contained, empty for an empty section
	ID string

	// Items are the notifications in ascending id order
	Items []es.Notification

	// NextID is the section id to request next, empty when caught up
	NextID string
}

// LocalNotificationLog presents sections of notifications selected
// from an application recorder.
type LocalNotificationLog struct {
	recorder    recorder.ApplicationRecorder
	sectionSize int64
}

// NewLocalNotificationLog creates a notification log over the given
// recorder. A sectionSize of 0 or less falls back to
// DefaultSectionSize.
func NewLocalNotificationLog(rec recorder.ApplicationRecorder, sectionSize int64) *LocalNotificationLog {
	if sectionSize <= 0 {
		sectionSize = DefaultSectionSize
	}
	return &LocalNotificationLog{
		recorder:    rec,
		sectionSize: sectionSize,
	}
}

// Get returns the section of the log described by the given section
// id. Requested ranges are clamped: the start is floored to 1 and the
// length is capped at the configured section size, so oversized or
// reversed ranges degrade gracefully instead of erroring. The returned
// section describes the notifications actually found, which may differ
// from the request when the log is shorter than requested or the
// sequence has gaps.
func (l *LocalNotificationLog) Get(ctx context.Context, sectionID string) (Section, error) {
	first, last, err := parseSectionID(sectionID)
	if err != nil {
		return Section{}, err
	}

	start := max(int64(1), first)
	limit := min(max(int64(0), last-start+1), l.sectionSize)

	notifications, err := l.recorder.SelectNotifications(ctx, start, limit)
	if err != nil {
		return Section{}, fmt.Errorf("failed to select notifications: %w", err)
	}

	if len(notifications) == 0 {
		return Section{}, nil
	}

	lastID := notifications[len(notifications)-1].ID
	section := Section{
		ID:    formatSectionID(notifications[0].ID, lastID),
		Items: notifications,
	}
	if int64(len(notifications)) == limit {
		// Full page: the next section starts right after the last
		// notification actually returned.
		nextStart := lastID + 1
		section.NextID = formatSectionID(nextStart, nextStart+limit-1)
	}
	return section, nil
}

func parseSectionID(sectionID string) (first, last int64, err error) {
	firstPart, lastPart, ok := strings.Cut(sectionID, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid section id %q: expected \"<first>,<last>\"", sectionID)
	}
	first, err = strconv.ParseInt(firstPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid section id %q: %w", sectionID, err)
	}
	last, err = strconv.ParseInt(lastPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid section id %q: %w", sectionID, err)
	}
	return first, last, nil
}

func formatSectionID(first, last int64) string {
	return fmt.Sprintf("%d,%d", first, last)
}

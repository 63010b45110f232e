package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/webhook"
)

// 変更容易性を高めるため、time.DateTime をあえて指定していない
const transcriptTimeLayout = "2006-01-02 15:04:05"

func buildTranscriptText(c notify.Completion, timezone string, loc *time.Location) []byte {
	startText := c.StartedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)
	endText := c.FinishedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)

	lines := []string{
		fmt.Sprintf("セッション ID：%s", c.SessionID),
		fmt.Sprintf("録音期間：%s ~ %s（%s）", startText, endText, timezone),
		fmt.Sprintf("音声の長さ：%s", formatElapsedHMS(time.Duration(c.AudioSeconds*float64(time.Second)))),
		"",
		c.Text,
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildTranscriptWebhookPayload(c notify.Completion, timezone string, loc *time.Location) webhook.TranscriptWebhookPayload {
	durationSeconds := int64(c.FinishedAt.Sub(c.StartedAt).Seconds())
	if durationSeconds < 0 || c.StartedAt.IsZero() {
		durationSeconds = 0
	}

	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       c.SessionID,
		State:           c.State,
		StartAt:         formatTimestamp(c.StartedAt, loc),
		EndAt:           formatTimestamp(c.FinishedAt, loc),
		Timezone:        timezone,
		DurationSeconds: durationSeconds,
		AudioSeconds:    c.AudioSeconds,
		ArtifactBytes:   c.ArtifactBytes,
		Transcript:      c.Text,
		Error:           c.ErrorMessage(),
	}
}

func buildCompletionMessage(c notify.Completion) string {
	lines := []string{completionTitle(c.State, c.Text), sessionIDLine(c.SessionID)}
	if c.Err != nil {
		stage := c.Stage
		if stage == "" {
			stage = failureStage(c.Err)
		}
		lines = append(lines, failureDetail(stage))
	}
	lines = append(lines, messagePoweredByLine)
	return strings.Join(lines, "\n")
}

// failureStage recovers the stage from the error for completions that do not
// carry one.
func failureStage(err error) string {
	switch {
	case errors.Is(err, ErrIOFailure):
		return "artifact"
	case errors.Is(err, ErrTranscodeFailed):
		return "transcode"
	case errors.Is(err, ErrTranscriptionFailed):
		return "transcribe"
	default:
		return ""
	}
}

func formatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(safeLocation(loc)).Format(time.RFC3339)
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

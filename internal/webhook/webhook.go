package webhook

import "context"

const TranscriptWebhookSchemaVersion = 1

type TranscriptWebhookPayload struct {
	SchemaVersion   int     `json:"schema_version"`
	SessionID       string  `json:"session_id"`
	State           string  `json:"state"`
	StartAt         string  `json:"start_at"`
	EndAt           string  `json:"end_at"`
	Timezone        string  `json:"timezone"`
	DurationSeconds int64   `json:"duration_seconds"`
	AudioSeconds    float64 `json:"audio_seconds"`
	ArtifactBytes   int64   `json:"artifact_bytes"`
	Transcript      string  `json:"transcript"`
	Error           string  `json:"error,omitempty"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}

package config

import (
	"fmt"
	"time"
)

// Config is the session-side (backend) configuration.
type Config struct {
	Env                        string
	ListenAddr                 string
	ArtifactDir                string
	KeepArtifacts              bool
	FFmpegPath                 string
	TranscribeLanguage         string
	TranscribeTimeout          time.Duration
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscriptTimezone         string
	TranscriptWebhookURL       string
	TranscriptWebhookTimeout   time.Duration
	DiscordToken               string
	DiscordChannelID           string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT must be positive, got %s", c.TranscribeTimeout)
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "ARTIFACT_DIR", value: c.ArtifactDir},
		{name: "FFMPEG_PATH", value: c.FFmpegPath},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "TRANSCRIPT_TIMEZONE", value: c.TranscriptTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

// RecorderConfig is the capture-side configuration.
type RecorderConfig struct {
	Env                string
	BackendURL         string
	LiveWindowSeconds  float64
	SliceInterval      time.Duration
	GraceWindow        time.Duration
	DecodeWaitTimeout  time.Duration
	FFmpegPath         string
	CaptureInputFormat string
	CaptureInputDevice string
	FileChunkSize      int
}

func (c *RecorderConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.LiveWindowSeconds <= 0 {
		return fmt.Errorf("LIVE_WINDOW_SECONDS must be positive, got %v", c.LiveWindowSeconds)
	}
	if c.SliceInterval <= 0 {
		return fmt.Errorf("SLICE_INTERVAL must be positive, got %s", c.SliceInterval)
	}
	if c.GraceWindow < 0 {
		return fmt.Errorf("GRACE_WINDOW must not be negative, got %s", c.GraceWindow)
	}
	if c.DecodeWaitTimeout < 0 {
		return fmt.Errorf("DECODE_WAIT_TIMEOUT must not be negative, got %s", c.DecodeWaitTimeout)
	}
	if c.FileChunkSize <= 0 {
		return fmt.Errorf("FILE_CHUNK_SIZE must be positive, got %d", c.FileChunkSize)
	}
	return nil
}

func (c *RecorderConfig) IsDevelopment() bool {
	return c.Env == "development"
}

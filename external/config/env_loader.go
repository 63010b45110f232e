package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitori/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ArtifactDir                string        `env:"ARTIFACT_DIR"`
	KeepArtifacts              bool          `env:"KEEP_ARTIFACTS" envDefault:"false"`
	FFmpegPath                 string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE,required"`
	TranscribeTimeout          time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"10m"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"asia-northeast1"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	TranscriptTimezone         string        `env:"TRANSCRIPT_TIMEZONE" envDefault:"Asia/Tokyo"`
	TranscriptWebhookURL       string        `env:"TRANSCRIPT_WEBHOOK_URL"`
	TranscriptWebhookTimeout   time.Duration `env:"TRANSCRIPT_WEBHOOK_TIMEOUT" envDefault:"15s"`
	DiscordToken               string        `env:"DISCORD_TOKEN"`
	DiscordChannelID           string        `env:"DISCORD_CHANNEL_ID"`
}

type recorderEnvConfig struct {
	Env                string        `env:"ENV" envDefault:"production"`
	BackendURL         string        `env:"BACKEND_URL" envDefault:"ws://localhost:8080/ws"`
	LiveWindowSeconds  float64       `env:"LIVE_WINDOW_SECONDS" envDefault:"5"`
	SliceInterval      time.Duration `env:"SLICE_INTERVAL" envDefault:"250ms"`
	GraceWindow        time.Duration `env:"GRACE_WINDOW" envDefault:"300ms"`
	DecodeWaitTimeout  time.Duration `env:"DECODE_WAIT_TIMEOUT" envDefault:"2s"`
	FFmpegPath         string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	CaptureInputFormat string        `env:"CAPTURE_INPUT_FORMAT"`
	CaptureInputDevice string        `env:"CAPTURE_INPUT_DEVICE"`
	FileChunkSize      int           `env:"FILE_CHUNK_SIZE" envDefault:"32768"`
}

// loadDotEnv reads .env into the process environment when the file exists.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	return nil
}

func Load() (*internalconfig.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if raw.ArtifactDir == "" {
		raw.ArtifactDir = filepath.Join(os.TempDir(), "kikitori")
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		ArtifactDir:                raw.ArtifactDir,
		KeepArtifacts:              raw.KeepArtifacts,
		FFmpegPath:                 raw.FFmpegPath,
		TranscribeLanguage:         raw.TranscribeLanguage,
		TranscribeTimeout:          raw.TranscribeTimeout,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscriptTimezone:         raw.TranscriptTimezone,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		TranscriptWebhookTimeout:   raw.TranscriptWebhookTimeout,
		DiscordToken:               raw.DiscordToken,
		DiscordChannelID:           raw.DiscordChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadRecorder() (*internalconfig.RecorderConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	var raw recorderEnvConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.RecorderConfig{
		Env:                raw.Env,
		BackendURL:         raw.BackendURL,
		LiveWindowSeconds:  raw.LiveWindowSeconds,
		SliceInterval:      raw.SliceInterval,
		GraceWindow:        raw.GraceWindow,
		DecodeWaitTimeout:  raw.DecodeWaitTimeout,
		FFmpegPath:         raw.FFmpegPath,
		CaptureInputFormat: raw.CaptureInputFormat,
		CaptureInputDevice: raw.CaptureInputDevice,
		FileChunkSize:      raw.FileChunkSize,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

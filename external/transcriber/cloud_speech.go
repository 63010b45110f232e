package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	// Synchronous Recognize accepts at most one minute of audio per request.
	maxWindowSeconds = 55
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	language        string
	location        string
	model           string

	// recognize replaces the API client when set.
	recognize recognizeFunc
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	return &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		language:        cfg.Language,
		location:        strings.TrimSpace(cfg.Location),
		model:           strings.TrimSpace(cfg.Model),
	}
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	recognize := t.recognize
	if recognize == nil {
		client, err := t.newClient(ctx)
		if err != nil {
			return "", err
		}
		defer func() {
			_ = client.Close()
		}()
		recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		}
	}

	windows := splitWindows(samples, sampleRate*maxWindowSeconds)
	slog.Info("starting cloud speech recognition", "location", t.location, "language", t.language, "model", t.model, "windows", len(windows))

	parts := make([]string, 0, len(windows))
	for i, w := range windows {
		resp, err := recognize(ctx, t.buildRequest(w, sampleRate))
		if err != nil {
			return "", fmt.Errorf("recognize window %d/%d: %w", i+1, len(windows), describeRPCError(err))
		}
		if text := joinResults(resp); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (t *CloudSpeechTranscriber) newClient(ctx context.Context) (*speech.Client, error) {
	detect := &credentials.DetectOptions{
		Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"},
	}
	if t.credentialsJSON != "" {
		detect.CredentialsJSON = []byte(t.credentialsJSON)
	}
	creds, err := credentials.DetectDefault(detect)
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != "" && t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}
	return speech.NewClient(ctx, opts...)
}

func (t *CloudSpeechTranscriber) buildRequest(samples []float32, sampleRate int) *speechpb.RecognizeRequest {
	location := t.location
	if location == "" {
		location = "global"
	}
	return &speechpb.RecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, location),
		Config: &speechpb.RecognitionConfig{
			Model:         t.model,
			LanguageCodes: []string{t.language},
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(sampleRate),
					AudioChannelCount: 1,
				},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{
			Content: audio.Float32ToPCMBytes(samples),
		},
	}
}

func splitWindows(samples []float32, size int) [][]float32 {
	if size <= 0 {
		return [][]float32{samples}
	}
	windows := make([][]float32, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		windows = append(windows, samples[start:end])
	}
	return windows
}

func joinResults(resp *speechpb.RecognizeResponse) string {
	var parts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// describeRPCError keeps the gRPC code in the message so callers can tell
// quota and auth failures apart from bad audio.
func describeRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.Unknown {
		return err
	}
	return fmt.Errorf("%s: %s", st.Code(), st.Message())
}

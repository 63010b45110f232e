package transcriber

import (
	"context"
	"errors"
	"strings"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func response(texts ...string) *speechpb.RecognizeResponse {
	resp := &speechpb.RecognizeResponse{}
	for _, text := range texts {
		resp.Results = append(resp.Results, &speechpb.SpeechRecognitionResult{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
		})
	}
	return resp
}

func newTestTranscriber(fn recognizeFunc) *CloudSpeechTranscriber {
	t := NewCloudSpeechTranscriber(CloudSpeechConfig{
		ProjectID: "project",
		Language:  "ja-JP",
		Location:  "asia-northeast1",
		Model:     "chirp_3",
	}).(*CloudSpeechTranscriber)
	t.recognize = fn
	return t
}

func TestTranscribeSplitsLongAudio(t *testing.T) {
	var sizes []int
	tr := newTestTranscriber(func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		sizes = append(sizes, len(req.GetContent()))
		if req.GetRecognizer() != "projects/project/locations/asia-northeast1/recognizers/_" {
			t.Errorf("unexpected recognizer %q", req.GetRecognizer())
		}
		dec := req.GetConfig().GetExplicitDecodingConfig()
		if dec.GetSampleRateHertz() != 16000 || dec.GetAudioChannelCount() != 1 {
			t.Errorf("unexpected decoding config %+v", dec)
		}
		return response("part"), nil
	})

	samples := make([]float32, 16000*(maxWindowSeconds+5))
	text, err := tr.Transcribe(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "part part" {
		t.Fatalf("text = %q, want %q", text, "part part")
	}
	if len(sizes) != 2 || sizes[0] != 16000*maxWindowSeconds*2 || sizes[1] != 16000*5*2 {
		t.Fatalf("unexpected window byte sizes %v", sizes)
	}
}

func TestTranscribeJoinsResults(t *testing.T) {
	tr := newTestTranscriber(func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return response(" こんにちは", "", "世界 "), nil
	})
	text, err := tr.Transcribe(context.Background(), make([]float32, 100), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "こんにちは 世界" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeRendersRPCStatus(t *testing.T) {
	tr := newTestTranscriber(func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, status.Error(codes.ResourceExhausted, "quota exceeded")
	})
	_, err := tr.Transcribe(context.Background(), make([]float32, 100), 16000)
	if err == nil || !strings.Contains(err.Error(), "ResourceExhausted") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	tr := newTestTranscriber(func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, errors.New("should not be called")
	})
	text, err := tr.Transcribe(context.Background(), nil, 16000)
	if err != nil || text != "" {
		t.Fatalf("Transcribe(nil) = %q, %v", text, err)
	}
}

func TestSplitWindows(t *testing.T) {
	got := splitWindows(make([]float32, 10), 4)
	if len(got) != 3 || len(got[2]) != 2 {
		t.Fatalf("unexpected windows %v", got)
	}
}

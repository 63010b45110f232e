package capture

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/capture"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (capture.Source, error) {
		return NewDirectSource(), nil
	})
	do.Provide(injector, func(i do.Injector) (capture.SliceRecorder, error) {
		cfg := do.MustInvoke[*config.RecorderConfig](i)
		return NewFFmpegRecorder(FFmpegRecorderConfig{
			FFmpegPath:    cfg.FFmpegPath,
			InputFormat:   cfg.CaptureInputFormat,
			InputDevice:   cfg.CaptureInputDevice,
			SliceInterval: cfg.SliceInterval,
		}, slog.Default()), nil
	})
}

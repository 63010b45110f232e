package recorder

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/capture"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.RecorderConfig](i)
		return NewController(Dependencies{
			Backend:  do.MustInvoke[Backend](i),
			Direct:   do.MustInvoke[capture.Source](i),
			Slices:   do.MustInvoke[capture.SliceRecorder](i),
			Decoders: do.MustInvoke[audio.SliceDecoderFactory](i),
			Logger:   slog.Default(),
		}, Options{
			LiveWindowSeconds: cfg.LiveWindowSeconds,
			GraceWindow:       cfg.GraceWindow,
			DecodeWaitTimeout: cfg.DecodeWaitTimeout,
		}), nil
	})
}

package transcoder

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/transcoder"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcoder.Transcoder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewFFmpegTranscoder(cfg.FFmpegPath), nil
	})
}

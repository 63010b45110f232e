package session

import (
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/discord"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcoder"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/foxseedlab/kikitori/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.NewMetrics(), nil
	})
	do.Provide(injector, func(i do.Injector) (*notify.Hub, error) {
		cfg := do.MustInvoke[*config.Config](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		hub := notify.NewHub(nil, notify.WithErrorHandler(func(name string, _ error) {
			m.NotificationFailures.WithLabelValues(name).Inc()
		}))

		loc, err := time.LoadLocation(cfg.TranscriptTimezone)
		if err != nil {
			return nil, err
		}
		if cfg.TranscriptWebhookURL != "" {
			hub.Subscribe("webhook", NewWebhookListener(do.MustInvoke[webhook.Sender](i), cfg.TranscriptTimezone, loc))
		}
		if cfg.DiscordEnabled() {
			hub.Subscribe("discord", NewDiscordListener(do.MustInvoke[discord.Client](i), cfg.DiscordChannelID, cfg.TranscriptTimezone, loc))
		}
		return hub, nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewManager(cfg, Dependencies{
			Store:       do.MustInvoke[ArtifactStore](i),
			Transcoder:  do.MustInvoke[transcoder.Transcoder](i),
			Decoder:     do.MustInvoke[audio.FileDecoder](i),
			Transcriber: do.MustInvoke[transcriber.Transcriber](i),
			Repository:  do.MustInvoke[repository.Repository](i),
			Hub:         do.MustInvoke[*notify.Hub](i),
			Metrics:     do.MustInvoke[*metrics.Metrics](i),
		}), nil
	})
}

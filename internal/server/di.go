package server

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/notify"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return NewServer(
			do.MustInvoke[*session.Manager](i),
			do.MustInvoke[*notify.Hub](i),
			do.MustInvoke[*metrics.Metrics](i),
			slog.Default(),
		), nil
	})
}

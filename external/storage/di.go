package storage

import (
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (session.ArtifactStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewFileStore(cfg.ArtifactDir)
	})
}

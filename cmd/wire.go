package cmd

import (
	"fmt"
	"time"

	statusadapter "github.com/karlmjogila/swarmops/internal/adapters/render/status"
	"github.com/karlmjogila/swarmops/internal/adapters/repo/jsonfile"
	"github.com/karlmjogila/swarmops/internal/application"
	"github.com/karlmjogila/swarmops/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	orchestrator   *application.Orchestrator
	roles          ports.RoleStore
	work           ports.WorkStore
	sessions       ports.SessionStore
	statusRenderer func([]application.SessionOverview, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	layout, err := jsonfile.ResolveLayout(viper.New())
	if err != nil {
		return nil, fmt.Errorf("resolve storage layout: %w", err)
	}

	clock := ports.SystemClock{}

	roles, err := jsonfile.NewRoleStore(layout.RolesPath, clock)
	if err != nil {
		return nil, fmt.Errorf("wire role store: %w", err)
	}
	work, err := jsonfile.NewWorkStore(layout.WorkDir, clock)
	if err != nil {
		return nil, fmt.Errorf("wire work store: %w", err)
	}
	sessions, err := jsonfile.NewSessionStore(layout.SessionsPath, clock)
	if err != nil {
		return nil, fmt.Errorf("wire session store: %w", err)
	}

	return &app{
		orchestrator:   application.NewOrchestrator(roles, work, sessions, clock),
		roles:          roles,
		work:           work,
		sessions:       sessions,
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}, nil
}

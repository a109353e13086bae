package main

import (
	"context"
	"io"

	appcrm "github.com/saasfilter/backend/internal/application/crm"
	appidentity "github.com/saasfilter/backend/internal/application/identity"
	"github.com/saasfilter/backend/internal/application/session"
	"github.com/saasfilter/backend/internal/domain/shared"
	"github.com/saasfilter/backend/internal/infrastructure/auth"
	"github.com/saasfilter/backend/internal/infrastructure/config"
	"github.com/saasfilter/backend/internal/infrastructure/event"
	"github.com/saasfilter/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// app hosts the dashboard core in-process and holds the one session the CLI drives
type app struct {
	ctx context.Context
	out io.Writer
	log *zap.Logger

	bus  *event.InMemoryBus
	auth *appidentity.AuthService
	crm  *appcrm.Service

	claims *auth.Claims
	store  *session.Store
	leads  *appcrm.LeadsView
	calls  *appcrm.CallsView
}

func newApp(ctx context.Context, out io.Writer, jwt config.JWTConfig, latency persistence.Latency, log *zap.Logger) *app {
	bus := event.NewInMemoryBus(log)
	bus.Subscribe(session.NewLoggingHandler(log))
	registry := session.NewRegistry(bus, log)

	directory := persistence.NewMemoryDirectory(persistence.DemoDirectory(), latency)
	repo := persistence.NewMemoryRepository(persistence.DemoDataset(), latency)

	return &app{
		ctx:  ctx,
		out:  out,
		log:  log,
		bus:  bus,
		auth: appidentity.NewAuthService(directory, registry, auth.NewJWTService(jwt), auth.NewInMemoryTokenBlacklist(), nil, log),
		crm:  appcrm.NewService(repo, nil, log),
	}
}

func (a *app) loggedIn() bool {
	return a.store != nil
}

func (a *app) requireSession() error {
	if !a.loggedIn() {
		return shared.ErrUnauthorized
	}
	return nil
}

// login replaces any current session with a new one for email
func (a *app) login(email string) (*appidentity.LoginResult, error) {
	if a.loggedIn() {
		a.logout()
	}

	res, err := a.auth.Login(a.ctx, appidentity.LoginInput{Email: email, IP: "cli"})
	if err != nil {
		return nil, err
	}
	store, claims, err := a.auth.Resolve(a.ctx, res.AccessToken)
	if err != nil {
		return nil, err
	}

	a.store = store
	a.claims = claims
	a.leads = appcrm.NewLeadsView(a.crm, store)
	a.calls = appcrm.NewCallsView(a.crm, store)
	a.bus.Subscribe(a.leads)
	a.bus.Subscribe(a.calls)
	return res, nil
}

func (a *app) logout() {
	if !a.loggedIn() {
		return
	}
	if err := a.auth.Logout(a.ctx, a.claims); err != nil {
		a.log.Warn("Logout failed", zap.Error(err))
	}
	a.bus.Unsubscribe(a.leads)
	a.bus.Unsubscribe(a.calls)
	a.store, a.claims, a.leads, a.calls = nil, nil, nil, nil
}

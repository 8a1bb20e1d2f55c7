package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// onReady hooks the platform diagnostics into the log, learns the bot's
// display name and greets tenants that were never welcomed.
func (m *Module) onReady(ctx context.Context, event extension.Event) error {
	m.diagnostics.Do(m.subscribeDiagnostics)

	ready, _ := event.Data.(*extension.Ready)
	if ready == nil {
		m.Logger().Info("platform ready")
		return nil
	}
	m.setDisplayName(ready.User)
	m.Logger().Info("logged in", zap.String("user", ready.User), zap.Int("tenants", len(ready.Tenants)))

	var errs []error
	for _, tenantID := range ready.Tenants {
		if err := m.welcome(ctx, tenantID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Module) onTenantJoin(ctx context.Context, event extension.Event) error {
	if event.TenantID == "" {
		return nil
	}
	m.Logger().Info("joined tenant", zap.String("tenant", event.TenantID))
	return m.welcome(ctx, event.TenantID)
}

// welcome sends the welcome message once per tenant.
func (m *Module) welcome(ctx context.Context, tenantID string) error {
	if !m.opts.ShowWelcomeMessage || m.opts.Announcer == nil || m.opts.Tenants == nil {
		return nil
	}
	o, err := m.opts.Tenants.Overrides(ctx, tenantID)
	if err != nil {
		return err
	}
	if o.WelcomeMessageSent {
		return nil
	}

	text := welcome(m.DisplayName(), m.prefix(ctx, tenantID))
	if err := m.opts.Announcer.Announce(ctx, tenantID, text); err != nil {
		return fmt.Errorf("welcome tenant %s: %w", tenantID, err)
	}
	return m.opts.Tenants.MarkWelcomed(ctx, tenantID)
}

func (m *Module) subscribeDiagnostics() {
	if m.opts.Events == nil {
		return
	}
	log := m.Logger()
	m.opts.Events.On(extension.EventError, func(_ context.Context, e extension.Event) error {
		if err, ok := e.Data.(error); ok {
			log.Error("platform error", zap.String("source", e.Source), zap.Error(err))
			return nil
		}
		log.Error("platform error", zap.String("source", e.Source), zap.Any("detail", e.Data))
		return nil
	})
	m.opts.Events.On(extension.EventWarn, func(_ context.Context, e extension.Event) error {
		log.Warn(fmt.Sprint(e.Data), zap.String("source", e.Source))
		return nil
	})
	m.opts.Events.On(extension.EventDebug, func(_ context.Context, e extension.Event) error {
		log.Debug(fmt.Sprint(e.Data), zap.String("source", e.Source))
		return nil
	})
}

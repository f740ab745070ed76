package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
)

// Provider holds the process-wide auth metrics.
type Provider struct {
	loginAttempts  *prometheus.CounterVec
	sessionsIssued prometheus.Counter
	sessionsEnded  *prometheus.CounterVec
	tokenRefreshes prometheus.Counter
}

// Attach registers the auth domain collectors and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		loginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts partitioned by outcome.",
		}, []string{"outcome"}),
		sessionsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sessions_issued_total",
			Help:      "Total number of sessions created.",
		}),
		sessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "sessions_ended_total",
			Help:      "Total number of sessions terminated partitioned by reason.",
		}, []string{"reason"}),
		tokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_refreshes_total",
			Help:      "Total number of access tokens reissued via refresh.",
		}),
	}, nil
}

// LoginAttempt records a login attempt with the given outcome label.
func (p *Provider) LoginAttempt(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// SessionIssued records a newly created session.
func (p *Provider) SessionIssued() {
	if p == nil {
		return
	}
	p.sessionsIssued.Inc()
}

// SessionEnded records a terminated session with the given reason label.
func (p *Provider) SessionEnded(reason string) {
	if p == nil {
		return
	}
	p.sessionsEnded.WithLabelValues(reason).Inc()
}

// TokenRefreshed records an access token reissue.
func (p *Provider) TokenRefreshed() {
	if p == nil {
		return
	}
	p.tokenRefreshes.Inc()
}

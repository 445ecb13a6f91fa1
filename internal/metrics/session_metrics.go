package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics — метрики сессий витрины и Session Gate.
type SessionMetrics struct {
	active        prometheus.Gauge
	signIns       *prometheus.CounterVec
	signOutErrors prometheus.Counter
	remoteEvents  *prometheus.CounterVec
	accessCodes   *prometheus.CounterVec
	gateRedirects *prometheus.CounterVec
	expiredReaped prometheus.Counter
}

// NewSessionMetrics регистрирует метрики в DefaultRegisterer.
func NewSessionMetrics() *SessionMetrics {
	return NewSessionMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSessionMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewSessionMetricsWithRegisterer(registerer prometheus.Registerer) *SessionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SessionMetrics{
		active: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_sessions_active",
			Help: "Open storefront sessions",
		}),
		signIns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_sign_in_total",
			Help: "Sign-in attempts by result",
		}, []string{"result"}),
		signOutErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_sign_out_errors_total",
			Help: "Remote sign-out failures swallowed into local sign-out",
		}),
		remoteEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_remote_session_events_total",
			Help: "Session change notifications from the auth provider",
		}, []string{"kind"}),
		accessCodes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_access_code_challenges_total",
			Help: "Access code challenges by result",
		}, []string{"result"}),
		gateRedirects: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_gate_redirects_total",
			Help: "Navigations redirected to login by requested view",
		}, []string{"view"}),
		expiredReaped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_sessions_expired_total",
			Help: "Idle sessions closed by the reaper",
		}),
	}
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// RecordSessionOpened увеличивает число открытых сессий.
func (m *SessionMetrics) RecordSessionOpened() { m.active.Inc() }

// RecordSessionClosed уменьшает число открытых сессий.
func (m *SessionMetrics) RecordSessionClosed() { m.active.Dec() }

// RecordSessionExpired учитывает сессию, закрытую по простою.
func (m *SessionMetrics) RecordSessionExpired() { m.expiredReaped.Inc() }

// RecordSignIn учитывает попытку входа.
func (m *SessionMetrics) RecordSignIn(ok bool) {
	m.signIns.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordSignOutError учитывает сбой удалённого выхода.
func (m *SessionMetrics) RecordSignOutError() { m.signOutErrors.Inc() }

// RecordRemoteEvent учитывает уведомление провайдера: present или absent.
func (m *SessionMetrics) RecordRemoteEvent(present bool) {
	kind := "absent"
	if present {
		kind = "present"
	}
	m.remoteEvents.WithLabelValues(kind).Inc()
}

// RecordAccessCode учитывает проверку кода доступа.
func (m *SessionMetrics) RecordAccessCode(ok bool) {
	m.accessCodes.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordGateRedirect учитывает переход, перенаправленный на login.
func (m *SessionMetrics) RecordGateRedirect(view string) {
	m.gateRedirects.WithLabelValues(view).Inc()
}

package settlement

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrCircuitOpen: settlement temporariamente desabilitado após falhas
	// consecutivas; o caller não deve nem tentar tocar o backend.
	ErrCircuitOpen = errors.New("settlement circuit open")

	// ErrFeedUnavailable: sem resultado autoritativo ainda — adiar, não chutar.
	ErrFeedUnavailable = errors.New("fixture result unavailable")
)

// BreakerState é o estado do circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

var (
	settlementAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_attempts_total",
		Help: "Tentativas de settlement",
	})
	settlementFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_failures_total",
		Help: "Falhas de settlement",
	})
	settlementDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_duplicates_prevented_total",
		Help: "Settlements duplicados bloqueados",
	})
	settlementDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duração das tentativas de settlement",
		Buckets: prometheus.DefBuckets,
	})
	breakerStateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_breaker_state",
		Help: "Estado do breaker: 0=closed, 1=half-open, 2=open",
	})
)

func init() {
	prometheus.MustRegister(settlementAttempts, settlementFailures,
		settlementDuplicates, settlementDuration, breakerStateGauge)
}

// Stats é o snapshot dos contadores do monitor.
type Stats struct {
	Attempts            uint64
	Successes           uint64
	Failures            uint64
	DuplicatesPrevented uint64
	State               BreakerState
}

// Monitor acompanha o resultado de cada settlement e gateia novas tentativas
// com um circuit breaker: closed -> open após FailureThreshold falhas
// consecutivas, open -> half-open após o cooldown, half-open -> closed no
// próximo sucesso ou de volta a open na próxima falha.
type Monitor struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time // injetável em teste

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time

	attempts   uint64
	successes  uint64
	failures   uint64
	duplicates uint64
}

func NewMonitor(failureThreshold int, cooldown time.Duration) *Monitor {
	return &Monitor{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
		state:            BreakerClosed,
	}
}

// Allow decide se uma tentativa pode prosseguir. Com o breaker open e o
// cooldown vencido, transiciona pra half-open e libera a sonda.
func (m *Monitor) Allow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BreakerOpen {
		if m.now().Sub(m.openedAt) < m.cooldown {
			return ErrCircuitOpen
		}
		m.setState(BreakerHalfOpen)
	}
	m.attempts++
	settlementAttempts.Inc()
	return nil
}

// ReportSuccess registra sucesso; fecha o breaker se estava em sonda.
func (m *Monitor) ReportSuccess(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.successes++
	m.consecutiveFailures = 0
	settlementDuration.Observe(d.Seconds())
	if m.state != BreakerClosed {
		m.setState(BreakerClosed)
	}
}

// ReportFailure registra falha; abre o breaker ao atingir o threshold ou se a
// sonda half-open falhar.
func (m *Monitor) ReportFailure(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures++
	m.consecutiveFailures++
	settlementFailures.Inc()
	settlementDuration.Observe(d.Seconds())

	if m.state == BreakerHalfOpen || m.consecutiveFailures >= m.failureThreshold {
		m.openedAt = m.now()
		m.setState(BreakerOpen)
	}
}

// ReportDuplicate conta um settlement duplicado bloqueado (não é falha).
func (m *Monitor) ReportDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicates++
	settlementDuplicates.Inc()
}

// Cooldown expõe a janela de espera do breaker (usada pelo worker pra
// dimensionar o retry quando recebe ErrCircuitOpen).
func (m *Monitor) Cooldown() time.Duration { return m.cooldown }

// State retorna o estado corrente do breaker.
func (m *Monitor) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot retorna os contadores correntes.
func (m *Monitor) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Attempts:            m.attempts,
		Successes:           m.successes,
		Failures:            m.failures,
		DuplicatesPrevented: m.duplicates,
		State:               m.state,
	}
}

// Health deriva um status operacional da taxa de sucesso. Visibilidade
// apenas; não gateia correção.
func (m *Monitor) Health() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.successes + m.failures
	if total == 0 {
		return "Unknown"
	}
	rate := float64(m.successes) / float64(total)
	switch {
	case rate >= 0.99:
		return "Excellent"
	case rate >= 0.95:
		return "Good"
	case rate >= 0.80:
		return "Degraded"
	default:
		return "Critical"
	}
}

// setState assume m.mu adquirido.
func (m *Monitor) setState(s BreakerState) {
	m.state = s
	switch s {
	case BreakerClosed:
		breakerStateGauge.Set(0)
	case BreakerHalfOpen:
		breakerStateGauge.Set(1)
	case BreakerOpen:
		breakerStateGauge.Set(2)
	}
}

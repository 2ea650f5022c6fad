package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Poller ──────────────────────────────────────────────────────────────

	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghost",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Total fetch-and-publish cycles, labelled by result.",
	}, []string{"result"})

	// ─── Command hub ─────────────────────────────────────────────────────────

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghost",
		Subsystem: "hub",
		Name:      "commands_total",
		Help:      "Total commands routed, labelled by message type and response status.",
	}, []string{"type", "status"})

	// ─── Download interception ───────────────────────────────────────────────

	InterceptDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghost",
		Subsystem: "intercept",
		Name:      "decisions_total",
		Help:      "Download interception outcomes, labelled by policy decision.",
	}, []string{"decision"})

	// ─── Script injection ────────────────────────────────────────────────────

	ScriptInjectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ghost",
		Subsystem: "inject",
		Name:      "scripts_total",
		Help:      "Script injection attempts, labelled by result.",
	}, []string{"result"})
)

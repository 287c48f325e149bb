package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_sessions_active",
		Help: "Number of live collaboration sessions in the registry",
	})

	SessionsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_sessions_destroyed_total",
		Help: "Sessions destroyed, by reason (empty, idle, deleted, shutdown)",
	}, []string{"reason"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections_active",
		Help: "Number of open realtime connections",
	})

	InboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_inbound_messages_total",
		Help: "Frames received from clients, by message type",
	}, []string{"type"})

	EditsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_edits_applied_total",
		Help: "Document edits accepted by a session",
	})

	EditsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_edits_rejected_total",
		Help: "Document edits rejected as malformed; the sender was resynchronised",
	})

	StaleEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_edits_stale_base_total",
		Help: "Accepted edits whose client base version was behind the session version",
	})

	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_dropped_frames_total",
		Help: "Outbound frames dropped because a connection buffer was full",
	})

	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_snapshot_writes_total",
		Help: "Archive writes of destroyed sessions, by outcome",
	}, []string{"outcome"})

	ChatWordsCensored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_chat_words_censored_total",
		Help: "Listed words masked in chat messages",
	})

	IdleSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_idle_sweeps_total",
		Help: "Idle sweep passes run by the registry",
	})

	ProcessRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_process_rss_bytes",
		Help: "Resident memory of the server process, sampled by the heartbeat worker",
	})

	ProcessCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_process_cpu_percent",
		Help: "CPU usage of the server process, sampled by the heartbeat worker",
	})
)

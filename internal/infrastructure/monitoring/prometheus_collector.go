package monitoring

import (
	"time"

	"telecall/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	roomsActive           prometheus.Gauge
	participantsConnected prometheus.Gauge
	recordingsActive      prometheus.Gauge

	signalsRouted *prometheus.CounterVec
	chatMessages  prometheus.Counter
	relayErrors   prometheus.Counter

	callDuration prometheus.Histogram

	roomOccupancy *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_rooms_active",
			Help: "Number of consultation rooms with at least one participant",
		}),

		participantsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_participants_connected",
			Help: "Number of participants currently connected to the relay",
		}),

		recordingsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "telecall_recordings_active",
			Help: "Number of consultations currently being recorded",
		}),

		signalsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "telecall_signals_routed_total",
			Help: "Signal messages routed between participants, by type",
		}, []string{"type"}),

		chatMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telecall_chat_messages_total",
			Help: "Chat messages appended to consultation transcripts",
		}),

		relayErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "telecall_relay_errors_total",
			Help: "Messages the relay rejected or failed to route",
		}),

		callDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "telecall_call_duration_seconds",
			Help:    "Duration of completed consultation calls",
			Buckets: prometheus.ExponentialBuckets(30, 2, 8),
		}),

		roomOccupancy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "telecall_room_occupancy",
			Help: "Participants per consultation room",
		}, []string{"consultation_id"}),
	}
}

func (p *PrometheusCollector) RecordParticipantJoined(id domain.ConsultationID) {
	p.participantsConnected.Inc()
	p.roomOccupancy.WithLabelValues(string(id)).Inc()
}

func (p *PrometheusCollector) RecordParticipantLeft(id domain.ConsultationID) {
	p.participantsConnected.Dec()
	p.roomOccupancy.WithLabelValues(string(id)).Dec()
}

func (p *PrometheusCollector) RecordRoomOpened() {
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RecordRoomClosed(id domain.ConsultationID) {
	p.roomsActive.Dec()
	p.roomOccupancy.DeleteLabelValues(string(id))
}

func (p *PrometheusCollector) RecordSignalRouted(t domain.SignalType) {
	p.signalsRouted.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) RecordChatMessage() {
	p.chatMessages.Inc()
}

func (p *PrometheusCollector) RecordRelayError() {
	p.relayErrors.Inc()
}

func (p *PrometheusCollector) RecordRecordingStarted() {
	p.recordingsActive.Inc()
}

func (p *PrometheusCollector) RecordRecordingStopped() {
	p.recordingsActive.Dec()
}

func (p *PrometheusCollector) RecordCallDuration(d time.Duration) {
	p.callDuration.Observe(d.Seconds())
}

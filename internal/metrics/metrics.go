package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the durable ledger operations. Everything else is derived
// in memory and not worth counting.
var (
	AttendanceSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artledger_attendance_saves_total",
		Help: "Number of attendance day mappings persisted.",
	})
	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artledger_payments_recorded_total",
		Help: "Number of fee payments accepted.",
	})
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artledger_notifications_sent_total",
		Help: "Number of notifications persisted to the log.",
	})
	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artledger_notifications_delivered_total",
		Help: "Number of notifications stamped delivered by the worker.",
	})
)

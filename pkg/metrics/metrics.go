// Package metrics defines the Prometheus instruments for the payment
// pipeline. Counters are registered with the default registry and
// exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookNotifications counts every bank notification received
	WebhookNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_webhook_notifications_total",
		Help: "Total bank notifications received",
	})

	// WebhookSettled counts notifications that settled an intent
	WebhookSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_webhook_settled_total",
		Help: "Total notifications that completed a deposit intent",
	})

	// WebhookDuplicates counts idempotent re-deliveries
	WebhookDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_webhook_duplicates_total",
		Help: "Total duplicate notifications dropped as no-ops",
	})

	// WebhookUnroutable counts notifications with no extractable user id
	WebhookUnroutable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_webhook_unroutable_total",
		Help: "Total notifications with no extractable user id",
	})

	// WebhookUnmatched counts notifications with no pending intent match
	WebhookUnmatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_webhook_unmatched_total",
		Help: "Total notifications that matched no pending intent",
	})

	// IntentsExpired counts intents auto-cancelled by the expiry worker
	IntentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_intents_expired_total",
		Help: "Total deposit intents cancelled by the expiry worker",
	})

	// RemindersSent counts payment reminders delivered
	RemindersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_reminders_sent_total",
		Help: "Total payment reminders sent for pending intents",
	})

	// CommissionsPaid counts referral commission payouts
	CommissionsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikup_commissions_paid_total",
		Help: "Total referral commissions paid",
	})
)

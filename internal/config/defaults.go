package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultDBPath = "pantry.db"

	DefaultDigestAt           = "14:00"
	DefaultMaintenanceCron    = "0 0 4 * * 0" // Sundays 04:00, seconds field first
	DefaultNotifierConcurrent = 4
	DefaultNotifierTimeout    = 15 * time.Second
	DefaultBreakerThreshold   = 0
	DefaultBreakerCooldown    = 30 * time.Second

	DefaultHTTPAddr = ":9090"
)

// Task names understood by the scheduler.
const (
	TaskExpiryDigest   = "expiry_digest"
	TaskSQLMaintenance = "sql_maintenance"
)

// DefaultMessages are the built-in user-facing strings.
var DefaultMessages = MessagesConfig{
	Greeting:        "👋 Hi! What's your name?",
	NiceToMeetFmt:   "Nice to meet you, %s!",
	Help:            "/add — add products\n/list — show products by expiry\n/delete — remove a product\n/cancel — abort the current step",
	AddPrompt:       "Send products and their expiry dates, one per line:\nMilk\n18.07",
	AddedPrefix:     "Added: ",
	NothingAdded:    "Nothing was added. Send a name line followed by a DD.MM date line.",
	ListEmpty:       "The list is empty",
	DeletePrompt:    "Choose a product to delete:",
	DeletedFmt:      "Deleted: %s",
	DeleteFailed:    "❌ Could not delete the product",
	Cancelled:       "Cancelled.",
	NothingToCancel: "Nothing to cancel.",
	GeneralError:    "❌ An error occurred. Please try again later.",
	ExpiredHeader:   "🔴 Expired:",
	WarningHeader:   "🟡 Expiring within 3 days:",
	FreshHeader:     "🟢 Everything else:",
	DigestHeader:    "🟡 Heads up! These products expire within 3 days:",
}

// DefaultCommands is the bot command menu.
var DefaultCommands = []CommandConfig{
	{Command: "start", Description: "Introduce yourself"},
	{Command: "add", Description: "Add products with expiry dates"},
	{Command: "list", Description: "Show products by expiry"},
	{Command: "delete", Description: "Delete a product"},
	{Command: "cancel", Description: "Abort the current step"},
	{Command: "help", Description: "Show available commands"},
}

// setDefaults sets default values for optional configuration parameters.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	// Registered so PANTRY_TELEGRAM_TOKEN is picked up by Unmarshal.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.commands", DefaultCommands)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("scheduler.timezone", "")
	v.SetDefault("scheduler.tasks", map[string]any{
		TaskExpiryDigest: map[string]any{
			"enabled": true,
			"at":      DefaultDigestAt,
		},
		TaskSQLMaintenance: map[string]any{
			"enabled":  false,
			"schedule": DefaultMaintenanceCron,
		},
	})

	v.SetDefault("expiry.fixed_year", 0)

	v.SetDefault("notifier.concurrency", DefaultNotifierConcurrent)
	v.SetDefault("notifier.send_timeout", DefaultNotifierTimeout)
	v.SetDefault("notifier.breaker_threshold", DefaultBreakerThreshold)
	v.SetDefault("notifier.breaker_cooldown", DefaultBreakerCooldown)

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", DefaultHTTPAddr)

	m := DefaultMessages
	v.SetDefault("messages.greeting", m.Greeting)
	v.SetDefault("messages.nice_to_meet_fmt", m.NiceToMeetFmt)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.add_prompt", m.AddPrompt)
	v.SetDefault("messages.added_prefix", m.AddedPrefix)
	v.SetDefault("messages.nothing_added", m.NothingAdded)
	v.SetDefault("messages.list_empty", m.ListEmpty)
	v.SetDefault("messages.delete_prompt", m.DeletePrompt)
	v.SetDefault("messages.deleted_fmt", m.DeletedFmt)
	v.SetDefault("messages.delete_failed", m.DeleteFailed)
	v.SetDefault("messages.cancelled", m.Cancelled)
	v.SetDefault("messages.nothing_to_cancel", m.NothingToCancel)
	v.SetDefault("messages.general_error", m.GeneralError)
	v.SetDefault("messages.expired_header", m.ExpiredHeader)
	v.SetDefault("messages.warning_header", m.WarningHeader)
	v.SetDefault("messages.fresh_header", m.FreshHeader)
	v.SetDefault("messages.digest_header", m.DigestHeader)
}

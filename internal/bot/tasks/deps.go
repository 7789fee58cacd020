// Package tasks implements scheduled tasks for pantrybot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/pantrybot/internal/chat"
	"github.com/edgard/pantrybot/internal/config"
	"github.com/edgard/pantrybot/internal/database"
	"github.com/edgard/pantrybot/internal/metrics"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Messenger chat.Messenger
	Config    *config.Config
	Clock     clockwork.Clock
	Metrics   *metrics.Metrics
}

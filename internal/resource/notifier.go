package resource

import "log/slog"

// Notifier receives the single success-or-failure notification each
// mutating action emits. The UI layer plugs in its toast/snackbar
// implementation; every action invocation notifies at most once.
type Notifier interface {
	Success(resource, message string)
	Failure(resource, message string)
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

func (NoopNotifier) Success(string, string) {}
func (NoopNotifier) Failure(string, string) {}

// LogNotifier writes notifications to the structured log. Used by the
// ops binary and as the default when no UI notifier is wired.
type LogNotifier struct{}

func (LogNotifier) Success(resource, message string) {
	slog.Info("Action succeeded", "resource", resource, "message", message)
}

func (LogNotifier) Failure(resource, message string) {
	slog.Warn("Action failed", "resource", resource, "message", message)
}

// Package notify sends desktop notifications about finished sync runs.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

const appName = "whoopsheet"

// Summary is what a notification reports about a run.
type Summary struct {
	Updated int
	Failed  []string
	Err     error
}

// Notifier shows a desktop notification when a run ends badly.
type Notifier struct {
	enabled bool
	send    func(title, message string) error
	logger  *slog.Logger
}

func New(enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	beeep.AppName = appName
	return &Notifier{
		enabled: enabled,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger,
	}
}

// RunFinished notifies only when the run failed or some dates could not be
// placed. It reports whether a notification was sent.
func (n *Notifier) RunFinished(s Summary) (bool, error) {
	if !n.enabled {
		return false, nil
	}

	var title, message string
	switch {
	case s.Err != nil:
		title = "WHOOP sync failed"
		message = s.Err.Error()
	case len(s.Failed) > 0:
		title = "WHOOP sync incomplete"
		message = fmt.Sprintf("Updated %d day(s); no cell for %s", s.Updated, strings.Join(s.Failed, ", "))
	default:
		return false, nil
	}

	n.logger.Debug("sending notification", "title", title)
	if err := n.send(title, message); err != nil {
		return false, fmt.Errorf("sending notification: %w", err)
	}
	return true, nil
}

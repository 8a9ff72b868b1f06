package subscription

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/sousei-dev/push-service/internal/models"
)

// Capability is the evaluated push capability of one client platform.
// Degraded means the platform is known to support push only partially;
// Supported still reports the base capability truthfully.
type Capability struct {
	Supported bool   `json:"supported"`
	Degraded  bool   `json:"degraded"`
	Note      string `json:"note,omitempty"`
}

var iosPattern = regexp.MustCompile(`iPad|iPhone|iPod`)

// DetectSupport evaluates a client capability report. The iOS Safari
// standalone (installed PWA) combination gets a degraded-support
// annotation for diagnostics without hiding the base capability.
func DetectSupport(report models.SupportReport, logger *slog.Logger) Capability {
	c := Capability{Supported: report.ServiceWorker && report.PushManager}

	isIOS := iosPattern.MatchString(report.UserAgent)
	isSafari := strings.Contains(report.UserAgent, "Safari") &&
		!strings.Contains(report.UserAgent, "Chrome")

	if isIOS && isSafari && report.Standalone {
		c.Degraded = true
		c.Note = "iOS Safari PWA: プッシュ通知のサポートが制限されています"
		logger.Warn("degraded push support detected",
			slog.String("user_agent", report.UserAgent),
			slog.Bool("standalone", report.Standalone),
			slog.Bool("supported", c.Supported))
	}
	return c
}

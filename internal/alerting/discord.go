// Package alerting sends one-way ops notifications to a Discord channel via
// webhook, repurposed from the teacher's conversational Discord bot adapter
// into a fire-and-forget sink: this proxy has no inbound chat surface to
// answer, only outbound operational alerts. The gateway sends one when its
// HTTP server fails; disabling an account and pool exhaustion send no
// alert.
package alerting

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

var errInvalidWebhookURL = errors.New("alerting: malformed discord webhook url")

// Notifier posts plain-text alerts to a single Discord webhook URL.
type Notifier struct {
	webhookURL string
	log        *pkgLogger.Logger
}

// NewNotifier builds a Notifier for the given webhook URL (as configured
// via ProxySettings.DiscordWebhookURL).
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		log:        pkgLogger.NewComponentLogger("alerting"),
	}
}

// Notify posts message to the configured webhook, truncating to Discord's
// 2000-character message limit. Failures are logged, not returned, since
// alerting is best-effort and must never block the request path that
// triggered it.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if n == nil || n.webhookURL == "" {
		return
	}
	if len(message) > 2000 {
		message = message[:1997] + "..."
	}
	id, token, err := splitWebhookURL(n.webhookURL)
	if err != nil {
		n.log.Warn("malformed discord webhook url", "err", err)
		return
	}
	session, err := discordgo.New("")
	if err != nil {
		n.log.Warn("failed to create discord session for alert", "err", err)
		return
	}
	_, err = session.WebhookExecute(id, token, false, &discordgo.WebhookParams{Content: message})
	if err != nil {
		n.log.Warn("failed to send discord alert", "err", err)
	}
}

func splitWebhookURL(url string) (id, token string, err error) {
	const marker = "/webhooks/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", "", errInvalidWebhookURL
	}
	rest := url[idx+len(marker):]
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", errInvalidWebhookURL
	}
	return parts[0], parts[1], nil
}

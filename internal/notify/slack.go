// Package notify posts risk alerts to external channels.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/p-blackswan/pulsetrack/internal/risk"
)

// MessagePoster abstracts the Slack API client for testing.
type MessagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts high-severity risk alerts to a Slack channel.
type SlackNotifier struct {
	api     MessagePoster
	channel string
	logger  zerolog.Logger
}

// NewSlackNotifier creates a notifier for the given bot token and channel.
func NewSlackNotifier(botToken, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(botToken),
		channel: channel,
		logger:  logger.With().Str("component", "notify.slack").Logger(),
	}
}

// NewSlackNotifierWithAPI creates a notifier with an injected client (useful for testing).
func NewSlackNotifierWithAPI(api MessagePoster, channel string, logger zerolog.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify.slack").Logger(),
	}
}

// NotifyAlert posts one alert. Delivery failures are logged, not returned:
// notification is best-effort and must never fail an update cycle.
func (n *SlackNotifier) NotifyAlert(ctx context.Context, projectName string, alert risk.Alert) {
	blocks := alertBlocks(projectName, alert)
	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fmt.Sprintf("[%s] %s: %s", alert.Severity, projectName, alert.Message), false),
	)
	if err != nil {
		n.logger.Warn().
			Str("project", projectName).
			Str("type", string(alert.Type)).
			Err(err).
			Msg("failed to post alert to Slack")
		return
	}
	n.logger.Info().
		Str("project", projectName).
		Str("type", string(alert.Type)).
		Str("severity", string(alert.Severity)).
		Msg("alert posted to Slack")
}

func alertBlocks(projectName string, alert risk.Alert) []slack.Block {
	header := fmt.Sprintf("%s Risk alert: %s", severityEmoji(alert.Severity), projectName)
	detail := fmt.Sprintf("*Type:* `%s`\n*Severity:* %s\n%s",
		alert.Type, alert.Severity, alert.Message)

	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", header, false, false),
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", detail, false, false),
			nil, nil,
		),
		slack.NewContextBlock("",
			slack.NewTextBlockObject("mrkdwn",
				alert.Timestamp.UTC().Format("2006-01-02 15:04 UTC"), false, false),
		),
	}
}

func severityEmoji(s risk.Severity) string {
	switch s {
	case risk.SeverityHigh:
		return "🚨"
	case risk.SeverityMedium:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

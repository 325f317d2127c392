// Package notify delivers run results to Slack and Telegram. Delivery is
// best-effort: a failed notification is logged and never affects the run.
package notify

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"

	"github.com/jxucoder/autopr/internal/config"
	"github.com/jxucoder/autopr/model"
)

// Notifier fans a run result out to every configured channel.
type Notifier struct {
	targets []target
}

type target interface {
	send(text string) error
	name() string
}

// NewFromConfig builds a notifier for the channels the configuration
// enables. With nothing configured, Notify is a no-op.
func NewFromConfig(cfg *config.Config) *Notifier {
	n := &Notifier{}
	if cfg.SlackEnabled() {
		n.targets = append(n.targets, &slackTarget{
			api:     slack.New(cfg.SlackBotToken),
			channel: cfg.SlackChannel,
		})
	}
	if cfg.TelegramEnabled() {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Printf("notify: Telegram bot setup failed: %v", err)
		} else {
			n.targets = append(n.targets, &telegramTarget{api: api, chatID: cfg.TelegramChatID})
		}
	}
	return n
}

// Notify reports a finished run to every configured channel.
func (n *Notifier) Notify(run *model.Run) {
	if len(n.targets) == 0 {
		return
	}

	text := formatResult(run)
	for _, t := range n.targets {
		if err := t.send(text); err != nil {
			log.Printf("notify: %s delivery failed: %v", t.name(), err)
		}
	}
}

func formatResult(run *model.Run) string {
	feature := model.Truncate(run.Feature, 80)
	switch run.Status {
	case model.RunComplete:
		if run.PRUrl != "" {
			return fmt.Sprintf("autopr: PR ready for %q\n%s", feature, run.PRUrl)
		}
		return fmt.Sprintf("autopr: run complete for %q (no PR created)", feature)
	default:
		if run.Error != "" {
			return fmt.Sprintf("autopr: run failed for %q\n%s", feature, run.Error)
		}
		return fmt.Sprintf("autopr: run finished for %q with status %s", feature, run.Status)
	}
}

type slackTarget struct {
	api     *slack.Client
	channel string
}

func (s *slackTarget) name() string { return "Slack" }

func (s *slackTarget) send(text string) error {
	_, _, err := s.api.PostMessage(s.channel, slack.MsgOptionText(text, false))
	return err
}

type telegramTarget struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func (t *telegramTarget) name() string { return "Telegram" }

func (t *telegramTarget) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.api.Send(msg)
	return err
}

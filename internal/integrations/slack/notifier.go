package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"flyshark/internal/watch"

	"github.com/slack-go/slack"
)

type alertAPI interface {
	userLister
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

// Notifier posts watch alerts to the alert channel and DMs each alert user.
type Notifier struct {
	api       alertAPI
	channelID string
	users     []string
	cache     userCache
}

func NewNotifier(api alertAPI, channelID string, users []string) *Notifier {
	return &Notifier{api: api, channelID: channelID, users: users}
}

var _ watch.Notifier = (*Notifier)(nil)

// Notify delivers to every configured target and returns the joined errors
// of the targets that failed.
func (n *Notifier) Notify(ctx context.Context, alert watch.Alert) error {
	var errs []error

	if n.channelID != "" {
		if _, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(alert.Text, false)); err != nil {
			errs = append(errs, fmt.Errorf("post to channel %s: %w", n.channelID, err))
		}
	}

	if len(n.users) > 0 {
		ids, unresolved, err := resolveUserIDs(n.api, &n.cache, n.users)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve alert users: %w", err))
		}
		if len(unresolved) > 0 {
			log.Printf("watch=%s alert users not found: %v", alert.Watch, unresolved)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			if err := n.dm(id, alert.Text); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Printf("watch=%s alert delivered channel=%q users=%d", alert.Watch, n.channelID, len(n.users))
	return nil
}

func (n *Notifier) dm(userID, text string) error {
	channel, _, _, err := n.api.OpenConversation(&slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}
	if _, _, err := n.api.PostMessage(channel.ID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("DM %s: %w", userID, err)
	}
	return nil
}

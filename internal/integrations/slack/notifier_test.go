package slackbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"flyshark/internal/watch"

	"github.com/slack-go/slack"
)

type fakeSlack struct {
	mu        sync.Mutex
	users     []slack.User
	userCalls int
	usersErr  error
	posted    []string
	opened    []string
	postErr   map[string]error
	openErr   error
}

func (f *fakeSlack) GetUsers(options ...slack.GetUsersOption) ([]slack.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	return f.users, f.usersErr
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, channelID)
	if err := f.postErr[channelID]; err != nil {
		return "", "", err
	}
	return channelID, "1700000000.000100", nil
}

func (f *fakeSlack) OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, false, false, f.openErr
	}
	f.opened = append(f.opened, params.Users...)
	ch := &slack.Channel{}
	ch.ID = "D" + params.Users[0]
	return ch, false, false, nil
}

func slackUser(id, name, realName, display string) slack.User {
	u := slack.User{ID: id, Name: name, RealName: realName}
	u.Profile.DisplayName = display
	return u
}

func TestResolveUserIDs(t *testing.T) {
	api := &fakeSlack{users: []slack.User{
		slackUser("U0000MARIA", "maria", "Maria Souza", "maria.s"),
		slackUser("U0000JOAO1", "joao", "João Silva", "João"),
	}}
	var cache userCache

	ids, unresolved, err := resolveUserIDs(api, &cache, []string{"U12345678", "@maria", "joão silva", "ghost", "U12345678", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "U12345678,U0000MARIA,U0000JOAO1" {
		t.Fatalf("ids = %v", ids)
	}
	if len(unresolved) != 1 || unresolved[0] != "ghost" {
		t.Fatalf("unresolved = %v", unresolved)
	}

	if _, _, err := resolveUserIDs(api, &cache, []string{"maria.s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.userCalls != 1 {
		t.Fatalf("expected cached user list, got %d GetUsers calls", api.userCalls)
	}
}

func TestResolveUserIDsOnlyIDsSkipsLookup(t *testing.T) {
	api := &fakeSlack{}
	var cache userCache
	ids, _, err := resolveUserIDs(api, &cache, []string{"W12345678"})
	if err != nil || len(ids) != 1 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
	if api.userCalls != 0 {
		t.Fatal("did not expect a user lookup for raw IDs")
	}
}

func TestIsLikelySlackID(t *testing.T) {
	cases := map[string]bool{
		"U12345678":  true,
		"W0ABCDEF12": true,
		"u12345678":  false,
		"U1234":      false,
		"C12345678":  false,
		"maria":      false,
	}
	for in, want := range cases {
		if got := isLikelySlackID(in); got != want {
			t.Fatalf("isLikelySlackID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNotifierPostsChannelAndDMs(t *testing.T) {
	api := &fakeSlack{users: []slack.User{slackUser("U0000MARIA", "maria", "", "")}}
	n := NewNotifier(api, "C0ALERTS", []string{"maria", "U12345678"})

	if err := n.Notify(context.Background(), watch.Alert{Watch: "paris", Text: "deal"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(api.posted, ",") != "C0ALERTS,DU12345678,DU0000MARIA" {
		t.Fatalf("posted to %v", api.posted)
	}
	if strings.Join(api.opened, ",") != "U12345678,U0000MARIA" {
		t.Fatalf("opened DMs with %v", api.opened)
	}
}

func TestNotifierKeepsGoingAfterChannelFailure(t *testing.T) {
	api := &fakeSlack{postErr: map[string]error{"C0ALERTS": errors.New("channel_not_found")}}
	n := NewNotifier(api, "C0ALERTS", []string{"U12345678"})

	err := n.Notify(context.Background(), watch.Alert{Watch: "paris", Text: "deal"})
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel error, got %v", err)
	}
	if len(api.opened) != 1 {
		t.Fatalf("expected DM attempt after channel failure, got %v", api.opened)
	}
}

func TestNotifierReportsDMFailures(t *testing.T) {
	api := &fakeSlack{openErr: errors.New("user_not_found")}
	n := NewNotifier(api, "", []string{"U12345678"})

	err := n.Notify(context.Background(), watch.Alert{Watch: "paris", Text: "deal"})
	if err == nil || !strings.Contains(err.Error(), "U12345678") {
		t.Fatalf("expected DM error naming the user, got %v", err)
	}
	if len(api.posted) != 0 {
		t.Fatalf("no channel configured, got posts %v", api.posted)
	}
}

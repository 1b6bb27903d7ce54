package slackbot

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const userCacheTTL = 5 * time.Minute

type userLister interface {
	GetUsers(options ...slack.GetUsersOption) ([]slack.User, error)
}

type userCache struct {
	sync.Mutex
	users     []slack.User
	fetchedAt time.Time
}

func (c *userCache) get(api userLister) ([]slack.User, error) {
	c.Lock()
	defer c.Unlock()

	if c.users != nil && time.Since(c.fetchedAt) < userCacheTTL {
		return c.users, nil
	}

	users, err := api.GetUsers()
	if err != nil {
		return nil, err
	}
	c.users = users
	c.fetchedAt = time.Now()
	return users, nil
}

// resolveUserIDs maps alert recipients to Slack user IDs. Entries that look
// like IDs pass through; the rest are matched case-insensitively against
// handle, real name and display name.
func resolveUserIDs(api userLister, cache *userCache, identifiers []string) ([]string, []string, error) {
	var ids []string
	var names []string

	for _, raw := range identifiers {
		val := strings.TrimPrefix(strings.TrimSpace(raw), "@")
		if val == "" {
			continue
		}
		if isLikelySlackID(val) {
			ids = append(ids, val)
		} else {
			names = append(names, val)
		}
	}

	if len(names) == 0 {
		return uniqueStrings(ids), nil, nil
	}

	users, err := cache.get(api)
	if err != nil {
		log.Printf("resolve users: get users error: %v", err)
		return uniqueStrings(ids), names, err
	}

	nameToID := make(map[string]string)
	for _, user := range users {
		if user.Deleted || user.IsBot {
			continue
		}
		for _, n := range []string{user.Name, user.RealName, user.Profile.DisplayName} {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if _, exists := nameToID[n]; !exists {
				nameToID[n] = user.ID
			}
		}
	}

	var unresolved []string
	for _, name := range names {
		if id, ok := nameToID[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		} else {
			unresolved = append(unresolved, name)
		}
	}

	log.Printf("resolve users: ids=%d unresolved=%d", len(ids), len(unresolved))
	return uniqueStrings(ids), unresolved, nil
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func uniqueStrings(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

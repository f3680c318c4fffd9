package domain

import (
	"sort"
	"strings"
	"time"
)

type Scope string

// ChannelScopes are the scopes a channel token must carry to be tracked.
var ChannelScopes = []Scope{
	"user:read:chat",
	"moderator:manage:blocked_terms",
	"moderator:manage:banned_users",
	"channel:manage:broadcast",
	"moderator:read:followers",
	"moderator:read:chatters",
}

type Credential struct {
	EntityID     EntityID
	Login        string
	AccessToken  string
	RefreshToken string
	Scopes       []Scope
	ExpiresAt    time.Time
}

func (c Credential) HasScopes(required ...Scope) bool {
	return len(c.MissingScopes(required...)) == 0
}

func (c Credential) MissingScopes(required ...Scope) []Scope {
	granted := make(map[Scope]struct{}, len(c.Scopes))
	for _, scope := range c.Scopes {
		granted[scope] = struct{}{}
	}

	missing := make([]Scope, 0)
	for _, scope := range required {
		if _, ok := granted[scope]; !ok {
			missing = append(missing, scope)
		}
	}

	return missing
}

func ParseScopes(raw []string) []Scope {
	scopes := make([]Scope, 0, len(raw))
	seen := make(map[Scope]struct{}, len(raw))
	for _, value := range raw {
		scope := Scope(strings.TrimSpace(value))
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })

	return scopes
}

func ScopeStrings(scopes []Scope) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		out = append(out, string(scope))
	}
	return out
}

package room

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrAccessDenied = errors.New("not allowed in this room")

	slugRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

const personalPrefix = "personal-"

// Slugify lowers a name and collapses anything non-alphanumeric.
func Slugify(name string) string {
	slug := slugRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}

// PersonalRoomKey derives the deterministic key of an identity's personal
// room. The key embeds the owner so a reconnecting client lands in the same
// room without any server-side record surviving in between.
func PersonalRoomKey(ownerID, name string) string {
	return personalPrefix + ownerID + "-" + Slugify(name)
}

// SharedRoomKey derives a capability key for a shared room: the topic slug
// plus a random suffix. Possession of the key is the access credential.
func SharedRoomKey(topic string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	slug := Slugify(topic)
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}

// ParseKey recovers the kind and owner a key was derived with. It is only
// consulted when a join races the room's creation and no explicit kind is
// on record yet; an existing Room's typed Kind field always wins. A key only
// counts as personal when a full UUID owner segment follows the prefix, so a
// shared slug that happens to start with "personal" stays shared.
func ParseKey(key string) (Kind, string) {
	if rest, ok := strings.CutPrefix(key, personalPrefix); ok && len(rest) >= 36 {
		// the owner segment is a fixed-width UUID; the slug after it may
		// itself contain dashes
		if id, err := uuid.Parse(rest[:36]); err == nil {
			return KindPersonal, id.String()
		}
	}
	return KindShared, ""
}

// Authorize decides whether identityID may join a room of the given kind.
// Personal rooms admit their owner only; shared rooms admit any
// authenticated identity holding the key.
func Authorize(identityID string, kind Kind, ownerID string) error {
	switch kind {
	case KindPersonal:
		if ownerID == identityID {
			return nil
		}
		return ErrAccessDenied
	case KindShared:
		return nil
	}
	return ErrAccessDenied
}

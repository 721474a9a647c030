package room

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Algebra", "algebra"},
		{"  Deep  Work!  ", "deep-work"},
		{"Café & Code", "caf-code"},
		{"---", ""},
		{"Final Exam Prep 2026", "final-exam-prep-2026"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestPersonalRoomKeyRoundTrip(t *testing.T) {
	ownerID := uuid.NewString()
	key := PersonalRoomKey(ownerID, "My Study Den")

	kind, gotOwner := ParseKey(key)
	assert.Equal(t, KindPersonal, kind)
	assert.Equal(t, ownerID, gotOwner)

	// slugs with dashes must not eat into the owner segment
	kind, gotOwner = ParseKey(PersonalRoomKey(ownerID, "late-night-cram"))
	assert.Equal(t, KindPersonal, kind)
	assert.Equal(t, ownerID, gotOwner)
}

func TestSharedRoomKey(t *testing.T) {
	key := SharedRoomKey("Linear Algebra")
	require.Regexp(t, regexp.MustCompile(`^linear-algebra-[0-9a-f]{8}$`), key)

	kind, ownerID := ParseKey(key)
	assert.Equal(t, KindShared, kind)
	assert.Empty(t, ownerID)

	// keys are capabilities; two rooms on the same topic must not collide
	assert.NotEqual(t, key, SharedRoomKey("Linear Algebra"))
}

func TestParseKey_SharedSlugWithPersonalPrefix(t *testing.T) {
	// a shared topic may slugify to something starting with "personal";
	// only a UUID owner segment makes a key personal
	key := SharedRoomKey("Personal Finance")
	require.Regexp(t, regexp.MustCompile(`^personal-finance-[0-9a-f]{8}$`), key)

	kind, ownerID := ParseKey(key)
	assert.Equal(t, KindShared, kind)
	assert.Empty(t, ownerID)
}

func TestAuthorize(t *testing.T) {
	owner := uuid.NewString()
	other := uuid.NewString()

	assert.NoError(t, Authorize(owner, KindPersonal, owner))
	assert.ErrorIs(t, Authorize(other, KindPersonal, owner), ErrAccessDenied)
	assert.NoError(t, Authorize(other, KindShared, ""))
	assert.ErrorIs(t, Authorize(other, Kind("lol"), ""), ErrAccessDenied)
}

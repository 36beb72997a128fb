package schema

import (
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParse_Message(t *testing.T) {
	v := New()

	msg, err := Parse[models.Message](v, []byte(`{
		"id": "m1", "channelId": "c1", "senderId": "u1",
		"text": "hi", "sentAt": "2026-10-19T10:00:00Z"
	}`))
	require.NoError(t, err)
	require.Equal(t, "m1", msg.ID)
	require.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), msg.SentAt)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing id", `{"channelId":"c1","senderId":"u1","sentAt":"2026-10-19T10:00:00Z"}`},
		{"missing sentAt", `{"id":"m1","channelId":"c1","senderId":"u1"}`},
		{"wrong type", `{"id":1,"channelId":"c1","senderId":"u1","sentAt":"2026-10-19T10:00:00Z"}`},
		{"not an object", `"hello"`},
		{"null", `null`},
		{"garbage", `{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse[models.Message](v, []byte(tt.payload))
			require.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestParseList_FiltersNulls(t *testing.T) {
	v := New()

	list, err := ParseList[models.Message](v, []byte(`[
		null,
		{"id":"m1","channelId":"c1","senderId":"u1","sentAt":"2026-10-19T10:00:00Z"},
		null,
		{"id":"m2","channelId":"c2","senderId":"u2","sentAt":"2026-10-19T11:00:00Z"}
	]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "m1", list[0].ID)
	require.Equal(t, "m2", list[1].ID)

	_, err = ParseList[models.Message](v, []byte(`[{"id":"m1"}]`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseList[models.Message](v, []byte(`{"id":"m1"}`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	empty, err := ParseList[models.Message](v, []byte(`[null]`))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestParse_UserProfileShapes(t *testing.T) {
	v := New()

	users, err := ParseList[models.UserProfile](v, []byte(`[
		{"id":"u1","username":"amy","profile":{"firstName":"Amy","lastName":"Lee"}},
		[{"id":"u2","username":"bob"}, null],
		[{"id":"u3","username":"cy"}, {"image":"https://img/cy.png"}]
	]`))
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "Amy", users[0].Profile.FirstName)
	require.Nil(t, users[1].Profile)
	require.Equal(t, "https://img/cy.png", users[2].Profile.Image)

	// Usernames are free text; only presence is checked.
	free, err := ParseList[models.UserProfile](v, []byte(`[{"id":"u1","username":"Амир Ли"},{"id":"u2","username":"mary jane"}]`))
	require.NoError(t, err)
	require.Equal(t, "Амир Ли", free[0].User.Username)
	require.Equal(t, "mary jane", free[1].User.Username)

	_, err = ParseList[models.UserProfile](v, []byte(`[{"id":"u1","username":""}]`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ParseList[models.UserProfile](v, []byte(`[{"id":"","username":"amy"}]`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_Event(t *testing.T) {
	v := New()

	ev, err := Parse[models.Event](v, []byte(`{"type":"online","userIds":["u1","u2"]}`))
	require.NoError(t, err)
	require.Equal(t, models.EventTypeOnline, ev.Type)

	_, err = Parse[models.Event](v, []byte(`{"type":"typing"}`))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestField(t *testing.T) {
	raw, err := Field([]byte(`{"users":[1,2]}`), "users")
	require.NoError(t, err)
	require.JSONEq(t, `[1,2]`, string(raw))

	_, err = Field([]byte(`{"other":1}`), "users")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Field([]byte(`[]`), "users")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

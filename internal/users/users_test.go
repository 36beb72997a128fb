package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chatsync/internal/fakeapi"
	"chatsync/internal/fetch"
	"chatsync/internal/models"
	"chatsync/internal/schema"
	"chatsync/internal/storage"
	"chatsync/internal/timefmt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore(t *testing.T, backend *fakeapi.Backend, snapshots Snapshots) *Store {
	t.Helper()
	srv := httptest.NewServer(backend.Handler(""))
	t.Cleanup(srv.Close)

	return New(Config{
		Fetch:     fetch.New(fetch.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop()),
		Schema:    schema.New(),
		Formatter: timefmt.New("en-US", time.UTC),
		Snapshots: snapshots,
		Logger:    zap.NewNop(),
	})
}

func TestStore_Init(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	backend.AddUser(models.UserProfile{
		User:    models.User{ID: "u2", Username: "bob"},
		Profile: &models.Profile{FirstName: "Bob", LastName: "Stone"},
	})
	s := newTestStore(t, backend, nil)

	require.NoError(t, s.Init(context.Background()))

	users := s.Users()
	require.Len(t, users, 2)
	require.Equal(t, "u1", users[0].User.ID)
	require.Nil(t, users[0].Profile)
	require.Equal(t, "Bob", users[1].Profile.FirstName)
}

func TestStore_InitAcceptsFreeTextUsernames(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	backend.AddUser(models.UserProfile{User: models.User{ID: "u2", Username: "Амир Ли"}})
	backend.AddUser(models.UserProfile{User: models.User{ID: "u3", Username: "mary jane"}})
	s := newTestStore(t, backend, nil)

	require.NoError(t, s.Init(context.Background()))

	require.Len(t, s.Users(), 3)
	require.Equal(t, "Амир Ли", s.UserName("u2"))
	require.Equal(t, "mary jane", s.UserName("u3"))
}

func TestStore_InitFailureKeepsState(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	s := newTestStore(t, backend, nil)
	require.NoError(t, s.Init(context.Background()))
	before := s.Users()

	tests := []struct {
		name   string
		resp   fakeapi.Response
		target error
	}{
		{"server error", fakeapi.Response{Status: http.StatusInternalServerError, Body: `{"error":"boom"}`}, nil},
		{"not an envelope", fakeapi.Response{Status: http.StatusOK, Body: `[]`}, schema.ErrUnsupportedFormat},
		{"users not a list", fakeapi.Response{Status: http.StatusOK, Body: `{"users":{}}`}, schema.ErrUnsupportedFormat},
		{"invalid user", fakeapi.Response{Status: http.StatusOK, Body: `{"users":[{"id":"u9"}]}`}, schema.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend.Enqueue(http.MethodGet, "/users", tt.resp)

			err := s.Init(context.Background())
			require.Error(t, err)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
			} else {
				var statusErr *fetch.StatusError
				require.True(t, errors.As(err, &statusErr))
			}
			require.Equal(t, before, s.Users())
		})
	}
}

func TestStore_InitDropsDuplicateIDs(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "impostor"}})
	s := newTestStore(t, backend, nil)

	require.NoError(t, s.Init(context.Background()))
	require.Len(t, s.Users(), 1)
	require.Equal(t, "amy", s.UserName("u1"))
}

func TestStore_InitSharesInflightRequest(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	s := newTestStore(t, backend, nil)

	gate := make(chan struct{})
	backend.Enqueue(http.MethodGet, "/users", fakeapi.Response{Wait: gate})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Go(func() {
			errs[i] = s.Init(context.Background())
		})
	}
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, backend.Requests(http.MethodGet, "/users"))
}

func TestStore_UserName(t *testing.T) {
	s := New(Config{})
	s.users = []models.UserProfile{
		{User: models.User{ID: "plain", Username: "plain_user"}},
		{User: models.User{ID: "full", Username: "full_user"}, Profile: &models.Profile{FirstName: "Ada", LastName: "Lovelace"}},
		{User: models.User{ID: "empty", Username: "empty_user"}, Profile: &models.Profile{}},
		{User: models.User{ID: "first-only", Username: "first_user"}, Profile: &models.Profile{FirstName: "Ada"}},
		{User: models.User{ID: "last-only", Username: "last_user"}, Profile: &models.Profile{LastName: "Lovelace"}},
		{User: models.User{ID: "blank-first", Username: "blank_user"}, Profile: &models.Profile{FirstName: "   ", LastName: "Lovelace"}},
		{User: models.User{ID: "blank-last", Username: "tab_user"}, Profile: &models.Profile{FirstName: "Ada", LastName: "\t"}},
		{User: models.User{ID: "padded", Username: "padded_user"}, Profile: &models.Profile{FirstName: " Ada", LastName: "Lovelace "}},
	}

	tests := []struct {
		id   string
		want string
	}{
		{"missing", Anonymous},
		{"", Anonymous},
		{"plain", "plain_user"},
		{"full", "Ada Lovelace"},
		{"empty", "empty_user"},
		{"first-only", "first_user"},
		{"last-only", "last_user"},
		{"blank-first", "blank_user"},
		{"blank-last", "tab_user"},
		{"padded", " Ada Lovelace "},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			require.Equal(t, tt.want, s.UserName(tt.id))
			// Memoized value stays the same.
			require.Equal(t, tt.want, s.UserName(tt.id))
		})
	}

	require.Equal(t, Anonymous, s.SenderName(""))
	require.Equal(t, "Ada Lovelace", s.SenderName("full"))
}

func TestStore_EmptyFirstNameFallsBackToUsername(t *testing.T) {
	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{User: models.User{ID: "u1", Username: "amy"}})
	s := newTestStore(t, backend, nil)
	require.NoError(t, s.Init(context.Background()))

	require.True(t, s.AddUserProfile("u1", models.Profile{FirstName: "", LastName: "Lee"}))
	require.Equal(t, "amy", s.UserName("u1"))
}

func TestStore_AddUserProfile(t *testing.T) {
	s := New(Config{})
	require.True(t, s.AddNewUser(models.User{ID: "u1", Username: "amy"}))
	require.Equal(t, "amy", s.UserName("u1"))

	first := models.Profile{FirstName: "Amy", LastName: "Lee", Image: "https://img/1.png"}
	require.True(t, s.AddUserProfile("u1", first))
	require.Equal(t, "Amy Lee", s.UserName("u1"))

	// The second profile replaces the first one as a whole.
	second := models.Profile{FirstName: "Amelia"}
	require.True(t, s.AddUserProfile("u1", second))

	up, ok := s.GetUserByID("u1")
	require.True(t, ok)
	require.Equal(t, second, *up.Profile)
	require.Equal(t, "amy", s.UserName("u1"))

	img, ok := s.UserImage("u1")
	require.False(t, ok)
	require.Empty(t, img)

	require.False(t, s.AddUserProfile("nobody", first))
	_, ok = s.GetUserByID("nobody")
	require.False(t, ok)
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	s := New(Config{})
	s.AddNewUser(models.User{ID: "u1", Username: "amy"})
	s.AddUserProfile("u1", models.Profile{FirstName: "Amy", LastName: "Lee"})

	up, _ := s.GetUserByID("u1")
	up.Profile.FirstName = "Mallory"
	all := s.Users()
	all[0].Profile.LastName = "Mallory"

	require.Equal(t, "Amy Lee", s.UserName("u1"))
}

func TestStore_UserImage(t *testing.T) {
	s := New(Config{})
	s.AddNewUser(models.User{ID: "u1", Username: "amy"})
	s.AddNewUser(models.User{ID: "u2", Username: "bob"})
	s.AddUserProfile("u2", models.Profile{Image: "https://img/bob.png"})
	s.AddNewUser(models.User{ID: "u3", Username: "cy"})
	s.AddUserProfile("u3", models.Profile{FirstName: "Cy", LastName: "Young"})

	_, ok := s.UserImage("u1")
	require.False(t, ok)

	// A profile without an image is the same as no image at all.
	img, ok := s.UserImage("u3")
	require.False(t, ok)
	require.Empty(t, img)

	_, ok = s.UserImage("missing")
	require.False(t, ok)

	img, ok = s.SenderImage("u2")
	require.True(t, ok)
	require.Equal(t, "https://img/bob.png", img)

	_, ok = s.SenderImage("")
	require.False(t, ok)
}

func TestStore_AddNewUser(t *testing.T) {
	s := New(Config{})
	v := s.Version()

	require.True(t, s.AddNewUser(models.User{ID: "u1", Username: "amy"}))
	require.Greater(t, s.Version(), v)
	s.AddUserProfile("u1", models.Profile{FirstName: "Amy", LastName: "Lee"})

	// Redelivery of a known user keeps the existing record.
	v = s.Version()
	require.False(t, s.AddNewUser(models.User{ID: "u1", Username: "other"}))
	require.Equal(t, v, s.Version())
	require.Len(t, s.Users(), 1)
	require.Equal(t, "Amy Lee", s.UserName("u1"))
}

func TestStore_Presence(t *testing.T) {
	s := New(Config{})

	require.Equal(t, models.StatusOffline, s.Status("u1"))
	require.Equal(t, models.StatusOffline, s.Status(""))

	s.UpdateOnline([]string{"u1", "u2", "u3", "u4"}, models.EventTypeOnline)
	require.Equal(t, []string{"u1", "u2", "u3", "u4"}, s.OnlineUsers())
	require.Equal(t, models.StatusOnline, s.Status("u2"))

	s.UpdateOnline([]string{"u2", "u4", "ghost"}, models.EventTypeOffline)
	require.Equal(t, []string{"u1", "u3"}, s.OnlineUsers())
	require.Equal(t, models.StatusOffline, s.Status("u2"))
	require.Equal(t, models.StatusOnline, s.Status("u3"))

	// Online events are full snapshots.
	s.UpdateOnline([]string{"u9"}, models.EventTypeOnline)
	require.Equal(t, []string{"u9"}, s.OnlineUsers())

	// Unknown kinds are treated as removals.
	s.UpdateOnline([]string{"u9"}, "away")
	require.Empty(t, s.OnlineUsers())
}

func TestStore_PresenceSubsetProperty(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	// Every subset of ids, encoded as a bitmask.
	for mask := 0; mask < 1<<len(ids); mask++ {
		s := New(Config{})
		s.UpdateOnline(ids, models.EventTypeOnline)

		var subset, want []string
		for i, id := range ids {
			if mask&(1<<i) != 0 {
				subset = append(subset, id)
			} else {
				want = append(want, id)
			}
		}
		s.UpdateOnline(subset, models.EventTypeOffline)

		if want == nil {
			want = []string{}
		}
		require.Equal(t, want, s.OnlineUsers(), "mask %05b", mask)
	}
}

func TestStore_InviteMember(t *testing.T) {
	backend := fakeapi.New()
	s := newTestStore(t, backend, nil)

	require.NoError(t, s.InviteMember(context.Background(), "general", "u2"))
	require.Equal(t, []string{"u2"}, backend.Invites("general"))

	backend.Enqueue(http.MethodPost, "/channels/general/notifications",
		fakeapi.Response{Status: http.StatusForbidden, Body: `{"error":"not a member"}`})

	err := s.InviteMember(context.Background(), "general", "u3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invite member u3 to channel general")

	var statusErr *fetch.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestStore_SentAt(t *testing.T) {
	s := New(Config{Formatter: timefmt.New("en-US", time.UTC)})
	msg := models.Message{SentAt: time.Date(2026, time.January, 5, 15, 4, 0, 0, time.UTC)}

	require.Equal(t, "Monday, January 5, 3:04 PM", s.SentAt(msg))
	require.Equal(t, "5 Monday", s.SentAt(msg, timefmt.DayOptions))
}

func TestStore_Snapshots(t *testing.T) {
	db, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	backend := fakeapi.New()
	backend.AddUser(models.UserProfile{
		User:    models.User{ID: "u1", Username: "amy"},
		Profile: &models.Profile{FirstName: "Amy", LastName: "Lee"},
	})
	s := newTestStore(t, backend, db)
	require.NoError(t, s.Init(context.Background()))

	restored := newTestStore(t, fakeapi.New(), db)
	require.NoError(t, restored.Restore())
	require.Equal(t, "Amy Lee", restored.UserName("u1"))
	require.Equal(t, s.Users(), restored.Users())
}

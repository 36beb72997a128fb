// Package users holds the client-side user collection, online presence
// and the values derived from them (display names, avatars, status).
package users

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"chatsync/internal/models"
	"chatsync/internal/schema"
	"chatsync/internal/timefmt"

	"github.com/c-pro/geche"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	usersPath = "/users"

	// Anonymous is the display name of unknown senders.
	Anonymous = "Anonymous"
)

type Fetcher interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
}

// Snapshots persists the last successfully fetched collection.
type Snapshots interface {
	SaveUsers(users []models.UserProfile) error
	LoadUsers() ([]models.UserProfile, error)
}

type Config struct {
	Fetch     Fetcher
	Schema    *schema.Validator
	Formatter *timefmt.Formatter
	// Snapshots is optional.
	Snapshots Snapshots
	Logger    *zap.Logger
}

type Store struct {
	Config

	mu      sync.RWMutex
	users   []models.UserProfile
	online  map[string]struct{}
	version uint64
	// names memoizes display names for the current version.
	names geche.Geche[string, string]

	inflight singleflight.Group
}

func New(config Config) *Store {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Store{
		Config: config,
		online: make(map[string]struct{}),
		names:  geche.NewMapCache[string, string](),
	}
}

// Init fetches all users and replaces the collection. On failure the
// error is logged and returned, and the current collection is kept.
// Concurrent calls share a single request.
func (s *Store) Init(ctx context.Context) error {
	_, err, _ := s.inflight.Do(usersPath, func() (any, error) {
		return nil, s.init(ctx)
	})
	return err
}

func (s *Store) init(ctx context.Context) error {
	body, err := s.Fetch.Get(ctx, usersPath)
	if err != nil {
		s.Logger.Error("failed to fetch users", zap.Error(err))
		return fmt.Errorf("fetch users: %w", err)
	}

	field, err := schema.Field(body, "users")
	if err != nil {
		s.Logger.Error("unsupported users payload", zap.Error(err))
		return err
	}
	users, err := schema.ParseList[models.UserProfile](s.Schema, field)
	if err != nil {
		s.Logger.Error("unsupported users payload", zap.Error(err))
		return err
	}
	users = s.dedupe(users)

	s.mu.Lock()
	s.users = users
	s.invalidate()
	s.mu.Unlock()

	if s.Snapshots != nil {
		if err := s.Snapshots.SaveUsers(users); err != nil {
			s.Logger.Warn("failed to save users snapshot", zap.Error(err))
		}
	}
	return nil
}

// Restore loads the last saved snapshot, if any, into the collection.
func (s *Store) Restore() error {
	if s.Snapshots == nil {
		return nil
	}
	users, err := s.Snapshots.LoadUsers()
	if err != nil {
		return fmt.Errorf("load users snapshot: %w", err)
	}

	s.mu.Lock()
	s.users = s.dedupe(users)
	s.invalidate()
	s.mu.Unlock()
	return nil
}

// dedupe keeps the first record of every user id.
func (s *Store) dedupe(users []models.UserProfile) []models.UserProfile {
	seen := make(map[string]struct{}, len(users))
	out := users[:0:0]
	for _, u := range users {
		if _, ok := seen[u.User.ID]; ok {
			s.Logger.Warn("dropping duplicate user", zap.String("user_id", u.User.ID))
			continue
		}
		seen[u.User.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

// invalidate must be called with mu held for writing.
func (s *Store) invalidate() {
	s.version++
	s.names = geche.NewMapCache[string, string]()
}

// Version changes every time the user collection changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Users returns a copy of the collection in insertion order.
func (s *Store) Users() []models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserProfile, len(s.users))
	for i, u := range s.users {
		out[i] = clone(u)
	}
	return out
}

func (s *Store) GetUserByID(id string) (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.UserProfile{}, false
	}
	return clone(s.users[i]), true
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.users, func(u models.UserProfile) bool {
		return u.User.ID == id
	})
}

// UserName resolves the display name of a user: "Anonymous" for unknown
// ids, the username unless both first and last name are set to something
// other than whitespace, and "First Last" otherwise.
func (s *Store) UserName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name, err := s.names.Get(id); err == nil {
		return name
	}

	name := Anonymous
	if i := s.indexOf(id); i >= 0 {
		name = displayName(s.users[i])
	}
	s.names.Set(id, name)
	return name
}

func displayName(up models.UserProfile) string {
	p := up.Profile
	if p == nil {
		return up.User.Username
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return up.User.Username
	}
	return p.FirstName + " " + p.LastName
}

// SenderName is UserName with an empty-id guard for message senders.
func (s *Store) SenderName(id string) string {
	if id == "" {
		return Anonymous
	}
	return s.UserName(id)
}

// UserImage returns the profile image of a user. It reports false when the
// user is unknown or has no profile image; falling back to a default
// avatar is left to the presentation layer.
func (s *Store) UserImage(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 || s.users[i].Profile == nil || s.users[i].Profile.Image == "" {
		return "", false
	}
	return s.users[i].Profile.Image, true
}

func (s *Store) SenderImage(id string) (string, bool) {
	if id == "" {
		return "", false
	}
	return s.UserImage(id)
}

// AddUserProfile replaces the profile of a user as a whole. It reports
// false when the user is unknown.
func (s *Store) AddUserProfile(id string, profile models.Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}

	s.users[i] = models.UserProfile{User: s.users[i].User, Profile: &profile}
	s.invalidate()
	return true
}

// AddNewUser appends a user without a profile. Users that are already
// known are left as they are and false is returned.
func (s *Store) AddNewUser(user models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(user.ID) >= 0 {
		return false
	}
	s.users = append(s.users, models.UserProfile{User: user})
	s.invalidate()
	return true
}

// UpdateOnline applies a presence event. An online event is a full
// snapshot of online users; any other kind removes the listed ids and
// leaves the rest online.
func (s *Store) UpdateOnline(ids []string, kind models.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == models.EventTypeOnline {
		online := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			online[id] = struct{}{}
		}
		s.online = online
		return
	}

	for _, id := range ids {
		delete(s.online, id)
	}
}

// OnlineUsers returns the sorted ids of online users.
func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s *Store) Status(id string) models.Status {
	if id == "" {
		return models.StatusOffline
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.online[id]; ok {
		return models.StatusOnline
	}
	return models.StatusOffline
}

// InviteMember asks the backend to notify userID about channelID.
func (s *Store) InviteMember(ctx context.Context, channelID, userID string) error {
	path := fmt.Sprintf("/channels/%s/notifications", url.PathEscape(channelID))
	if _, err := s.Fetch.Post(ctx, path, models.InviteRequest{UserID: userID}); err != nil {
		return fmt.Errorf("invite member %s to channel %s: %w", userID, channelID, err)
	}
	return nil
}

// SentAt formats the send time of a message, by default like
// "Monday, January 5, 3:04 PM".
func (s *Store) SentAt(msg models.Message, opts ...timefmt.Options) string {
	o := timefmt.SentAtOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return s.Formatter.Format(msg.SentAt, o)
}

func clone(up models.UserProfile) models.UserProfile {
	if up.Profile != nil {
		p := *up.Profile
		up.Profile = &p
	}
	return up
}

// Package messages holds the messages of the open channel and the
// latest-message previews shown in the channel list.
package messages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"chatsync/internal/content"
	"chatsync/internal/models"
	"chatsync/internal/schema"

	"go.uber.org/zap"
)

const latestPath = "/channels/latest-messages"

// ErrSuperseded is returned by LoadChannel when a newer load was started
// before this one finished. Its result is discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

type Fetcher interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
}

// Snapshots persists the last fetched latest-messages collection.
type Snapshots interface {
	SaveLatestMessages(messages []models.Message) error
	LoadLatestMessages() ([]models.Message, error)
}

type Config struct {
	Fetch  Fetcher
	Schema *schema.Validator
	// Snapshots is optional.
	Snapshots Snapshots
	Logger    *zap.Logger
}

type Store struct {
	Config

	mu        sync.RWMutex
	latest    []models.Message
	channelID string
	messages  []models.Message
	version   uint64
	// loads numbers LoadChannel calls; only the newest may apply.
	loads uint64

	images memo[[]string]
	html   memo[[]string]
}

func New(config Config) *Store {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Store{Config: config}
}

// Init fetches the latest message of every channel and replaces the
// preview collection. On failure the error is logged and returned and the
// previous collection is kept.
func (s *Store) Init(ctx context.Context) error {
	body, err := s.Fetch.Get(ctx, latestPath)
	if err != nil {
		s.Logger.Error("failed to fetch latest messages", zap.Error(err))
		return fmt.Errorf("fetch latest messages: %w", err)
	}

	latest, err := schema.ParseList[models.Message](s.Schema, body)
	if err != nil {
		s.Logger.Error("unsupported latest messages payload", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.latest = latest
	s.mu.Unlock()

	if s.Snapshots != nil {
		if err := s.Snapshots.SaveLatestMessages(latest); err != nil {
			s.Logger.Warn("failed to save latest messages snapshot", zap.Error(err))
		}
	}
	return nil
}

// Restore loads the last saved latest-messages snapshot, if any.
func (s *Store) Restore() error {
	if s.Snapshots == nil {
		return nil
	}
	latest, err := s.Snapshots.LoadLatestMessages()
	if err != nil {
		return fmt.Errorf("load latest messages snapshot: %w", err)
	}

	s.mu.Lock()
	s.latest = latest
	s.mu.Unlock()
	return nil
}

// LoadChannel fetches all messages of a channel and replaces the current
// channel messages with them. When LoadChannel is called again before a
// previous call completes, the older response is dropped and
// ErrSuperseded returned for it.
func (s *Store) LoadChannel(ctx context.Context, channelID string) error {
	s.mu.Lock()
	s.loads++
	load := s.loads
	s.mu.Unlock()

	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	body, err := s.Fetch.Get(ctx, path)
	if err != nil {
		s.Logger.Error("failed to fetch channel messages", zap.String("channel_id", channelID), zap.Error(err))
		return fmt.Errorf("fetch messages of channel %s: %w", channelID, err)
	}

	field, err := schema.Field(body, "messages")
	if err != nil {
		s.Logger.Error("unsupported channel messages payload", zap.String("channel_id", channelID), zap.Error(err))
		return err
	}
	messages, err := schema.ParseList[models.Message](s.Schema, field)
	if err != nil {
		s.Logger.Error("unsupported channel messages payload", zap.String("channel_id", channelID), zap.Error(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if load != s.loads {
		s.Logger.Debug("discarding stale channel messages", zap.String("channel_id", channelID))
		return ErrSuperseded
	}
	s.channelID = channelID
	s.messages = messages
	s.version++
	return nil
}

// SendMessage posts a message and, once the backend confirms it with a
// valid message, appends it to the latest messages. Nothing is changed
// locally before that confirmation or when it fails.
func (s *Store) SendMessage(ctx context.Context, channelID, text, image string) (models.Message, error) {
	log := s.Logger.With(zap.String("channel_id", channelID))

	if err := content.ValidateImage(image); err != nil {
		log.Error("refusing to send message", zap.Error(err))
		return models.Message{}, err
	}

	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	body, err := s.Fetch.Post(ctx, path, models.SendMessageRequest{Text: text, Image: image})
	if err != nil {
		log.Error("failed to send message", zap.Error(err))
		return models.Message{}, fmt.Errorf("send message to channel %s: %w", channelID, err)
	}

	field, err := schema.Field(body, "messages")
	if err != nil {
		log.Error("unknown format of sent message", zap.Error(err))
		return models.Message{}, err
	}
	msg, err := schema.Parse[models.Message](s.Schema, field)
	if err != nil {
		log.Error("unknown format of sent message", zap.Error(err))
		return models.Message{}, err
	}

	s.AddNewLatestMessage(msg)
	return msg, nil
}

// AddNewLatestMessage appends a message delivered by other means, such as
// a push event.
func (s *Store) AddNewLatestMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = append(s.latest, msg)
}

func (s *Store) LatestMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.latest)
}

// LatestByChannel returns the newest preview of every channel. Ties on
// SentAt go to the entry added last.
func (s *Store) LatestByChannel() map[string]models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Message)
	for _, m := range s.latest {
		if cur, ok := out[m.ChannelID]; ok && cur.SentAt.After(m.SentAt) {
			continue
		}
		out[m.ChannelID] = m
	}
	return out
}

// ChannelID is the channel whose messages were loaded last.
func (s *Store) ChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelID
}

func (s *Store) ChatMessages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Page returns the size messages of the zero-based page, in channel order.
func (s *Store) Page(page, size int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page < 0 || size <= 0 {
		return []models.Message{}
	}
	start := page * size
	if start >= len(s.messages) {
		return []models.Message{}
	}
	end := min(start+size, len(s.messages))
	return slices.Clone(s.messages[start:end])
}

// ChatImages lists the image of every channel message, "" where a message
// has none.
func (s *Store) ChatImages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	images := s.images.get(s.version, func() []string {
		out := make([]string, len(s.messages))
		for i, m := range s.messages {
			out[i] = m.Image
		}
		return out
	})
	return slices.Clone(images)
}

// ChatHTML renders the text of every channel message to sanitized HTML.
func (s *Store) ChatHTML() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	html := s.html.get(s.version, func() []string {
		out := make([]string, len(s.messages))
		for i, m := range s.messages {
			out[i] = content.Render(m.Text)
		}
		return out
	})
	return slices.Clone(html)
}

// memo caches a value derived from the channel messages for one version.
type memo[T any] struct {
	mu      sync.Mutex
	valid   bool
	version uint64
	value   T
}

func (m *memo[T]) get(version uint64, compute func() T) T {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.valid || m.version != version {
		m.value = compute()
		m.version = version
		m.valid = true
	}
	return m.value
}

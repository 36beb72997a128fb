// Package theme tracks the UI color theme and its persisted preference.
package theme

import (
	"errors"
	"fmt"
	"sync"

	"chatsync/internal/models"

	"go.uber.org/zap"
)

// PreferenceKey is the storage key holding the persisted theme.
const PreferenceKey = "theme"

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

var ErrUnknownTheme = errors.New("unknown theme")

func Parse(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
	}
}

type Preferences interface {
	GetPreference(name string) (string, error)
	SetPreference(name, value string) error
}

// ClassList is the set of style classes on the application root.
type ClassList interface {
	Add(class string)
	Remove(class string)
}

type Service struct {
	prefs   Preferences
	classes ClassList
	logger  *zap.Logger

	mu      sync.RWMutex
	current Theme
}

func New(prefs Preferences, classes ClassList, logger *zap.Logger) *Service {
	return &Service{
		prefs:   prefs,
		classes: classes,
		logger:  logger,
		current: Light,
	}
}

// Init loads the persisted preference and applies it. A missing or
// invalid preference results in the light theme.
func (s *Service) Init() error {
	t := Light
	value, err := s.prefs.GetPreference(PreferenceKey)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		s.logger.Warn("failed to load theme preference", zap.Error(err))
	default:
		if parsed, perr := Parse(value); perr == nil {
			t = parsed
		} else {
			s.logger.Warn("ignoring stored theme", zap.String("value", value))
		}
	}
	return s.SetTheme(t)
}

func (s *Service) Theme() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetTheme applies t and persists it. The theme is applied even when
// persisting fails; the error is returned to the caller.
func (s *Service) SetTheme(t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = t
	if t == Dark {
		s.classes.Remove(string(Light))
	} else {
		s.classes.Remove(string(Dark))
	}
	s.classes.Add(string(t))
	s.mu.Unlock()

	if err := s.prefs.SetPreference(PreferenceKey, string(t)); err != nil {
		return fmt.Errorf("failed to persist theme: %w", err)
	}
	return nil
}

// Toggle switches between light and dark.
func (s *Service) Toggle() error {
	if s.Theme() == Dark {
		return s.SetTheme(Light)
	}
	return s.SetTheme(Dark)
}

// Classes is a ClassList for headless use and tests.
type Classes struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func NewClasses() *Classes {
	return &Classes{set: make(map[string]struct{})}
}

func (c *Classes) Add(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set[class] = struct{}{}
}

func (c *Classes) Remove(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.set, class)
}

func (c *Classes) Contains(class string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[class]
	return ok
}

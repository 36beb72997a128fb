// Package events applies server-pushed updates to the stores. It does not
// own a transport: anything that yields JSON documents can feed Pump.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"chatsync/internal/models"
	"chatsync/internal/schema"

	"go.uber.org/zap"
)

var ErrIncompleteEvent = errors.New("incomplete event")

type userStore interface {
	UpdateOnline(ids []string, kind models.EventType)
	AddNewUser(user models.User) bool
	AddUserProfile(id string, profile models.Profile) bool
}

type messageStore interface {
	AddNewLatestMessage(msg models.Message)
}

// Source yields one JSON document per call. Sources that are also
// io.Closer are closed when the pump is cancelled.
type Source interface {
	ReadJSON(v any) error
}

type Applier struct {
	users    userStore
	messages messageStore
	schema   *schema.Validator
	logger   *zap.Logger
}

func NewApplier(users userStore, messages messageStore, v *schema.Validator, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{users: users, messages: messages, schema: v, logger: logger}
}

// ApplyJSON validates a raw event and applies it.
func (a *Applier) ApplyJSON(data []byte) error {
	ev, err := schema.Parse[models.Event](a.schema, data)
	if err != nil {
		return err
	}
	return a.Apply(ev)
}

func (a *Applier) Apply(ev models.Event) error {
	switch ev.Type {
	case models.EventTypeOnline, models.EventTypeOffline:
		a.users.UpdateOnline(ev.UserIDs, ev.Type)
	case models.EventTypeUser:
		if ev.User == nil {
			return fmt.Errorf("%w: %s without user", ErrIncompleteEvent, ev.Type)
		}
		if err := a.schema.Struct(ev.User); err != nil {
			return err
		}
		if !a.users.AddNewUser(*ev.User) {
			a.logger.Debug("user already known", zap.String("user_id", ev.User.ID))
		}
	case models.EventTypeProfile:
		if ev.UserID == "" || ev.Profile == nil {
			return fmt.Errorf("%w: %s without user id or profile", ErrIncompleteEvent, ev.Type)
		}
		if !a.users.AddUserProfile(ev.UserID, *ev.Profile) {
			a.logger.Debug("profile for unknown user", zap.String("user_id", ev.UserID))
		}
	case models.EventTypeMessage:
		if ev.Message == nil {
			return fmt.Errorf("%w: %s without message", ErrIncompleteEvent, ev.Type)
		}
		if err := a.schema.Struct(ev.Message); err != nil {
			return err
		}
		a.messages.AddNewLatestMessage(*ev.Message)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrIncompleteEvent, ev.Type)
	}
	return nil
}

// Pump reads events from src and applies them until src is exhausted,
// fails, or ctx is done. Events that fail validation are logged and
// skipped. io.EOF from src ends the pump without error.
//
// On cancellation src is closed if it is an io.Closer. Otherwise the
// reading goroutine stays blocked until its pending ReadJSON returns.
func (a *Applier) Pump(ctx context.Context, src Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	incoming := make(chan json.RawMessage)
	errCh := make(chan error, 1)

	go func() {
		defer close(incoming)
		for {
			var raw json.RawMessage
			if err := src.ReadJSON(&raw); err != nil {
				errCh <- err
				return
			}
			select {
			case incoming <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case raw, ok := <-incoming:
			if !ok {
				var err error
				select {
				case err = <-errCh:
				default:
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			if err := a.ApplyJSON(raw); err != nil {
				a.logger.Warn("dropping event", zap.Error(err))
			}
		case <-ctx.Done():
			if c, ok := src.(io.Closer); ok {
				_ = c.Close()
			}
			return nil
		}
	}
}

// JSONSource adapts a stream of JSON documents to Source.
type JSONSource struct {
	dec *json.Decoder
	r   io.Reader
}

func NewJSONSource(r io.Reader) JSONSource {
	return JSONSource{dec: json.NewDecoder(r), r: r}
}

func (s JSONSource) ReadJSON(v any) error {
	return s.dec.Decode(v)
}

// Close closes the underlying reader if it is an io.Closer, which unblocks
// a pending ReadJSON.
func (s JSONSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

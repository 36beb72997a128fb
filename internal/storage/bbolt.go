package storage

import (
	"errors"
	"fmt"
	"time"

	"chatsync/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketPreferences    = []byte("preferences")
	bucketUsers          = []byte("users")
	bucketLatestMessages = []byte("latest_messages")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPreferences, bucketUsers, bucketLatestMessages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// GetPreference returns a stored preference value or models.ErrNotFound.
func (s *BboltStorage) GetPreference(name string) (string, error) {
	var pref DBPreference
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPreferences).Get([]byte(name))
		if data == nil {
			return models.ErrNotFound
		}
		return pref.UnmarshalBinary(data)
	})
	if err != nil {
		return "", err
	}
	return pref.Value, nil
}

func (s *BboltStorage) SetPreference(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		pref := &DBPreference{Name: name, Value: value}
		data, err := pref.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPreferences).Put(pref.Key(), data)
	})
}

// SaveUsers replaces the stored user snapshot.
func (s *BboltStorage) SaveUsers(users []models.UserProfile) error {
	records := make([]Storeable, len(users))
	for i, u := range users {
		dbUser := &DBUser{
			Position: uint64(i),
			ID:       u.User.ID,
			Username: u.User.Username,
		}
		if u.Profile != nil {
			dbUser.Profile = &DBProfile{
				FirstName: u.Profile.FirstName,
				LastName:  u.Profile.LastName,
				Image:     u.Profile.Image,
			}
		}
		records[i] = dbUser
	}
	return s.replaceBucket(bucketUsers, records)
}

// LoadUsers returns the stored user snapshot in its original order.
func (s *BboltStorage) LoadUsers() ([]models.UserProfile, error) {
	var users []models.UserProfile
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var dbUser DBUser
			if err := dbUser.UnmarshalBinary(v); err != nil {
				return err
			}
			up := models.UserProfile{
				User: models.User{ID: dbUser.ID, Username: dbUser.Username},
			}
			if dbUser.Profile != nil {
				up.Profile = &models.Profile{
					FirstName: dbUser.Profile.FirstName,
					LastName:  dbUser.Profile.LastName,
					Image:     dbUser.Profile.Image,
				}
			}
			users = append(users, up)
			return nil
		})
	})
	return users, err
}

// SaveLatestMessages replaces the stored latest-messages snapshot.
func (s *BboltStorage) SaveLatestMessages(messages []models.Message) error {
	records := make([]Storeable, len(messages))
	for i, m := range messages {
		records[i] = &DBMessage{
			Position:  uint64(i),
			ID:        m.ID,
			ChannelID: m.ChannelID,
			SenderID:  m.SenderID,
			Text:      m.Text,
			Image:     m.Image,
			SentAt:    m.SentAt.UnixMilli(),
		}
	}
	return s.replaceBucket(bucketLatestMessages, records)
}

// LoadLatestMessages returns the stored latest-messages snapshot in order.
func (s *BboltStorage) LoadLatestMessages() ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLatestMessages).ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, models.Message{
				ID:        dbMsg.ID,
				ChannelID: dbMsg.ChannelID,
				SenderID:  dbMsg.SenderID,
				Text:      dbMsg.Text,
				Image:     dbMsg.Image,
				SentAt:    time.UnixMilli(dbMsg.SentAt).UTC(),
			})
			return nil
		})
	})
	return messages, err
}

// replaceBucket drops and recreates the bucket so a snapshot never mixes
// old and new entries.
func (s *BboltStorage) replaceBucket(name []byte, records []Storeable) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop bucket %s: %w", name, err)
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		for _, r := range records {
			data, err := r.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := b.Put(r.Key(), data); err != nil {
				return fmt.Errorf("failed to put record: %w", err)
			}
		}
		return nil
	})
}

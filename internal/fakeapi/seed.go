package fakeapi

import (
	"time"

	"chatsync/internal/models"
)

// Seed fills b with a small demo workspace.
func Seed(b *Backend, now time.Time) {
	b.SenderID = "u1"

	b.AddUser(models.UserProfile{
		User:    models.User{ID: "u1", Username: "amy"},
		Profile: &models.Profile{FirstName: "Amy", LastName: "Lee", Image: "https://api.dicebear.com/7.x/avataaars/svg?seed=Amy"},
	})
	b.AddUser(models.UserProfile{User: models.User{ID: "u2", Username: "bob"}})
	b.AddUser(models.UserProfile{
		User:    models.User{ID: "u3", Username: "charlie"},
		Profile: &models.Profile{FirstName: "Charlie", LastName: " "},
	})

	b.AddChannel("general")
	b.AddChannel("random")
	b.AddChannel("announcements")

	b.AddMessage(models.Message{ID: "m1", ChannelID: "general", SenderID: "u1", Text: "Hello everyone!", SentAt: now.Add(-26 * time.Hour)})
	b.AddMessage(models.Message{ID: "m2", ChannelID: "general", SenderID: "u2", Text: "Hi *Amy*!", SentAt: now.Add(-3 * time.Hour)})
	b.AddMessage(models.Message{ID: "m3", ChannelID: "random", SenderID: "u3", Image: "https://picsum.photos/200", SentAt: now.Add(-90 * time.Second)})
}

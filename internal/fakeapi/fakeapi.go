// Package fakeapi is an in-memory chat backend serving the endpoints the
// stores consume. It backs the store tests and cmd/devserver.
package fakeapi

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"chatsync/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is a scripted reply for one request. A zero Status lets the
// request through to the regular handler once Wait (if any) is closed.
type Response struct {
	Status int
	Body   string
	Wait   <-chan struct{}
}

type Backend struct {
	// SenderID is used as the sender of messages posted through the API.
	SenderID string

	mu       sync.Mutex
	users    []models.UserProfile
	channels []string
	messages map[string][]models.Message
	invites  map[string][]string
	scripted map[string][]Response
	requests map[string]int
	now      func() time.Time
}

func New() *Backend {
	return &Backend{
		messages: make(map[string][]models.Message),
		invites:  make(map[string][]string),
		scripted: make(map[string][]Response),
		requests: make(map[string]int),
		now:      time.Now,
	}
}

func (b *Backend) AddUser(up models.UserProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append(b.users, up)
}

func (b *Backend) AddChannel(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addChannel(id)
}

func (b *Backend) addChannel(id string) {
	if !slices.Contains(b.channels, id) {
		b.channels = append(b.channels, id)
	}
}

// AddMessage stores msg, creating its channel if needed.
func (b *Backend) AddMessage(msg models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addChannel(msg.ChannelID)
	b.messages[msg.ChannelID] = append(b.messages[msg.ChannelID], msg)
}

// Invites returns the user ids invited to a channel.
func (b *Backend) Invites(channelID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.invites[channelID])
}

// Enqueue scripts the next reply for "METHOD /path". Replies are used
// once, in order.
func (b *Backend) Enqueue(method, path string, resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.scripted[key] = append(b.scripted[key], resp)
}

// Requests counts the requests received for "METHOD /path".
func (b *Backend) Requests(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[method+" "+path]
}

// Handler returns the gin engine serving the API under prefix.
func (b *Backend) Handler(prefix string) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group(prefix)
	api.Use(b.script(prefix))
	api.GET("/users", b.listUsers)
	api.GET("/channels/latest-messages", b.latestMessages)
	api.GET("/channels/:id/messages", b.listMessages)
	api.POST("/channels/:id/messages", b.createMessage)
	api.POST("/channels/:id/notifications", b.invite)

	return r
}

func (b *Backend) script(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path[len(prefix):]
		key := c.Request.Method + " " + path

		b.mu.Lock()
		b.requests[key]++
		queue := b.scripted[key]
		var resp Response
		scripted := len(queue) > 0
		if scripted {
			resp = queue[0]
			b.scripted[key] = queue[1:]
		}
		b.mu.Unlock()

		if !scripted {
			c.Next()
			return
		}

		if resp.Wait != nil {
			select {
			case <-resp.Wait:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if resp.Status == 0 {
			c.Next()
			return
		}
		c.Data(resp.Status, "application/json", []byte(resp.Body))
		c.Abort()
	}
}

func (b *Backend) listUsers(c *gin.Context) {
	b.mu.Lock()
	users := slices.Clone(b.users)
	b.mu.Unlock()

	if users == nil {
		users = []models.UserProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// latestMessages returns the last message of every channel, with null for
// channels that have none.
func (b *Backend) latestMessages(c *gin.Context) {
	b.mu.Lock()
	latest := make([]*models.Message, len(b.channels))
	for i, id := range b.channels {
		if msgs := b.messages[id]; len(msgs) > 0 {
			m := msgs[len(msgs)-1]
			latest[i] = &m
		}
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, latest)
}

func (b *Backend) listMessages(c *gin.Context) {
	id := c.Param("id")

	b.mu.Lock()
	known := slices.Contains(b.channels, id)
	msgs := slices.Clone(b.messages[id])
	b.mu.Unlock()

	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (b *Backend) createMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b.mu.Lock()
	msg := models.Message{
		ID:        uuid.NewString(),
		ChannelID: c.Param("id"),
		SenderID:  b.SenderID,
		Text:      req.Text,
		Image:     req.Image,
		SentAt:    b.now().UTC(),
	}
	b.addChannel(msg.ChannelID)
	b.messages[msg.ChannelID] = append(b.messages[msg.ChannelID], msg)
	b.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"messages": msg})
}

type inviteRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (b *Backend) invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	b.mu.Lock()
	b.invites[id] = append(b.invites[id], req.UserID)
	b.mu.Unlock()

	c.Status(http.StatusNoContent)
}

package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBPreference struct {
	Name  string `msgpack:"name"`
	Value string `msgpack:"value"`
}

func (p *DBPreference) Key() []byte {
	return []byte(p.Name)
}

func (p *DBPreference) MarshalBinary() (data []byte, err error) {
	type alias DBPreference
	return msgpack.Marshal((*alias)(p))
}

func (p *DBPreference) UnmarshalBinary(data []byte) error {
	type alias DBPreference
	return msgpack.Unmarshal(data, (*alias)(p))
}

// DBUser is one entry of the user snapshot. Position keeps the store's
// insertion order across restarts.
type DBUser struct {
	Position uint64     `msgpack:"position"`
	ID       string     `msgpack:"id"`
	Username string     `msgpack:"username"`
	Profile  *DBProfile `msgpack:"profile,omitempty"`
}

type DBProfile struct {
	FirstName string `msgpack:"firstName"`
	LastName  string `msgpack:"lastName"`
	Image     string `msgpack:"image"`
}

func (u *DBUser) Key() []byte {
	return positionKey(u.Position)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

type DBMessage struct {
	Position  uint64 `msgpack:"position"`
	ID        string `msgpack:"id"`
	ChannelID string `msgpack:"channelId"`
	SenderID  string `msgpack:"senderId"`
	Text      string `msgpack:"text"`
	Image     string `msgpack:"image"`
	SentAt    int64  `msgpack:"sentAt"` // Unix milliseconds
}

func (m *DBMessage) Key() []byte {
	return positionKey(m.Position)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func positionKey(pos uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, pos)
	return key
}

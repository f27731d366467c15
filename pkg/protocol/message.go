package protocol

import (
	"errors"
	"fmt"
	"sort"
)

// Fixed field widths shared by the Medius schemas
const (
	MessageIDLen        = 21
	SessionKeyLen       = 17
	AccessKeyLen        = 17
	AccountNameLen      = 32
	PasswordLen         = 32
	GameNameLen         = 64
	GamePasswordLen     = 32
	LobbyNameLen        = 64
	GameStatsLen        = 256
	MachineSignatureLen = 128
	RSAKeyLen           = 64
	NetAddressLen       = 16
	VersionServerLen    = 56
	UniverseNameLen     = 128
	UniverseDNSLen      = 128
	UniverseDescLen     = 256
	ServerVersionLen    = 16

	// NetAddressListCount is the number of slots in a NetAddressList
	NetAddressListCount = 2
)

var ErrEmptyMessage = errors.New("application message shorter than its class/type header")

// DecodeContext carries the negotiated protocol version and title of a
// connection. Schemas whose wire layout differs between titles branch on it.
type DecodeContext struct {
	MediusVersion int
	AppID         int32
}

// Schema is the encode/decode pair every wire message implements
type Schema interface {
	Encode(w *Writer, ctx DecodeContext)
	Decode(r *Reader, ctx DecodeContext)
	SkipEncryption() bool
}

// Base is embedded in every message. NoEncryption is an instance-level
// override and is never put on the wire.
type Base struct {
	NoEncryption bool
}

func (b Base) SkipEncryption() bool {
	return b.NoEncryption
}

// Class is the Medius message class discriminator
type Class uint8

const (
	ClassDME         Class = 0x00
	ClassLobbyReport Class = 0x01
	ClassLobby       Class = 0x02
	ClassClient      Class = 0x03
	ClassLobbyExt    Class = 0x04
	ClassApplication Class = 0x05
)

func (c Class) String() string {
	switch c {
	case ClassDME:
		return "DME"
	case ClassLobbyReport:
		return "LobbyReport"
	case ClassLobby:
		return "Lobby"
	case ClassClient:
		return "Client"
	case ClassLobbyExt:
		return "LobbyExt"
	case ClassApplication:
		return "Application"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// Tag identifies a Medius message schema
type Tag struct {
	Class Class
	Type  uint8
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/0x%02X", t.Class, t.Type)
}

// Message is a decoded Medius application message
type Message interface {
	Schema
	Tag() Tag
}

// RawMessage carries an application message whose tag has no registered
// schema. The body is kept verbatim so it can be logged or relayed.
type RawMessage struct {
	Base
	MsgTag Tag
	Body   []byte
}

func (m *RawMessage) Tag() Tag { return m.MsgTag }

func (m *RawMessage) Encode(w *Writer, _ DecodeContext) {
	w.Raw(m.Body)
}

func (m *RawMessage) Decode(r *Reader, _ DecodeContext) {
	m.Body = r.Rest()
}

var messageRegistry = map[Tag]func() Message{}

func register(factories ...func() Message) {
	for _, f := range factories {
		tag := f().Tag()
		if _, dup := messageRegistry[tag]; dup {
			panic(fmt.Sprintf("protocol: duplicate message tag %s", tag))
		}
		messageRegistry[tag] = f
	}
}

// NewMessage returns an empty message for tag, or nil if none is registered
func NewMessage(tag Tag) Message {
	if f, ok := messageRegistry[tag]; ok {
		return f()
	}
	return nil
}

// RegisteredTags lists every tag in the registry in class/type order
func RegisteredTags() []Tag {
	tags := make([]Tag, 0, len(messageRegistry))
	for t := range messageRegistry {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Class != tags[j].Class {
			return tags[i].Class < tags[j].Class
		}
		return tags[i].Type < tags[j].Type
	})
	return tags
}

// DecodeMessage decodes [class][type][body]. Unknown tags yield a
// *RawMessage; a known schema that runs out of bytes is an error.
func DecodeMessage(b []byte, ctx DecodeContext) (Message, error) {
	if len(b) < 2 {
		return nil, ErrEmptyMessage
	}
	tag := Tag{Class: Class(b[0]), Type: b[1]}
	r := NewReader(b[2:])

	msg := NewMessage(tag)
	if msg == nil {
		raw := &RawMessage{MsgTag: tag}
		raw.Decode(r, ctx)
		return raw, nil
	}

	msg.Decode(r, ctx)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

// EncodeMessage is the inverse of DecodeMessage
func EncodeMessage(m Message, ctx DecodeContext) []byte {
	tag := m.Tag()
	body := &Writer{}
	m.Encode(body, ctx)

	out := make([]byte, 0, 2+body.Len())
	out = append(out, byte(tag.Class), tag.Type)
	return append(out, body.Bytes()...)
}

// Package plugins is the hook surface of the middleware: lifecycle events
// published on an in-process bus, with optional sinks such as MQTT.
package plugins

import "time"

// EventType names a lifecycle hook
type EventType string

const (
	EventPlayerConnected     EventType = "player_connected"
	EventPlayerLoggedIn      EventType = "player_logged_in"
	EventPlayerLoggedOut     EventType = "player_logged_out"
	EventPlayerCreateGame    EventType = "player_create_game"
	EventGameCreated         EventType = "game_created"
	EventGameEnded           EventType = "game_ended"
	EventPlayerJoinedGame    EventType = "player_joined_game"
	EventPlayerLeftGame      EventType = "player_left_game"
	EventPlayerJoinedChannel EventType = "player_joined_channel"
)

// AllEvents lists every hook in firing order of a typical session
var AllEvents = []EventType{
	EventPlayerConnected,
	EventPlayerLoggedIn,
	EventPlayerJoinedChannel,
	EventPlayerCreateGame,
	EventGameCreated,
	EventPlayerJoinedGame,
	EventPlayerLeftGame,
	EventGameEnded,
	EventPlayerLoggedOut,
}

// Event is one hook invocation. Fields that do not apply to the event type
// are left zero.
type Event struct {
	Type        EventType `json:"type"`
	Source      string    `json:"source"`
	Time        time.Time `json:"time"`
	AppID       int32     `json:"app_id,omitempty"`
	AccountID   int32     `json:"account_id,omitempty"`
	AccountName string    `json:"account_name,omitempty"`
	ChannelID   int32     `json:"channel_id,omitempty"`
	GameID      int32     `json:"game_id,omitempty"`
	GameName    string    `json:"game_name,omitempty"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
}

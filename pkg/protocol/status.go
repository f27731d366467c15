package protocol

import "fmt"

// CallbackStatus is the status code carried by every Medius response
type CallbackStatus int32

const (
	StatusSuccess              CallbackStatus = 0
	StatusNoResult             CallbackStatus = -1
	StatusRequestDenied        CallbackStatus = -2
	StatusAccountNotFound      CallbackStatus = -3
	StatusAccountLoggedIn      CallbackStatus = -4
	StatusAccountBanned        CallbackStatus = -5
	StatusAccountAlreadyExists CallbackStatus = -6
	StatusInvalidPassword      CallbackStatus = -7
	StatusInvalidOperation     CallbackStatus = -8
	StatusDBError              CallbackStatus = -9
	StatusGameNameExists       CallbackStatus = -10
	StatusGameNotFound         CallbackStatus = -11
	StatusWorldIsFull          CallbackStatus = -12
	StatusNotPrivileged        CallbackStatus = -13
	StatusMachineBanned        CallbackStatus = -14
	StatusChannelNotFound      CallbackStatus = -15
	StatusInvalidSession       CallbackStatus = -16
	StatusFail                 CallbackStatus = -1000
)

var statusNames = map[CallbackStatus]string{
	StatusSuccess:              "Success",
	StatusNoResult:             "NoResult",
	StatusRequestDenied:        "RequestDenied",
	StatusAccountNotFound:      "AccountNotFound",
	StatusAccountLoggedIn:      "AccountLoggedIn",
	StatusAccountBanned:        "AccountBanned",
	StatusAccountAlreadyExists: "AccountAlreadyExists",
	StatusInvalidPassword:      "InvalidPassword",
	StatusInvalidOperation:     "InvalidOperation",
	StatusDBError:              "DBError",
	StatusGameNameExists:       "GameNameExists",
	StatusGameNotFound:         "GameNotFound",
	StatusWorldIsFull:          "WorldIsFull",
	StatusNotPrivileged:        "NotPrivileged",
	StatusMachineBanned:        "MachineBanned",
	StatusChannelNotFound:      "ChannelNotFound",
	StatusInvalidSession:       "InvalidSession",
	StatusFail:                 "Fail",
}

func (s CallbackStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CallbackStatus(%d)", int32(s))
}

// MGCLError is the one-byte confirmation code used by routing-server
// messages
type MGCLError int8

const (
	MGCLSuccess            MGCLError = 0
	MGCLConnectionError    MGCLError = -1
	MGCLInvalidArg         MGCLError = -2
	MGCLUnsuccessful       MGCLError = -3
	MGCLNotInitialized     MGCLError = -4
	MGCLSessionBeginFailed MGCLError = -5
	MGCLSessionEndFailed   MGCLError = -6
)

func (e MGCLError) String() string {
	switch e {
	case MGCLSuccess:
		return "Success"
	case MGCLConnectionError:
		return "ConnectionError"
	case MGCLInvalidArg:
		return "InvalidArg"
	case MGCLUnsuccessful:
		return "Unsuccessful"
	case MGCLNotInitialized:
		return "NotInitialized"
	case MGCLSessionBeginFailed:
		return "SessionBeginFailed"
	case MGCLSessionEndFailed:
		return "SessionEndFailed"
	}
	return fmt.Sprintf("MGCLError(%d)", int8(e))
}

// WorldStatus is the lifecycle state of a game world
type WorldStatus int32

const (
	WorldInactive        WorldStatus = 0
	WorldPendingCreation WorldStatus = 1
	WorldActive          WorldStatus = 2
	WorldClosed          WorldStatus = 3
)

func (s WorldStatus) String() string {
	switch s {
	case WorldInactive:
		return "Inactive"
	case WorldPendingCreation:
		return "PendingCreation"
	case WorldActive:
		return "Active"
	case WorldClosed:
		return "Closed"
	}
	return fmt.Sprintf("WorldStatus(%d)", int32(s))
}

// GameHostType says who hosts the routed session
type GameHostType int32

const (
	HostClientServer       GameHostType = 0
	HostIntegratedServer   GameHostType = 1
	HostPeerToPeer         GameHostType = 2
	HostLANPlay            GameHostType = 3
	HostClientServerAuxUDP GameHostType = 4
)

// ConnectEventType is reported by routing servers when a player attaches
// to or detaches from a world
type ConnectEventType int32

const (
	EventClientConnect    ConnectEventType = 0
	EventClientDisconnect ConnectEventType = 1
)

// NetAddressType classifies entries of a NetAddressList
type NetAddressType int32

const (
	NetAddressNone           NetAddressType = 0
	NetAddressTypeExternal   NetAddressType = 1
	NetAddressTypeInternal   NetAddressType = 2
	NetAddressTypeNATService NetAddressType = 3
	NetAddressTypeSignal     NetAddressType = 7
)

// NetConnectionType tells the client how to reach the next server
type NetConnectionType int32

const (
	NetConnectionNone                  NetConnectionType = 0
	NetConnectionClientServerTCP       NetConnectionType = 1
	NetConnectionPeerToPeerUDP         NetConnectionType = 2
	NetConnectionClientServerTCPAuxUDP NetConnectionType = 3
)

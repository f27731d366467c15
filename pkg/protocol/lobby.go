package protocol

// Lobby class message types
const (
	TypeSessionBeginRequest         uint8 = 0x01
	TypeSessionBeginResponse        uint8 = 0x02
	TypeSessionEndRequest           uint8 = 0x03
	TypeSessionEndResponse          uint8 = 0x04
	TypeAccountLoginRequest         uint8 = 0x05
	TypeAccountLoginResponse        uint8 = 0x06
	TypeAccountRegistrationRequest  uint8 = 0x07
	TypeAccountRegistrationResponse uint8 = 0x08
	TypeAccountLogoutRequest        uint8 = 0x09
	TypeAccountLogoutResponse       uint8 = 0x0A
	TypeAnonymousLoginRequest       uint8 = 0x0B
	TypeAnonymousLoginResponse      uint8 = 0x0C
	TypeChannelListRequest          uint8 = 0x0D
	TypeChannelListResponse         uint8 = 0x0E
	TypeJoinChannelRequest          uint8 = 0x0F
	TypeJoinChannelResponse         uint8 = 0x10
	TypeCreateGameRequest           uint8 = 0x11
	TypeCreateGameResponse          uint8 = 0x12
	TypeJoinGameRequest             uint8 = 0x13
	TypeJoinGameResponse            uint8 = 0x14
	TypeGameListRequest             uint8 = 0x15
	TypeGameListResponse            uint8 = 0x16
	TypeGameInfoRequest             uint8 = 0x17
	TypeGameInfoResponse            uint8 = 0x18
	TypeWorldReport                 uint8 = 0x19
	TypeEndGameReport               uint8 = 0x1A
	TypePlayerReport                uint8 = 0x1B
	TypeVersionServerRequest        uint8 = 0x1C
	TypeVersionServerResponse       uint8 = 0x1D
	TypeGetServerTimeRequest        uint8 = 0x1E
	TypeGetServerTimeResponse       uint8 = 0x1F
	TypeMachineSignaturePost        uint8 = 0x20
)

func init() {
	register(
		func() Message { return &SessionBeginRequest{} },
		func() Message { return &SessionBeginResponse{} },
		func() Message { return &SessionEndRequest{} },
		func() Message { return &SessionEndResponse{} },
		func() Message { return &AccountLoginRequest{} },
		func() Message { return &AccountLoginResponse{} },
		func() Message { return &AccountRegistrationRequest{} },
		func() Message { return &AccountRegistrationResponse{} },
		func() Message { return &AccountLogoutRequest{} },
		func() Message { return &AccountLogoutResponse{} },
		func() Message { return &AnonymousLoginRequest{} },
		func() Message { return &AnonymousLoginResponse{} },
		func() Message { return &ChannelListRequest{} },
		func() Message { return &ChannelListResponse{} },
		func() Message { return &JoinChannelRequest{} },
		func() Message { return &JoinChannelResponse{} },
		func() Message { return &CreateGameRequest{} },
		func() Message { return &CreateGameResponse{} },
		func() Message { return &JoinGameRequest{} },
		func() Message { return &JoinGameResponse{} },
		func() Message { return &GameListRequest{} },
		func() Message { return &GameListResponse{} },
		func() Message { return &GameInfoRequest{} },
		func() Message { return &GameInfoResponse{} },
		func() Message { return &WorldReport{} },
		func() Message { return &EndGameReport{} },
		func() Message { return &PlayerReport{} },
		func() Message { return &VersionServerRequest{} },
		func() Message { return &VersionServerResponse{} },
		func() Message { return &GetServerTimeRequest{} },
		func() Message { return &GetServerTimeResponse{} },
		func() Message { return &MachineSignaturePost{} },
	)
}

// SessionBeginRequest opens a Medius session on the auth server
type SessionBeginRequest struct {
	Base
	MessageID       string
	ConnectionClass int32
}

func (m *SessionBeginRequest) Tag() Tag { return Tag{ClassLobby, TypeSessionBeginRequest} }

func (m *SessionBeginRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.ConnectionClass)
}

func (m *SessionBeginRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.ConnectionClass = r.Int32()
}

type SessionBeginResponse struct {
	Base
	MessageID  string
	StatusCode CallbackStatus
	SessionKey string
}

func (m *SessionBeginResponse) Tag() Tag { return Tag{ClassLobby, TypeSessionBeginResponse} }

func (m *SessionBeginResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.String(m.SessionKey, SessionKeyLen)
	w.Align(4)
}

func (m *SessionBeginResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.SessionKey = r.String(SessionKeyLen)
	r.Align(4)
}

type SessionEndRequest struct {
	Base
	MessageID  string
	SessionKey string
}

func (m *SessionEndRequest) Tag() Tag { return Tag{ClassLobby, TypeSessionEndRequest} }

func (m *SessionEndRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
}

func (m *SessionEndRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
}

// StatusResponse is the shape shared by the bare acknowledgement responses
type StatusResponse struct {
	MessageID  string
	StatusCode CallbackStatus
}

func (s *StatusResponse) encode(w *Writer) {
	writeHeader(w, s.MessageID)
	w.Int32(int32(s.StatusCode))
}

func (s *StatusResponse) decode(r *Reader) {
	s.MessageID = readHeader(r)
	s.StatusCode = CallbackStatus(r.Int32())
}

type SessionEndResponse struct {
	Base
	StatusResponse
}

func (m *SessionEndResponse) Tag() Tag                          { return Tag{ClassLobby, TypeSessionEndResponse} }
func (m *SessionEndResponse) Encode(w *Writer, _ DecodeContext) { m.StatusResponse.encode(w) }
func (m *SessionEndResponse) Decode(r *Reader, _ DecodeContext) { m.StatusResponse.decode(r) }

// AccountLoginRequest logs an account into the session
type AccountLoginRequest struct {
	Base
	MessageID  string
	SessionKey string
	Username   string
	Password   string
}

func (m *AccountLoginRequest) Tag() Tag { return Tag{ClassLobby, TypeAccountLoginRequest} }

func (m *AccountLoginRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.String(m.Username, AccountNameLen)
	w.String(m.Password, PasswordLen)
}

func (m *AccountLoginRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.Username = r.String(AccountNameLen)
	m.Password = r.String(PasswordLen)
}

// AccountLoginResponse reports the login outcome and, on success, where
// to connect next
type AccountLoginResponse struct {
	Base
	MessageID     string
	StatusCode    CallbackStatus
	AccountID     int32
	AccountType   int32
	MediusWorldID int32
	ConnectInfo   NetConnectionInfo
}

func (m *AccountLoginResponse) Tag() Tag { return Tag{ClassLobby, TypeAccountLoginResponse} }

func (m *AccountLoginResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.AccountID)
	w.Int32(m.AccountType)
	w.Int32(m.MediusWorldID)
	m.ConnectInfo.encode(w)
}

func (m *AccountLoginResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.AccountID = r.Int32()
	m.AccountType = r.Int32()
	m.MediusWorldID = r.Int32()
	m.ConnectInfo.decode(r)
}

type AccountRegistrationRequest struct {
	Base
	MessageID   string
	SessionKey  string
	AccountType int32
	AccountName string
	Password    string
}

func (m *AccountRegistrationRequest) Tag() Tag {
	return Tag{ClassLobby, TypeAccountRegistrationRequest}
}

func (m *AccountRegistrationRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.AccountType)
	w.String(m.AccountName, AccountNameLen)
	w.String(m.Password, PasswordLen)
}

func (m *AccountRegistrationRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.AccountType = r.Int32()
	m.AccountName = r.String(AccountNameLen)
	m.Password = r.String(PasswordLen)
}

type AccountRegistrationResponse struct {
	Base
	MessageID  string
	StatusCode CallbackStatus
	AccountID  int32
}

func (m *AccountRegistrationResponse) Tag() Tag {
	return Tag{ClassLobby, TypeAccountRegistrationResponse}
}

func (m *AccountRegistrationResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.AccountID)
}

func (m *AccountRegistrationResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.AccountID = r.Int32()
}

type AccountLogoutRequest struct {
	Base
	MessageID  string
	SessionKey string
}

func (m *AccountLogoutRequest) Tag() Tag { return Tag{ClassLobby, TypeAccountLogoutRequest} }

func (m *AccountLogoutRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
}

func (m *AccountLogoutRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
}

type AccountLogoutResponse struct {
	Base
	StatusResponse
}

func (m *AccountLogoutResponse) Tag() Tag                          { return Tag{ClassLobby, TypeAccountLogoutResponse} }
func (m *AccountLogoutResponse) Encode(w *Writer, _ DecodeContext) { m.StatusResponse.encode(w) }
func (m *AccountLogoutResponse) Decode(r *Reader, _ DecodeContext) { m.StatusResponse.decode(r) }

// AnonymousLoginRequest logs in without an account
type AnonymousLoginRequest struct {
	Base
	MessageID           string
	SessionKey          string
	SessionDisplayName  string
	SessionDisplayStats []byte
}

func (m *AnonymousLoginRequest) Tag() Tag { return Tag{ClassLobby, TypeAnonymousLoginRequest} }

func (m *AnonymousLoginRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.String(m.SessionDisplayName, AccountNameLen)
	w.FixedBytes(m.SessionDisplayStats, AccountNameLen)
}

func (m *AnonymousLoginRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.SessionDisplayName = r.String(AccountNameLen)
	m.SessionDisplayStats = r.Bytes(AccountNameLen)
}

// AnonymousLoginResponse has the same layout as AccountLoginResponse
type AnonymousLoginResponse struct {
	AccountLoginResponse
}

func (m *AnonymousLoginResponse) Tag() Tag { return Tag{ClassLobby, TypeAnonymousLoginResponse} }

// PageRequest is the paging tail shared by list requests
type PageRequest struct {
	MessageID  string
	SessionKey string
	PageID     uint16
	PageSize   uint16
}

func (p *PageRequest) encode(w *Writer) {
	writeSessionHeader(w, p.MessageID, p.SessionKey)
	w.Uint16(p.PageID)
	w.Uint16(p.PageSize)
}

func (p *PageRequest) decode(r *Reader) {
	p.MessageID, p.SessionKey = readSessionHeader(r)
	p.PageID = r.Uint16()
	p.PageSize = r.Uint16()
}

type ChannelListRequest struct {
	Base
	PageRequest
}

func (m *ChannelListRequest) Tag() Tag                          { return Tag{ClassLobby, TypeChannelListRequest} }
func (m *ChannelListRequest) Encode(w *Writer, _ DecodeContext) { m.PageRequest.encode(w) }
func (m *ChannelListRequest) Decode(r *Reader, _ DecodeContext) { m.PageRequest.decode(r) }

// ChannelListResponse is sent once per channel; the last carries EndOfList
type ChannelListResponse struct {
	Base
	MessageID     string
	StatusCode    CallbackStatus
	MediusWorldID int32
	LobbyName     string
	PlayerCount   int32
	EndOfList     bool
}

func (m *ChannelListResponse) Tag() Tag { return Tag{ClassLobby, TypeChannelListResponse} }

func (m *ChannelListResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.MediusWorldID)
	w.String(m.LobbyName, LobbyNameLen)
	w.Int32(m.PlayerCount)
	w.Bool(m.EndOfList)
	w.Align(4)
}

func (m *ChannelListResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.MediusWorldID = r.Int32()
	m.LobbyName = r.String(LobbyNameLen)
	m.PlayerCount = r.Int32()
	m.EndOfList = r.Bool()
	r.Align(4)
}

type JoinChannelRequest struct {
	Base
	MessageID            string
	SessionKey           string
	MediusWorldID        int32
	LobbyChannelPassword string
}

func (m *JoinChannelRequest) Tag() Tag { return Tag{ClassLobby, TypeJoinChannelRequest} }

func (m *JoinChannelRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
	w.String(m.LobbyChannelPassword, PasswordLen)
}

func (m *JoinChannelRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
	m.LobbyChannelPassword = r.String(PasswordLen)
}

type JoinChannelResponse struct {
	Base
	MessageID   string
	StatusCode  CallbackStatus
	ConnectInfo NetConnectionInfo
}

func (m *JoinChannelResponse) Tag() Tag { return Tag{ClassLobby, TypeJoinChannelResponse} }

func (m *JoinChannelResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	m.ConnectInfo.encode(w)
}

func (m *JoinChannelResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.ConnectInfo.decode(r)
}

// CreateGameRequest asks the lobby to reserve a world. Titles on protocol
// version 108 and older send only the first three generic fields.
type CreateGameRequest struct {
	Base
	MessageID         string
	SessionKey        string
	ApplicationID     int32
	MinPlayers        int32
	MaxPlayers        int32
	GameLevel         int32
	GameName          string
	GamePassword      string
	SpectatorPassword string
	PlayerSkillLevel  int32
	RulesSet          int32
	GenericFields     GenericFields
	GameHostType      GameHostType
	Attributes        int32
}

func (m *CreateGameRequest) Tag() Tag { return Tag{ClassLobby, TypeCreateGameRequest} }

// genericFieldCount is the number of generic fields a title sends
func genericFieldCount(ctx DecodeContext) int {
	if ctx.MediusVersion != 0 && ctx.MediusVersion <= 108 {
		return 3
	}
	return 8
}

func (m *CreateGameRequest) Encode(w *Writer, ctx DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.ApplicationID)
	w.Int32(m.MinPlayers)
	w.Int32(m.MaxPlayers)
	w.Int32(m.GameLevel)
	w.String(m.GameName, GameNameLen)
	w.String(m.GamePassword, GamePasswordLen)
	w.String(m.SpectatorPassword, GamePasswordLen)
	w.Int32(m.PlayerSkillLevel)
	w.Int32(m.RulesSet)
	m.GenericFields.encode(w, genericFieldCount(ctx))
	w.Int32(int32(m.GameHostType))
	w.Int32(m.Attributes)
}

func (m *CreateGameRequest) Decode(r *Reader, ctx DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.ApplicationID = r.Int32()
	m.MinPlayers = r.Int32()
	m.MaxPlayers = r.Int32()
	m.GameLevel = r.Int32()
	m.GameName = r.String(GameNameLen)
	m.GamePassword = r.String(GamePasswordLen)
	m.SpectatorPassword = r.String(GamePasswordLen)
	m.PlayerSkillLevel = r.Int32()
	m.RulesSet = r.Int32()
	m.GenericFields.decode(r, genericFieldCount(ctx))
	m.GameHostType = GameHostType(r.Int32())
	m.Attributes = r.Int32()
}

type CreateGameResponse struct {
	Base
	MessageID     string
	StatusCode    CallbackStatus
	MediusWorldID int32
}

func (m *CreateGameResponse) Tag() Tag { return Tag{ClassLobby, TypeCreateGameResponse} }

func (m *CreateGameResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.MediusWorldID)
}

func (m *CreateGameResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.MediusWorldID = r.Int32()
}

type JoinGameRequest struct {
	Base
	MessageID     string
	SessionKey    string
	MediusWorldID int32
	JoinType      int32
	GamePassword  string
}

func (m *JoinGameRequest) Tag() Tag { return Tag{ClassLobby, TypeJoinGameRequest} }

func (m *JoinGameRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
	w.Int32(m.JoinType)
	w.String(m.GamePassword, GamePasswordLen)
}

func (m *JoinGameRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
	m.JoinType = r.Int32()
	m.GamePassword = r.String(GamePasswordLen)
}

type JoinGameResponse struct {
	Base
	MessageID    string
	StatusCode   CallbackStatus
	GameHostType GameHostType
	ConnectInfo  NetConnectionInfo
}

func (m *JoinGameResponse) Tag() Tag { return Tag{ClassLobby, TypeJoinGameResponse} }

func (m *JoinGameResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(int32(m.GameHostType))
	m.ConnectInfo.encode(w)
}

func (m *JoinGameResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.GameHostType = GameHostType(r.Int32())
	m.ConnectInfo.decode(r)
}

type GameListRequest struct {
	Base
	PageRequest
}

func (m *GameListRequest) Tag() Tag                          { return Tag{ClassLobby, TypeGameListRequest} }
func (m *GameListRequest) Encode(w *Writer, _ DecodeContext) { m.PageRequest.encode(w) }
func (m *GameListRequest) Decode(r *Reader, _ DecodeContext) { m.PageRequest.decode(r) }

type GameListResponse struct {
	Base
	MessageID     string
	StatusCode    CallbackStatus
	MediusWorldID int32
	GameName      string
	WorldStatus   WorldStatus
	GameHostType  GameHostType
	PlayerCount   int32
	EndOfList     bool
}

func (m *GameListResponse) Tag() Tag { return Tag{ClassLobby, TypeGameListResponse} }

func (m *GameListResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.MediusWorldID)
	w.String(m.GameName, GameNameLen)
	w.Int32(int32(m.WorldStatus))
	w.Int32(int32(m.GameHostType))
	w.Int32(m.PlayerCount)
	w.Bool(m.EndOfList)
	w.Align(4)
}

func (m *GameListResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.MediusWorldID = r.Int32()
	m.GameName = r.String(GameNameLen)
	m.WorldStatus = WorldStatus(r.Int32())
	m.GameHostType = GameHostType(r.Int32())
	m.PlayerCount = r.Int32()
	m.EndOfList = r.Bool()
	r.Align(4)
}

type GameInfoRequest struct {
	Base
	MessageID     string
	SessionKey    string
	MediusWorldID int32
}

func (m *GameInfoRequest) Tag() Tag { return Tag{ClassLobby, TypeGameInfoRequest} }

func (m *GameInfoRequest) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
}

func (m *GameInfoRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
}

type GameInfoResponse struct {
	Base
	MessageID        string
	StatusCode       CallbackStatus
	ApplicationID    int32
	MinPlayers       int32
	MaxPlayers       int32
	GameLevel        int32
	PlayerSkillLevel int32
	PlayerCount      int32
	GameStats        []byte
	GameName         string
	RulesSet         int32
	GenericFields    GenericFields
	WorldStatus      WorldStatus
	GameHostType     GameHostType
}

func (m *GameInfoResponse) Tag() Tag { return Tag{ClassLobby, TypeGameInfoResponse} }

func (m *GameInfoResponse) Encode(w *Writer, ctx DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.ApplicationID)
	w.Int32(m.MinPlayers)
	w.Int32(m.MaxPlayers)
	w.Int32(m.GameLevel)
	w.Int32(m.PlayerSkillLevel)
	w.Int32(m.PlayerCount)
	w.FixedBytes(m.GameStats, GameStatsLen)
	w.String(m.GameName, GameNameLen)
	w.Int32(m.RulesSet)
	m.GenericFields.encode(w, genericFieldCount(ctx))
	w.Int32(int32(m.WorldStatus))
	w.Int32(int32(m.GameHostType))
}

func (m *GameInfoResponse) Decode(r *Reader, ctx DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.ApplicationID = r.Int32()
	m.MinPlayers = r.Int32()
	m.MaxPlayers = r.Int32()
	m.GameLevel = r.Int32()
	m.PlayerSkillLevel = r.Int32()
	m.PlayerCount = r.Int32()
	m.GameStats = r.Bytes(GameStatsLen)
	m.GameName = r.String(GameNameLen)
	m.RulesSet = r.Int32()
	m.GenericFields.decode(r, genericFieldCount(ctx))
	m.WorldStatus = WorldStatus(r.Int32())
	m.GameHostType = GameHostType(r.Int32())
}

// WorldReport is the periodic status push the host sends for its game
type WorldReport struct {
	Base
	MessageID        string
	SessionKey       string
	MediusWorldID    int32
	PlayerCount      int32
	GameName         string
	GameStats        []byte
	MinPlayers       int32
	MaxPlayers       int32
	GameLevel        int32
	PlayerSkillLevel int32
	RulesSet         int32
	GenericFields    GenericFields
	WorldStatus      WorldStatus
}

func (m *WorldReport) Tag() Tag { return Tag{ClassLobby, TypeWorldReport} }

func (m *WorldReport) Encode(w *Writer, ctx DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
	w.Int32(m.PlayerCount)
	w.String(m.GameName, GameNameLen)
	w.FixedBytes(m.GameStats, GameStatsLen)
	w.Int32(m.MinPlayers)
	w.Int32(m.MaxPlayers)
	w.Int32(m.GameLevel)
	w.Int32(m.PlayerSkillLevel)
	w.Int32(m.RulesSet)
	m.GenericFields.encode(w, genericFieldCount(ctx))
	w.Int32(int32(m.WorldStatus))
}

func (m *WorldReport) Decode(r *Reader, ctx DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
	m.PlayerCount = r.Int32()
	m.GameName = r.String(GameNameLen)
	m.GameStats = r.Bytes(GameStatsLen)
	m.MinPlayers = r.Int32()
	m.MaxPlayers = r.Int32()
	m.GameLevel = r.Int32()
	m.PlayerSkillLevel = r.Int32()
	m.RulesSet = r.Int32()
	m.GenericFields.decode(r, genericFieldCount(ctx))
	m.WorldStatus = WorldStatus(r.Int32())
}

type EndGameReport struct {
	Base
	MessageID     string
	SessionKey    string
	MediusWorldID int32
	WinningTeam   int32
}

func (m *EndGameReport) Tag() Tag { return Tag{ClassLobby, TypeEndGameReport} }

func (m *EndGameReport) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
	w.Int32(m.WinningTeam)
}

func (m *EndGameReport) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
	m.WinningTeam = r.Int32()
}

type PlayerReport struct {
	Base
	MessageID     string
	SessionKey    string
	MediusWorldID int32
	Stats         []byte
}

func (m *PlayerReport) Tag() Tag { return Tag{ClassLobby, TypePlayerReport} }

func (m *PlayerReport) Encode(w *Writer, _ DecodeContext) {
	writeSessionHeader(w, m.MessageID, m.SessionKey)
	w.Int32(m.MediusWorldID)
	w.FixedBytes(m.Stats, GameStatsLen)
}

func (m *PlayerReport) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.SessionKey = readSessionHeader(r)
	m.MediusWorldID = r.Int32()
	m.Stats = r.Bytes(GameStatsLen)
}

type VersionServerRequest struct {
	Base
	MessageID string
}

func (m *VersionServerRequest) Tag() Tag { return Tag{ClassLobby, TypeVersionServerRequest} }

func (m *VersionServerRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
}

func (m *VersionServerRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
}

type VersionServerResponse struct {
	Base
	MessageID     string
	VersionServer string
	StatusCode    CallbackStatus
}

func (m *VersionServerResponse) Tag() Tag { return Tag{ClassLobby, TypeVersionServerResponse} }

func (m *VersionServerResponse) Encode(w *Writer, _ DecodeContext) {
	w.String(m.MessageID, MessageIDLen)
	w.String(m.VersionServer, VersionServerLen)
	w.Align(4)
	w.Int32(int32(m.StatusCode))
}

func (m *VersionServerResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = r.String(MessageIDLen)
	m.VersionServer = r.String(VersionServerLen)
	r.Align(4)
	m.StatusCode = CallbackStatus(r.Int32())
}

type GetServerTimeRequest struct {
	Base
	MessageID string
}

func (m *GetServerTimeRequest) Tag() Tag { return Tag{ClassLobby, TypeGetServerTimeRequest} }

func (m *GetServerTimeRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
}

func (m *GetServerTimeRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
}

type GetServerTimeResponse struct {
	Base
	MessageID           string
	StatusCode          CallbackStatus
	GMTTime             int32
	LocalServerTimeZone int32
}

func (m *GetServerTimeResponse) Tag() Tag { return Tag{ClassLobby, TypeGetServerTimeResponse} }

func (m *GetServerTimeResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Int32(m.GMTTime)
	w.Int32(m.LocalServerTimeZone)
}

func (m *GetServerTimeResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.GMTTime = r.Int32()
	m.LocalServerTimeZone = r.Int32()
}

// MachineSignaturePost reports the console's machine signature
type MachineSignaturePost struct {
	Base
	MessageID        string
	SessionKey       string
	MachineSignature []byte
}

func (m *MachineSignaturePost) Tag() Tag { return Tag{ClassLobby, TypeMachineSignaturePost} }

func (m *MachineSignaturePost) Encode(w *Writer, _ DecodeContext) {
	w.String(m.MessageID, MessageIDLen)
	w.String(m.SessionKey, SessionKeyLen)
	w.FixedBytes(m.MachineSignature, MachineSignatureLen)
}

func (m *MachineSignaturePost) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = r.String(MessageIDLen)
	m.SessionKey = r.String(SessionKeyLen)
	m.MachineSignature = r.Bytes(MachineSignatureLen)
}

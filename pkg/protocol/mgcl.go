package protocol

// Routing server (MGCL) message types
const (
	TypeServerSessionBeginRequest              uint8 = 0x00
	TypeServerSessionBeginResponse             uint8 = 0x01
	TypeServerAuthenticationRequest            uint8 = 0x02
	TypeServerAuthenticationResponse           uint8 = 0x03
	TypeServerSetAttributesRequest             uint8 = 0x04
	TypeServerSetAttributesResponse            uint8 = 0x05
	TypeServerReport                           uint8 = 0x06
	TypeServerCreateGameWithAttributesRequest  uint8 = 0x07
	TypeServerCreateGameWithAttributesResponse uint8 = 0x08
	TypeServerJoinGameRequest                  uint8 = 0x09
	TypeServerJoinGameResponse                 uint8 = 0x0A
	TypeServerCreateGameOnMeRequest            uint8 = 0x0B
	TypeServerCreateGameOnMeResponse           uint8 = 0x0C
	TypeServerWorldReportOnMe                  uint8 = 0x0D
	TypeServerEndGameOnMeRequest               uint8 = 0x0E
	TypeServerEndGameOnMeResponse              uint8 = 0x0F
	TypeServerConnectNotification              uint8 = 0x10
	TypeServerEndGameRequest                   uint8 = 0x11
	TypeServerEndGameResponse                  uint8 = 0x12
	TypeServerSessionEndRequest                uint8 = 0x13
	TypeServerSessionEndResponse               uint8 = 0x14
	TypeServerWorldStatusRequest               uint8 = 0x15
	TypeServerWorldStatusResponse              uint8 = 0x16
)

// Game name and password widths differ on protocol version 113
const (
	MGCLGameNameLen        = 64
	MGCLGameNameLen113     = 32
	MGCLGamePasswordLen    = 32
	MGCLGamePasswordLen113 = 16
)

func init() {
	register(
		func() Message { return &ServerSessionBeginRequest{} },
		func() Message { return &ServerSessionBeginResponse{} },
		func() Message { return &ServerAuthenticationRequest{} },
		func() Message { return &ServerAuthenticationResponse{} },
		func() Message { return &ServerSetAttributesRequest{} },
		func() Message { return &ServerSetAttributesResponse{} },
		func() Message { return &ServerReport{} },
		func() Message { return &ServerCreateGameWithAttributesRequest{} },
		func() Message { return &ServerCreateGameWithAttributesResponse{} },
		func() Message { return &ServerJoinGameRequest{} },
		func() Message { return &ServerJoinGameResponse{} },
		func() Message { return &ServerCreateGameOnMeRequest{} },
		func() Message { return &ServerCreateGameOnMeResponse{} },
		func() Message { return &ServerWorldReportOnMe{} },
		func() Message { return &ServerEndGameOnMeRequest{} },
		func() Message { return &ServerEndGameOnMeResponse{} },
		func() Message { return &ServerConnectNotification{} },
		func() Message { return &ServerEndGameRequest{} },
		func() Message { return &ServerEndGameResponse{} },
		func() Message { return &ServerSessionEndRequest{} },
		func() Message { return &ServerSessionEndResponse{} },
		func() Message { return &ServerWorldStatusRequest{} },
		func() Message { return &ServerWorldStatusResponse{} },
	)
}

func writeConfirmation(w *Writer, id string, c MGCLError) {
	w.String(id, MessageIDLen)
	w.Uint8(uint8(c))
}

func readConfirmation(r *Reader) (string, MGCLError) {
	id := r.String(MessageIDLen)
	return id, MGCLError(int8(r.Uint8()))
}

// ConfirmationResponse is the shape of the bare MGCL acknowledgements
type ConfirmationResponse struct {
	MessageID    string
	Confirmation MGCLError
}

func (c *ConfirmationResponse) encode(w *Writer) {
	writeConfirmation(w, c.MessageID, c.Confirmation)
}

func (c *ConfirmationResponse) decode(r *Reader) {
	c.MessageID, c.Confirmation = readConfirmation(r)
}

// ServerSessionBeginRequest registers a routing (DME) server with the
// lobby
type ServerSessionBeginRequest struct {
	Base
	MessageID     string
	LocationID    int32
	ApplicationID int32
	ServerType    GameHostType
	ServerVersion string
	Port          int32
}

func (m *ServerSessionBeginRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSessionBeginRequest}
}

func (m *ServerSessionBeginRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.LocationID)
	w.Int32(m.ApplicationID)
	w.Int32(int32(m.ServerType))
	w.String(m.ServerVersion, ServerVersionLen)
	w.Int32(m.Port)
}

func (m *ServerSessionBeginRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.LocationID = r.Int32()
	m.ApplicationID = r.Int32()
	m.ServerType = GameHostType(r.Int32())
	m.ServerVersion = r.String(ServerVersionLen)
	m.Port = r.Int32()
}

type ServerSessionBeginResponse struct {
	Base
	MessageID    string
	Confirmation MGCLError
	ConnectInfo  NetConnectionInfo
}

func (m *ServerSessionBeginResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSessionBeginResponse}
}

func (m *ServerSessionBeginResponse) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.Confirmation)
	w.Pad(2)
	m.ConnectInfo.encode(w)
}

func (m *ServerSessionBeginResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.Confirmation = readConfirmation(r)
	r.Skip(2)
	m.ConnectInfo.decode(r)
}

type ServerAuthenticationRequest struct {
	Base
	MessageID   string
	TrustLevel  int32
	AddressList NetAddressList
}

func (m *ServerAuthenticationRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerAuthenticationRequest}
}

func (m *ServerAuthenticationRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.TrustLevel)
	m.AddressList.encode(w)
}

func (m *ServerAuthenticationRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.TrustLevel = r.Int32()
	m.AddressList.decode(r)
}

type ServerAuthenticationResponse struct {
	Base
	MessageID    string
	Confirmation MGCLError
	ConnectInfo  NetConnectionInfo
}

func (m *ServerAuthenticationResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerAuthenticationResponse}
}

func (m *ServerAuthenticationResponse) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.Confirmation)
	w.Pad(2)
	m.ConnectInfo.encode(w)
}

func (m *ServerAuthenticationResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.Confirmation = readConfirmation(r)
	r.Skip(2)
	m.ConnectInfo.decode(r)
}

// ServerSetAttributesRequest announces where a routing server listens
type ServerSetAttributesRequest struct {
	Base
	MessageID           string
	Attributes          int32
	ListenServerAddress NetAddress
}

func (m *ServerSetAttributesRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSetAttributesRequest}
}

func (m *ServerSetAttributesRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.Attributes)
	m.ListenServerAddress.encode(w)
}

func (m *ServerSetAttributesRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.Attributes = r.Int32()
	m.ListenServerAddress.decode(r)
}

type ServerSetAttributesResponse struct {
	Base
	ConfirmationResponse
}

func (m *ServerSetAttributesResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSetAttributesResponse}
}

func (m *ServerSetAttributesResponse) Encode(w *Writer, _ DecodeContext) {
	m.ConfirmationResponse.encode(w)
}

func (m *ServerSetAttributesResponse) Decode(r *Reader, _ DecodeContext) {
	m.ConfirmationResponse.decode(r)
}

// ServerReport is the periodic load report of a routing server
type ServerReport struct {
	Base
	MaxWorlds          int16
	MaxPlayersPerWorld int16
	ActiveWorldCount   int16
	TotalActivePlayers int16
	AlertLevel         int32
}

func (m *ServerReport) Tag() Tag { return Tag{ClassLobbyReport, TypeServerReport} }

func (m *ServerReport) Encode(w *Writer, _ DecodeContext) {
	w.Int16(m.MaxWorlds)
	w.Int16(m.MaxPlayersPerWorld)
	w.Int16(m.ActiveWorldCount)
	w.Int16(m.TotalActivePlayers)
	w.Int32(m.AlertLevel)
}

func (m *ServerReport) Decode(r *Reader, _ DecodeContext) {
	m.MaxWorlds = r.Int16()
	m.MaxPlayersPerWorld = r.Int16()
	m.ActiveWorldCount = r.Int16()
	m.TotalActivePlayers = r.Int16()
	m.AlertLevel = r.Int32()
}

// ServerCreateGameWithAttributesRequest asks a routing server to host a
// world. MessageID carries the lobby correlation id.
type ServerCreateGameWithAttributesRequest struct {
	Base
	MessageID      string
	MediusWorldUID uint32
	Attributes     int32
	ApplicationID  int32
	MaxClients     int32
}

func (m *ServerCreateGameWithAttributesRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerCreateGameWithAttributesRequest}
}

func (m *ServerCreateGameWithAttributesRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Uint32(m.MediusWorldUID)
	w.Int32(m.Attributes)
	w.Int32(m.ApplicationID)
	w.Int32(m.MaxClients)
}

func (m *ServerCreateGameWithAttributesRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.MediusWorldUID = r.Uint32()
	m.Attributes = r.Int32()
	m.ApplicationID = r.Int32()
	m.MaxClients = r.Int32()
}

type ServerCreateGameWithAttributesResponse struct {
	Base
	MessageID    string
	Confirmation MGCLError
	WorldID      int32
}

func (m *ServerCreateGameWithAttributesResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerCreateGameWithAttributesResponse}
}

func (m *ServerCreateGameWithAttributesResponse) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.Confirmation)
	w.Pad(2)
	w.Int32(m.WorldID)
}

func (m *ServerCreateGameWithAttributesResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.Confirmation = readConfirmation(r)
	r.Skip(2)
	m.WorldID = r.Int32()
}

// ServerJoinGameRequest asks a routing server for a player access key
type ServerJoinGameRequest struct {
	Base
	MessageID   string
	ConnectInfo NetConnectionInfo
}

func (m *ServerJoinGameRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerJoinGameRequest}
}

func (m *ServerJoinGameRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	m.ConnectInfo.encode(w)
}

func (m *ServerJoinGameRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.ConnectInfo.decode(r)
}

type ServerJoinGameResponse struct {
	Base
	MessageID      string
	Confirmation   MGCLError
	AccessKey      string
	PublicKey      []byte
	DmeClientIndex int32
}

func (m *ServerJoinGameResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerJoinGameResponse}
}

func (m *ServerJoinGameResponse) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.Confirmation)
	w.String(m.AccessKey, AccessKeyLen)
	w.FixedBytes(m.PublicKey, RSAKeyLen)
	w.Align(4)
	w.Int32(m.DmeClientIndex)
}

func (m *ServerJoinGameResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.Confirmation = readConfirmation(r)
	m.AccessKey = r.String(AccessKeyLen)
	m.PublicKey = r.Bytes(RSAKeyLen)
	r.Align(4)
	m.DmeClientIndex = r.Int32()
}

// ServerCreateGameOnMeRequest is sent by a peer-hosting routing server
// that created a world itself and wants the lobby to list it
type ServerCreateGameOnMeRequest struct {
	Base
	MessageID        string
	GameName         string
	GameStats        []byte
	GamePassword     string
	ApplicationID    int32
	MaxClients       int32
	MinClients       int32
	GameLevel        int32
	PlayerSkillLevel int32
	RulesSet         int32
	GenericFields    GenericFields
	GameHostType     GameHostType
	AddressList      NetAddressList
	WorldID          int32
	AccountID        int32
}

func (m *ServerCreateGameOnMeRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerCreateGameOnMeRequest}
}

func createGameOnMeWidths(ctx DecodeContext) (name, password int) {
	if ctx.MediusVersion == 113 {
		return MGCLGameNameLen113, MGCLGamePasswordLen113
	}
	return MGCLGameNameLen, MGCLGamePasswordLen
}

func (m *ServerCreateGameOnMeRequest) Encode(w *Writer, ctx DecodeContext) {
	nameLen, passLen := createGameOnMeWidths(ctx)
	w.String(m.MessageID, MessageIDLen)
	w.String(m.GameName, nameLen)
	w.FixedBytes(m.GameStats, GameStatsLen)
	w.String(m.GamePassword, passLen)
	w.Pad(3)
	w.Int32(m.ApplicationID)
	w.Int32(m.MaxClients)
	w.Int32(m.MinClients)
	w.Int32(m.GameLevel)
	w.Int32(m.PlayerSkillLevel)
	w.Int32(m.RulesSet)
	m.GenericFields.encode(w, len(m.GenericFields))
	w.Int32(int32(m.GameHostType))
	m.AddressList.encode(w)
	w.Int32(m.WorldID)
	w.Int32(m.AccountID)
}

func (m *ServerCreateGameOnMeRequest) Decode(r *Reader, ctx DecodeContext) {
	nameLen, passLen := createGameOnMeWidths(ctx)
	m.MessageID = r.String(MessageIDLen)
	m.GameName = r.String(nameLen)
	m.GameStats = r.Bytes(GameStatsLen)
	m.GamePassword = r.String(passLen)
	r.Skip(3)
	m.ApplicationID = r.Int32()
	m.MaxClients = r.Int32()
	m.MinClients = r.Int32()
	m.GameLevel = r.Int32()
	m.PlayerSkillLevel = r.Int32()
	m.RulesSet = r.Int32()
	m.GenericFields.decode(r, len(m.GenericFields))
	m.GameHostType = GameHostType(r.Int32())
	m.AddressList.decode(r)
	m.WorldID = r.Int32()
	m.AccountID = r.Int32()
}

type ServerCreateGameOnMeResponse struct {
	Base
	MessageID     string
	Confirmation  MGCLError
	MediusWorldID int32
}

func (m *ServerCreateGameOnMeResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerCreateGameOnMeResponse}
}

func (m *ServerCreateGameOnMeResponse) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.Confirmation)
	w.Pad(2)
	w.Int32(m.MediusWorldID)
}

func (m *ServerCreateGameOnMeResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.Confirmation = readConfirmation(r)
	r.Skip(2)
	m.MediusWorldID = r.Int32()
}

// ServerWorldReportOnMe is the world status push for a world the routing
// server created itself
type ServerWorldReportOnMe struct {
	Base
	MessageID        string
	ApplicationID    int32
	MediusWorldID    int32
	MaxClients       int32
	MinClients       int32
	ActiveClients    int32
	GameLevel        int32
	PlayerSkillLevel int32
	RulesSet         int32
	GenericFields    GenericFields
	GameHostType     GameHostType
	WorldStatus      WorldStatus
	GameName         string
	GameStats        []byte
}

func (m *ServerWorldReportOnMe) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerWorldReportOnMe}
}

func (m *ServerWorldReportOnMe) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.ApplicationID)
	w.Int32(m.MediusWorldID)
	w.Int32(m.MaxClients)
	w.Int32(m.MinClients)
	w.Int32(m.ActiveClients)
	w.Int32(m.GameLevel)
	w.Int32(m.PlayerSkillLevel)
	w.Int32(m.RulesSet)
	m.GenericFields.encode(w, len(m.GenericFields))
	w.Int32(int32(m.GameHostType))
	w.Int32(int32(m.WorldStatus))
	w.String(m.GameName, GameNameLen)
	w.FixedBytes(m.GameStats, GameStatsLen)
}

func (m *ServerWorldReportOnMe) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.ApplicationID = r.Int32()
	m.MediusWorldID = r.Int32()
	m.MaxClients = r.Int32()
	m.MinClients = r.Int32()
	m.ActiveClients = r.Int32()
	m.GameLevel = r.Int32()
	m.PlayerSkillLevel = r.Int32()
	m.RulesSet = r.Int32()
	m.GenericFields.decode(r, len(m.GenericFields))
	m.GameHostType = GameHostType(r.Int32())
	m.WorldStatus = WorldStatus(r.Int32())
	m.GameName = r.String(GameNameLen)
	m.GameStats = r.Bytes(GameStatsLen)
}

type ServerEndGameOnMeRequest struct {
	Base
	MessageID     string
	MediusWorldID int32
}

func (m *ServerEndGameOnMeRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerEndGameOnMeRequest}
}

func (m *ServerEndGameOnMeRequest) Encode(w *Writer, _ DecodeContext) {
	w.String(m.MessageID, MessageIDLen)
	w.Pad(3)
	w.Int32(m.MediusWorldID)
}

func (m *ServerEndGameOnMeRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = r.String(MessageIDLen)
	r.Skip(3)
	m.MediusWorldID = r.Int32()
}

type ServerEndGameOnMeResponse struct {
	Base
	ConfirmationResponse
}

func (m *ServerEndGameOnMeResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerEndGameOnMeResponse}
}

func (m *ServerEndGameOnMeResponse) Encode(w *Writer, _ DecodeContext) {
	m.ConfirmationResponse.encode(w)
}

func (m *ServerEndGameOnMeResponse) Decode(r *Reader, _ DecodeContext) {
	m.ConfirmationResponse.decode(r)
}

// ServerConnectNotification reports a player attaching to or leaving a
// routed world
type ServerConnectNotification struct {
	Base
	ConnectEventType ConnectEventType
	MediusWorldUID   uint32
	PlayerSessionKey string
}

func (m *ServerConnectNotification) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerConnectNotification}
}

func (m *ServerConnectNotification) Encode(w *Writer, _ DecodeContext) {
	w.Int32(int32(m.ConnectEventType))
	w.Uint32(m.MediusWorldUID)
	w.String(m.PlayerSessionKey, SessionKeyLen)
	w.Align(4)
}

func (m *ServerConnectNotification) Decode(r *Reader, _ DecodeContext) {
	m.ConnectEventType = ConnectEventType(r.Int32())
	m.MediusWorldUID = r.Uint32()
	m.PlayerSessionKey = r.String(SessionKeyLen)
	r.Align(4)
}

// ServerEndGameRequest tells a routing server to tear down a world. Brutal
// ends it without waiting for players to drain.
type ServerEndGameRequest struct {
	Base
	MessageID  string
	WorldID    int32
	BrutalFlag bool
}

func (m *ServerEndGameRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerEndGameRequest}
}

func (m *ServerEndGameRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.WorldID)
	w.Bool(m.BrutalFlag)
	w.Align(4)
}

func (m *ServerEndGameRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.WorldID = r.Int32()
	m.BrutalFlag = r.Bool()
	r.Align(4)
}

type ServerEndGameResponse struct {
	Base
	ConfirmationResponse
}

func (m *ServerEndGameResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerEndGameResponse}
}

func (m *ServerEndGameResponse) Encode(w *Writer, _ DecodeContext) {
	m.ConfirmationResponse.encode(w)
}

func (m *ServerEndGameResponse) Decode(r *Reader, _ DecodeContext) {
	m.ConfirmationResponse.decode(r)
}

type ServerSessionEndRequest struct {
	Base
	MessageID string
	ErrorCode MGCLError
}

func (m *ServerSessionEndRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSessionEndRequest}
}

func (m *ServerSessionEndRequest) Encode(w *Writer, _ DecodeContext) {
	writeConfirmation(w, m.MessageID, m.ErrorCode)
}

func (m *ServerSessionEndRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID, m.ErrorCode = readConfirmation(r)
}

type ServerSessionEndResponse struct {
	Base
	ConfirmationResponse
}

func (m *ServerSessionEndResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerSessionEndResponse}
}

func (m *ServerSessionEndResponse) Encode(w *Writer, _ DecodeContext) {
	m.ConfirmationResponse.encode(w)
}

func (m *ServerSessionEndResponse) Decode(r *Reader, _ DecodeContext) {
	m.ConfirmationResponse.decode(r)
}

type ServerWorldStatusRequest struct {
	Base
	MessageID     string
	ApplicationID int32
	WorldID       int32
}

func (m *ServerWorldStatusRequest) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerWorldStatusRequest}
}

func (m *ServerWorldStatusRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.ApplicationID)
	w.Int32(m.WorldID)
}

func (m *ServerWorldStatusRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.ApplicationID = r.Int32()
	m.WorldID = r.Int32()
}

type ServerWorldStatusResponse struct {
	Base
	MessageID     string
	ApplicationID int32
	MaxClients    int32
	ActiveClients int32
	Confirmation  MGCLError
}

func (m *ServerWorldStatusResponse) Tag() Tag {
	return Tag{ClassLobbyReport, TypeServerWorldStatusResponse}
}

func (m *ServerWorldStatusResponse) Encode(w *Writer, _ DecodeContext) {
	w.String(m.MessageID, MessageIDLen)
	w.Pad(3)
	w.Int32(m.ApplicationID)
	w.Int32(m.MaxClients)
	w.Int32(m.ActiveClients)
	w.Uint8(uint8(m.Confirmation))
}

func (m *ServerWorldStatusResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = r.String(MessageIDLen)
	r.Skip(3)
	m.ApplicationID = r.Int32()
	m.MaxClients = r.Int32()
	m.ActiveClients = r.Int32()
	m.Confirmation = MGCLError(int8(r.Uint8()))
}

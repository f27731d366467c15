package protocol

// Extended lobby message types
const (
	TypeExtendedSessionBeginRequest         uint8 = 0x01
	TypeGetUniverseInformationRequest       uint8 = 0x02
	TypeUniverseVariableInformationResponse uint8 = 0x03
	TypeUniverseStatusListResponse          uint8 = 0x04
	TypeUniverseNewsResponse                uint8 = 0x05
	TypeUniverseSvoURLResponse              uint8 = 0x06
)

// specialPatchAppID is the one title whose extended session begin carries
// an extra version field
const specialPatchAppID = 22920

// svoURLAppIDs are the titles that read the SVO url slot of the universe
// information response
var svoURLAppIDs = map[int32]struct{}{
	10421: {}, 20043: {}, 20244: {}, 20464: {}, 21093: {}, 21094: {}, 21614: {},
	21624: {}, 21834: {}, 20371: {}, 20374: {}, 21324: {}, 21514: {}, 21784: {},
	22073: {}, 22500: {}, 22920: {}, 22924: {}, 22930: {},
}

const (
	UniverseBillingLen     = 8
	UniverseBillingNameLen = 128
	UniverseExtraInfoLen   = 128
	UniverseSvoURLLen      = 128
	UniverseNewsLen        = 256
)

func init() {
	register(
		func() Message { return &ExtendedSessionBeginRequest{} },
		func() Message { return &GetUniverseInformationRequest{} },
		func() Message { return &UniverseVariableInformationResponse{} },
		func() Message { return &UniverseStatusListResponse{} },
		func() Message { return &UniverseNewsResponse{} },
		func() Message { return &UniverseSvoURLResponse{} },
	)
}

type ExtendedSessionBeginRequest struct {
	Base
	MessageID                 string
	ConnectionClass           int32
	ClientVersionMajor        int32
	ClientVersionMinor        int32
	ClientVersionSpecialPatch int32
	ClientVersionBuild        int32
}

func (m *ExtendedSessionBeginRequest) Tag() Tag {
	return Tag{ClassLobbyExt, TypeExtendedSessionBeginRequest}
}

func (m *ExtendedSessionBeginRequest) Encode(w *Writer, ctx DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(m.ConnectionClass)
	w.Int32(m.ClientVersionMajor)
	w.Int32(m.ClientVersionMinor)
	if ctx.AppID == specialPatchAppID {
		w.Int32(m.ClientVersionSpecialPatch)
	}
	w.Int32(m.ClientVersionBuild)
}

func (m *ExtendedSessionBeginRequest) Decode(r *Reader, ctx DecodeContext) {
	m.MessageID = readHeader(r)
	m.ConnectionClass = r.Int32()
	m.ClientVersionMajor = r.Int32()
	m.ClientVersionMinor = r.Int32()
	if ctx.AppID == specialPatchAppID {
		m.ClientVersionSpecialPatch = r.Int32()
	}
	m.ClientVersionBuild = r.Int32()
}

// UniverseInfoFilter selects which sections a universe response carries
type UniverseInfoFilter uint32

const (
	InfoUniverses   UniverseInfoFilter = 1 << 0
	InfoNews        UniverseInfoFilter = 1 << 1
	InfoID          UniverseInfoFilter = 1 << 2
	InfoName        UniverseInfoFilter = 1 << 3
	InfoDNS         UniverseInfoFilter = 1 << 4
	InfoDescription UniverseInfoFilter = 1 << 5
	InfoStatus      UniverseInfoFilter = 1 << 6
	InfoBilling     UniverseInfoFilter = 1 << 7
	InfoExtraInfo   UniverseInfoFilter = 1 << 8
	InfoSvoURL      UniverseInfoFilter = 1 << 9
)

func (f UniverseInfoFilter) Has(bit UniverseInfoFilter) bool { return f&bit != 0 }

type GetUniverseInformationRequest struct {
	Base
	MessageID         string
	InfoType          UniverseInfoFilter
	CharacterEncoding int32
	Language          int32
}

func (m *GetUniverseInformationRequest) Tag() Tag {
	return Tag{ClassLobbyExt, TypeGetUniverseInformationRequest}
}

func (m *GetUniverseInformationRequest) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Uint32(uint32(m.InfoType))
	w.Int32(m.CharacterEncoding)
	w.Int32(m.Language)
}

func (m *GetUniverseInformationRequest) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.InfoType = UniverseInfoFilter(r.Uint32())
	m.CharacterEncoding = r.Int32()
	m.Language = r.Int32()
}

// UniverseVariableInformationResponse describes one universe. Only the
// sections selected by InfoFilter are on the wire.
type UniverseVariableInformationResponse struct {
	Base
	MessageID           string
	StatusCode          CallbackStatus
	InfoFilter          UniverseInfoFilter
	UniverseID          uint32
	UniverseName        string
	DNS                 string
	Port                int32
	UniverseDescription string
	Status              int32
	UserCount           int32
	MaxUsers            int32
	UniverseBilling     string
	BillingSystemName   string
	ExtendedInfo        string
	SvoURL              string
	EndOfList           bool
}

func (m *UniverseVariableInformationResponse) Tag() Tag {
	return Tag{ClassLobbyExt, TypeUniverseVariableInformationResponse}
}

func (m *UniverseVariableInformationResponse) Encode(w *Writer, ctx DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.Uint32(uint32(m.InfoFilter))
	f := m.InfoFilter
	if f.Has(InfoID) {
		w.Uint32(m.UniverseID)
	}
	if f.Has(InfoName) {
		w.String(m.UniverseName, UniverseNameLen)
	}
	if f.Has(InfoDNS) {
		w.String(m.DNS, UniverseDNSLen)
		w.Int32(m.Port)
	}
	if f.Has(InfoDescription) {
		w.String(m.UniverseDescription, UniverseDescLen)
	}
	if f.Has(InfoStatus) {
		w.Int32(m.Status)
		w.Int32(m.UserCount)
		w.Int32(m.MaxUsers)
	}
	if f.Has(InfoBilling) {
		w.String(m.UniverseBilling, UniverseBillingLen)
		w.String(m.BillingSystemName, UniverseBillingNameLen)
	}
	if f.Has(InfoExtraInfo) {
		w.String(m.ExtendedInfo, UniverseExtraInfoLen)
	}
	if _, ok := svoURLAppIDs[ctx.AppID]; ok && f.Has(InfoSvoURL) {
		w.String(m.SvoURL, UniverseSvoURLLen)
	}
	w.Bool(m.EndOfList)
	w.Align(4)
}

func (m *UniverseVariableInformationResponse) Decode(r *Reader, ctx DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.InfoFilter = UniverseInfoFilter(r.Uint32())
	f := m.InfoFilter
	if f.Has(InfoID) {
		m.UniverseID = r.Uint32()
	}
	if f.Has(InfoName) {
		m.UniverseName = r.String(UniverseNameLen)
	}
	if f.Has(InfoDNS) {
		m.DNS = r.String(UniverseDNSLen)
		m.Port = r.Int32()
	}
	if f.Has(InfoDescription) {
		m.UniverseDescription = r.String(UniverseDescLen)
	}
	if f.Has(InfoStatus) {
		m.Status = r.Int32()
		m.UserCount = r.Int32()
		m.MaxUsers = r.Int32()
	}
	if f.Has(InfoBilling) {
		m.UniverseBilling = r.String(UniverseBillingLen)
		m.BillingSystemName = r.String(UniverseBillingNameLen)
	}
	if f.Has(InfoExtraInfo) {
		m.ExtendedInfo = r.String(UniverseExtraInfoLen)
	}
	if _, ok := svoURLAppIDs[ctx.AppID]; ok && f.Has(InfoSvoURL) {
		m.SvoURL = r.String(UniverseSvoURLLen)
	}
	m.EndOfList = r.Bool()
	r.Align(4)
}

// UniverseStatusListResponse is the pre-1.50 fixed layout universe entry
type UniverseStatusListResponse struct {
	Base
	MessageID           string
	StatusCode          CallbackStatus
	UniverseName        string
	DNS                 string
	Port                int32
	UniverseDescription string
	Status              int32
	UserCount           int32
	MaxUsers            int32
	EndOfList           bool
}

func (m *UniverseStatusListResponse) Tag() Tag {
	return Tag{ClassLobbyExt, TypeUniverseStatusListResponse}
}

func (m *UniverseStatusListResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.String(m.UniverseName, UniverseNameLen)
	w.String(m.DNS, UniverseDNSLen)
	w.Int32(m.Port)
	w.String(m.UniverseDescription, UniverseDescLen)
	w.Int32(m.Status)
	w.Int32(m.UserCount)
	w.Int32(m.MaxUsers)
	w.Bool(m.EndOfList)
	w.Align(4)
}

func (m *UniverseStatusListResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.UniverseName = r.String(UniverseNameLen)
	m.DNS = r.String(UniverseDNSLen)
	m.Port = r.Int32()
	m.UniverseDescription = r.String(UniverseDescLen)
	m.Status = r.Int32()
	m.UserCount = r.Int32()
	m.MaxUsers = r.Int32()
	m.EndOfList = r.Bool()
	r.Align(4)
}

type UniverseNewsResponse struct {
	Base
	MessageID  string
	StatusCode CallbackStatus
	News       string
	EndOfList  bool
}

func (m *UniverseNewsResponse) Tag() Tag { return Tag{ClassLobbyExt, TypeUniverseNewsResponse} }

func (m *UniverseNewsResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.Int32(int32(m.StatusCode))
	w.String(m.News, UniverseNewsLen)
	w.Bool(m.EndOfList)
	w.Align(4)
}

func (m *UniverseNewsResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.StatusCode = CallbackStatus(r.Int32())
	m.News = r.String(UniverseNewsLen)
	m.EndOfList = r.Bool()
	r.Align(4)
}

type UniverseSvoURLResponse struct {
	Base
	MessageID string
	URL       string
}

func (m *UniverseSvoURLResponse) Tag() Tag { return Tag{ClassLobbyExt, TypeUniverseSvoURLResponse} }

func (m *UniverseSvoURLResponse) Encode(w *Writer, _ DecodeContext) {
	writeHeader(w, m.MessageID)
	w.String(m.URL, UniverseSvoURLLen)
}

func (m *UniverseSvoURLResponse) Decode(r *Reader, _ DecodeContext) {
	m.MessageID = readHeader(r)
	m.URL = r.String(UniverseSvoURLLen)
}

// SvoURLIncluded reports whether appID's universe responses carry the SVO url
func SvoURLIncluded(appID int32) bool {
	_, ok := svoURLAppIDs[appID]
	return ok
}

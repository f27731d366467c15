package protocol

const (
	TypeDMEPing            uint8 = 0x1F
	TypeApplicationHello   uint8 = 0x01
	TypeApplicationVersion uint8 = 0x02
)

func init() {
	register(
		func() Message { return &DMEPing{} },
		func() Message { return &NetMessageHello{} },
		func() Message { return &NetMessageVersion{} },
	)
}

// DMEPing is the in-game latency probe relayed through routing servers
type DMEPing struct {
	Base
	TimeOfSend   uint32
	PingInstance uint8
	RequestEcho  bool
}

func (m *DMEPing) Tag() Tag { return Tag{ClassDME, TypeDMEPing} }

func (m *DMEPing) Encode(w *Writer, _ DecodeContext) {
	w.Uint32(m.TimeOfSend)
	w.Uint8(m.PingInstance)
	w.Bool(m.RequestEcho)
	w.Pad(2)
}

func (m *DMEPing) Decode(r *Reader, _ DecodeContext) {
	m.TimeOfSend = r.Uint32()
	m.PingInstance = r.Uint8()
	m.RequestEcho = r.Bool()
	r.Skip(2)
}

// NetMessageHello is the application-level greeting some titles send after
// connecting. It carries no payload.
type NetMessageHello struct {
	Base
}

func (m *NetMessageHello) Tag() Tag                          { return Tag{ClassApplication, TypeApplicationHello} }
func (m *NetMessageHello) Encode(w *Writer, _ DecodeContext) {}
func (m *NetMessageHello) Decode(r *Reader, _ DecodeContext) {}

// NetMessageVersion reports the title's network library version
type NetMessageVersion struct {
	Base
	Version uint32
}

func (m *NetMessageVersion) Tag() Tag                          { return Tag{ClassApplication, TypeApplicationVersion} }
func (m *NetMessageVersion) Encode(w *Writer, _ DecodeContext) { w.Uint32(m.Version) }
func (m *NetMessageVersion) Decode(r *Reader, _ DecodeContext) { m.Version = r.Uint32() }

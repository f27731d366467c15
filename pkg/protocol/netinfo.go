package protocol

// NetAddress is one reachable endpoint of a server or host
type NetAddress struct {
	AddressType NetAddressType
	Address     string
	Port        uint32
}

func (a *NetAddress) encode(w *Writer) {
	w.Int32(int32(a.AddressType))
	w.String(a.Address, NetAddressLen)
	w.Uint32(a.Port)
}

func (a *NetAddress) decode(r *Reader) {
	a.AddressType = NetAddressType(r.Int32())
	a.Address = r.String(NetAddressLen)
	a.Port = r.Uint32()
}

// NetAddressList is the fixed two-slot address list
type NetAddressList [NetAddressListCount]NetAddress

func (l *NetAddressList) encode(w *Writer) {
	for i := range l {
		l[i].encode(w)
	}
}

func (l *NetAddressList) decode(r *Reader) {
	for i := range l {
		l[i].decode(r)
	}
}

// NetConnectionInfo tells a client where to connect next and with which
// credentials
type NetConnectionInfo struct {
	Type        NetConnectionType
	AddressList NetAddressList
	WorldID     int32
	ServerKey   []byte
	SessionKey  string
	AccessKey   string
}

func (c *NetConnectionInfo) encode(w *Writer) {
	w.Int32(int32(c.Type))
	c.AddressList.encode(w)
	w.Int32(c.WorldID)
	w.FixedBytes(c.ServerKey, RSAKeyLen)
	w.String(c.SessionKey, SessionKeyLen)
	w.String(c.AccessKey, AccessKeyLen)
	w.Align(4)
}

func (c *NetConnectionInfo) decode(r *Reader) {
	c.Type = NetConnectionType(r.Int32())
	c.AddressList.decode(r)
	c.WorldID = r.Int32()
	c.ServerKey = r.Bytes(RSAKeyLen)
	c.SessionKey = r.String(SessionKeyLen)
	c.AccessKey = r.String(AccessKeyLen)
	r.Align(4)
}

// writeHeader writes the message id and pads to the next int32
func writeHeader(w *Writer, id string) {
	w.String(id, MessageIDLen)
	w.Align(4)
}

func readHeader(r *Reader) string {
	id := r.String(MessageIDLen)
	r.Align(4)
	return id
}

// writeSessionHeader writes the message id and session key, then pads
func writeSessionHeader(w *Writer, id, sessionKey string) {
	w.String(id, MessageIDLen)
	w.String(sessionKey, SessionKeyLen)
	w.Align(4)
}

func readSessionHeader(r *Reader) (id, sessionKey string) {
	id = r.String(MessageIDLen)
	sessionKey = r.String(SessionKeyLen)
	r.Align(4)
	return id, sessionKey
}

// GenericFields are the eight opaque per-title integer slots of a game
type GenericFields [8]int32

func (g *GenericFields) encode(w *Writer, n int) {
	for i := 0; i < n; i++ {
		w.Int32(g[i])
	}
}

func (g *GenericFields) decode(r *Reader, n int) {
	for i := 0; i < n; i++ {
		g[i] = r.Int32()
	}
}

package protocol

// DefaultMaxDatagram is the default UDP payload budget for packed frames
const DefaultMaxDatagram = 584

// PackDatagrams groups encoded frames into datagrams of at most maxLen
// bytes. Frames are appended greedily in order until the next one would
// overflow, then a new datagram is started. A frame larger than maxLen is
// sent alone.
func PackDatagrams(frames []*Frame, maxLen int) ([][]byte, error) {
	var (
		out []byte
		all [][]byte
	)
	for _, f := range frames {
		if len(out) > 0 && len(out)+f.Size() > maxLen {
			all = append(all, out)
			out = nil
		}
		var err error
		if out, err = AppendFrame(out, f); err != nil {
			return nil, err
		}
	}
	if len(out) > 0 {
		all = append(all, out)
	}
	return all, nil
}

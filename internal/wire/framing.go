package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// headerSize is len(type uint16 ‖ data_size uint32) on the wire (spec §6).
const headerSize = 2 + 4

// WriteFrame writes one framed message: a fixed header followed by its
// payload. It is the only function that touches the connection's write
// side for a single message, so a driver can call it directly from
// inside a lock without worrying about partial writes interleaving.
func WriteFrame(w io.Writer, t Type, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrMessageTooLarge
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(t))
	binary.BigEndian.PutUint32(hdr[2:6], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "wire: write frame header")
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "wire: write frame payload")
	}
	return nil
}

// ReadFrame blocks until one full frame has arrived on r, or returns the
// underlying read error (including io.EOF on a clean close).
func ReadFrame(r io.Reader) (Type, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	t := Type(binary.BigEndian.Uint16(hdr[0:2]))
	size := binary.BigEndian.Uint32(hdr[2:6])
	if size > MaxFrameSize {
		return 0, nil, ErrMessageTooLarge
	}
	if size == 0 {
		return t, nil, nil
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, errors.Wrap(err, "wire: read frame payload")
	}
	return t, payload, nil
}

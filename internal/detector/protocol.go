package detector

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxMessageSize bounds a single framed message.
const maxMessageSize = 32 << 20

// Operations understood by the face service.
const (
	opLoad   = "load"
	opDetect = "detect"
)

// Reply statuses from the face service.
const (
	statusOK    = "ok"
	statusError = "error"
)

type serviceRequest struct {
	Op      string  `msgpack:"op"`
	Image   []byte  `msgpack:"image,omitempty"`
	Width   int     `msgpack:"width,omitempty"`
	Height  int     `msgpack:"height,omitempty"`
	Options Options `msgpack:"options"`
}

type serviceReply struct {
	Status string      `msgpack:"status"`
	Error  string      `msgpack:"error,omitempty"`
	Faces  []Detection `msgpack:"faces"`
}

// writeMessage writes v as a 4-byte big-endian length followed by msgpack data.
func writeMessage(w io.Writer, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(data) > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(data))
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// readMessage reads one length-prefixed msgpack message into v.
func readMessage(r io.Reader, v any) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("read length: %w", err)
	}

	n := binary.BigEndian.Uint32(header)
	if n > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}

// Package ppt implements the PPT session protocol spoken by the backend: a handshake followed by
// messages made of length-prefixed chunks, each message terminated by a zero-length DATA chunk.
package ppt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ChunkType is the single type byte that ends every chunk header.
type ChunkType byte

const (
	Data      ChunkType = 'd'
	Extension ChunkType = 'x'
)

func (t ChunkType) String() string {
	switch t {
	case Data:
		return "data"
	case Extension:
		return "extension"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

const (
	HeaderSizeBytes  = 7
	HeaderSize       = HeaderSizeBytes + 1
	MaxChunkSize     = 0xFFFFFFF
	DefaultChunkSize = 65535

	defaultReadBufferSize = 10240
	maxReadBufferSize     = 16777216
)

const (
	ClientTestingConnection = "PPTCLIENT_TESTING_CONNECTION"
	ServerConnectionOK      = "PPTSERVER_CONNECTION_OK"
	ProtocolUndefined       = "PPT_PROTOCOL_UNDEFINED"

	statusExtension     = "status="
	countExtension      = "count="
	errorStatus         = "error"
	emergencyExitStatus = "exit"
	ExitStatus          = "PPT_EXIT_NOW"

	// ExitExtension is the extension payload asking the peer to end the session.
	ExitExtension = statusExtension + ExitStatus + ";"
	// ErrorExtension marks the data that follows as error output.
	ErrorExtension = statusExtension + errorStatus + ";"
)

var (
	ErrMalformedHeader = errors.New("malformed chunk header")
	ErrChunkTooLarge   = errors.New("chunk size exceeds limit")
)

var closingChunk = [HeaderSize]byte{'0', '0', '0', '0', '0', '0', '0', byte(Data)}

// Header is a decoded chunk header.
type Header struct {
	Size int
	Type ChunkType
}

// IsLast reports whether the header is the closing chunk of a message.
func (h Header) IsLast() bool {
	return h.Size == 0 && h.Type == Data
}

const hexDigits = "0123456789abcdef"

// EncodeHeader writes the 8 byte header into dst, which must hold at least HeaderSize bytes.
func EncodeHeader(dst []byte, size int, typ ChunkType) error {
	if size < 0 || size > MaxChunkSize {
		return fmt.Errorf("%w: %d bytes cannot be encoded", ErrChunkTooLarge, size)
	}
	if typ != Data && typ != Extension {
		return fmt.Errorf("%w: type %s", ErrMalformedHeader, typ)
	}
	for i := HeaderSizeBytes - 1; i >= 0; i-- {
		dst[i] = hexDigits[size&0xf]
		size >>= 4
	}
	dst[HeaderSizeBytes] = byte(typ)
	return nil
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}
	size, err := strconv.ParseUint(string(b[:HeaderSizeBytes]), 16, 32)
	if err != nil {
		return Header{}, fmt.Errorf("%w: size %q", ErrMalformedHeader, b[:HeaderSizeBytes])
	}
	typ := ChunkType(b[HeaderSizeBytes])
	if typ != Data && typ != Extension {
		return Header{}, fmt.Errorf("%w: type %s", ErrMalformedHeader, typ)
	}
	return Header{Size: int(size), Type: typ}, nil
}

func WriteHeader(w io.Writer, size int, typ ChunkType) error {
	var buf [HeaderSize]byte
	if err := EncodeHeader(buf[:], size, typ); err != nil {
		return err
	}
	_, err := w.Write(buf[:])
	return err
}

func WriteClosingChunk(w io.Writer) error {
	_, err := w.Write(closingChunk[:])
	return err
}

// ReadHeader returns io.EOF only when the stream ended cleanly before the first header byte.
func ReadHeader(r io.Reader, buf []byte) (Header, error) {
	if _, err := io.ReadFull(r, buf[:HeaderSize]); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf[:HeaderSize])
}

package ppt

import (
	"fmt"
	"github.com/Borislavv/go-ash-bes/errs"
	"io"
)

// Writer frames everything written to it into chunks of at least the configured minimum size.
// It is used both for sending commands to the backend and for relaying chunked output downstream.
type Writer struct {
	w      io.Writer
	cache  []byte
	typ    ChunkType
	closed bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, cache: make([]byte, 0, DefaultChunkSize), typ: Data}
}

func NewWriterSize(w io.Writer, minChunkSize int) (*Writer, error) {
	if minChunkSize <= 0 || minChunkSize > MaxChunkSize {
		return nil, fmt.Errorf("%w: min chunk size %d, max %d", ErrChunkTooLarge, minChunkSize, MaxChunkSize)
	}
	return &Writer{w: w, cache: make([]byte, 0, minChunkSize), typ: Data}, nil
}

// SetChunkType flushes cached bytes under the current type before switching.
func (cw *Writer) SetChunkType(typ ChunkType) error {
	if typ != Data && typ != Extension {
		return fmt.Errorf("%w: type %s", ErrMalformedHeader, typ)
	}
	if typ == cw.typ {
		return nil
	}
	if err := cw.flushCache(); err != nil {
		return err
	}
	cw.typ = typ
	return nil
}

func (cw *Writer) ChunkType() ChunkType { return cw.typ }

func (cw *Writer) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, errs.ErrStreamClosed
	}
	if len(cw.cache)+len(p) < cap(cw.cache) {
		cw.cache = append(cw.cache, p...)
		return len(p), nil
	}
	if err := cw.flushCacheWithAppend(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush emits cached bytes as one chunk and flushes the underlying writer when it buffers.
func (cw *Writer) Flush() error {
	if cw.closed {
		return errs.ErrStreamClosed
	}
	if err := cw.flushCache(); err != nil {
		return err
	}
	return flushRaw(cw.w)
}

// Finish terminates the current message with the closing chunk. The stream stays usable.
func (cw *Writer) Finish() error {
	if cw.closed {
		return errs.ErrStreamClosed
	}
	if err := cw.flushCache(); err != nil {
		return err
	}
	cw.typ = Data
	if err := WriteClosingChunk(cw.w); err != nil {
		return err
	}
	return flushRaw(cw.w)
}

// Close flushes pending data, tells the peer to exit, writes the closing chunk and closes
// the underlying stream when it is an io.Closer. A second Close returns errs.ErrStreamClosed.
func (cw *Writer) Close() error {
	if cw.closed {
		return errs.ErrStreamClosed
	}
	if err := cw.flushCache(); err != nil {
		return err
	}
	cw.closed = true

	if err := WriteHeader(cw.w, len(ExitExtension), Extension); err != nil {
		return err
	}
	if _, err := io.WriteString(cw.w, ExitExtension); err != nil {
		return err
	}
	if err := WriteClosingChunk(cw.w); err != nil {
		return err
	}
	if err := flushRaw(cw.w); err != nil {
		return err
	}
	if c, ok := cw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (cw *Writer) flushCache() error {
	if len(cw.cache) == 0 {
		return nil
	}
	if err := WriteHeader(cw.w, len(cw.cache), cw.typ); err != nil {
		return err
	}
	if _, err := cw.w.Write(cw.cache); err != nil {
		return err
	}
	cw.cache = cw.cache[:0]
	return nil
}

// flushCacheWithAppend emits the cache and p together, split at MaxChunkSize.
func (cw *Writer) flushCacheWithAppend(p []byte) error {
	for len(p) > 0 || len(cw.cache) > 0 {
		take := min(MaxChunkSize-len(cw.cache), len(p))
		if err := WriteHeader(cw.w, len(cw.cache)+take, cw.typ); err != nil {
			return err
		}
		if len(cw.cache) > 0 {
			if _, err := cw.w.Write(cw.cache); err != nil {
				return err
			}
			cw.cache = cw.cache[:0]
		}
		if _, err := cw.w.Write(p[:take]); err != nil {
			return err
		}
		p = p[take:]
	}
	return nil
}

func flushRaw(w io.Writer) error {
	if f, ok := w.(errFlusher); ok {
		return f.Flush()
	}
	return nil
}

package ppt

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Reader decodes chunked messages from the backend.
// It is not safe for concurrent use; the owning Transport serializes access.
type Reader struct {
	r       io.Reader
	logger  *slog.Logger
	hdr     [HeaderSize]byte
	buf     []byte
	pending *Header
	closed  bool
}

func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	return &Reader{r: r, logger: logger, buf: make([]byte, defaultReadBufferSize)}
}

// Closed reports whether the peer ended the session through an exit extension.
func (r *Reader) Closed() bool { return r.closed }

// BufferSize is the current capacity of the chunk read buffer.
func (r *Reader) BufferSize() int { return len(r.buf) }

// ReadMessage copies one message into out, switching to errOut once the peer announced error output.
// ok is false when error output was announced. A nil writer discards.
// Any EOF before the closing chunk is reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadMessage(out, errOut io.Writer, autoFlush bool) (ok bool, n int64, err error) {
	if r.closed {
		return false, 0, fmt.Errorf("read from a closed session: %w", io.ErrClosedPipe)
	}
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	isErr := false
	for !r.closed {
		var h Header
		if r.pending != nil {
			h, r.pending = *r.pending, nil
		} else if h, err = r.readHeader(); err != nil {
			return false, n, err
		}
		if h.IsLast() {
			break
		}

		payload, perr := r.readPayload(h.Size)
		if perr != nil {
			return false, n, perr
		}

		switch h.Type {
		case Data:
			dst := out
			if isErr {
				dst = errOut
			}
			if _, err = dst.Write(payload); err != nil {
				return false, n, fmt.Errorf("write chunk payload: %w", err)
			}
			if autoFlush {
				flush(dst)
			}
			n += int64(len(payload))
		case Extension:
			extErr, xerr := r.processExtension(string(payload))
			if xerr != nil {
				return false, n, xerr
			}
			isErr = isErr || extErr
		}
	}

	r.logger.Debug("ppt message read", "bytes", n, "error_output", isErr)
	return !isErr, n, nil
}

func (r *Reader) readHeader() (Header, error) {
	h, err := ReadHeader(r.r, r.hdr[:])
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return Header{}, fmt.Errorf("read chunk header: %w", err)
	}
	return h, nil
}

func (r *Reader) readPayload(size int) ([]byte, error) {
	if size > len(r.buf) {
		if size > maxReadBufferSize {
			return nil, fmt.Errorf("%w: %d bytes, max %d", ErrChunkTooLarge, size, maxReadBufferSize)
		}
		r.logger.Debug("growing ppt read buffer", "bytes", size)
		r.buf = make([]byte, size)
	}
	if _, err := io.ReadFull(r.r, r.buf[:size]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read chunk payload of %d bytes: %w", size, err)
	}
	return r.buf[:size], nil
}

// processExtension reports whether the payload announced error output.
func (r *Reader) processExtension(payload string) (isErr bool, err error) {
	for _, ext := range strings.Split(payload, ";") {
		if ext == "" {
			continue
		}
		if strings.HasPrefix(ext, countExtension) {
			r.logger.Debug("ppt count extension", "count", ext[len(countExtension):])
			continue
		}
		if !strings.HasPrefix(ext, statusExtension) {
			r.logger.Debug("ppt extension", "value", ext)
			continue
		}
		status := ext[strings.IndexByte(ext, '=')+1:]
		switch {
		case strings.EqualFold(status, errorStatus):
			isErr = true
		case strings.EqualFold(status, emergencyExitStatus):
			r.logger.Error("ppt peer requested an emergency exit, closing session")
			r.closed = true
			return isErr, nil
		case strings.EqualFold(status, ExitStatus):
			h, herr := ReadHeader(r.r, r.hdr[:])
			if herr == io.EOF || (herr == nil && h.IsLast()) {
				r.closed = true
				r.logger.Debug("ppt session closed by peer")
				return isErr, nil
			}
			if herr != nil {
				return isErr, fmt.Errorf("read chunk header after exit: %w", herr)
			}
			r.pending = &h
		default:
			r.logger.Debug("ppt status extension", "value", ext)
		}
	}
	return isErr, nil
}

type errFlusher interface{ Flush() error }
type flusher interface{ Flush() }

func flush(w io.Writer) {
	switch f := w.(type) {
	case errFlusher:
		_ = f.Flush()
	case flusher:
		f.Flush()
	}
}

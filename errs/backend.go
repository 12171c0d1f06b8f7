package errs

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Category is the machine readable error type the backend puts into <BESError><Type>.
type Category int

const (
	CategoryInvalid       Category = -1
	CategoryInternal      Category = 1
	CategoryInternalFatal Category = 2
	CategorySyntax        Category = 3
	CategoryForbidden     Category = 4
	CategoryNotFound      Category = 5
	CategoryTimeout       Category = 6
)

func (c Category) String() string {
	switch c {
	case CategoryInternal:
		return "internal"
	case CategoryInternalFatal:
		return "internal-fatal"
	case CategorySyntax:
		return "syntax"
	case CategoryForbidden:
		return "forbidden"
	case CategoryNotFound:
		return "not-found"
	case CategoryTimeout:
		return "timeout"
	default:
		return "invalid"
	}
}

func (c Category) HTTPStatus() int {
	switch c {
	case CategorySyntax:
		return http.StatusBadRequest
	case CategoryForbidden:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (c Category) valid() bool {
	return c >= CategoryInternal && c <= CategoryTimeout
}

type Location struct {
	File string `xml:"File"`
	Line int    `xml:"Line"`
}

// BackendError is an error document delivered by the backend as a proper framed response.
type BackendError struct {
	Category      Category  `xml:"Type"`
	Message       string    `xml:"Message"`
	Administrator string    `xml:"Administrator"`
	Location      *Location `xml:"Location"`
}

func (e *BackendError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "no message"
	}
	if e.Location != nil && e.Location.File != "" {
		return fmt.Sprintf("backend %s error: %s (%s:%d)", e.Category, msg, e.Location.File, e.Location.Line)
	}
	return fmt.Sprintf("backend %s error: %s", e.Category, msg)
}

func (e *BackendError) HTTPStatus() int {
	return e.Category.HTTPStatus()
}

// ParseBackendError extracts the first BESError element from data regardless of the enclosing
// document or namespace. Output without such an element becomes an internal error carrying the raw text.
func ParseBackendError(data []byte) *BackendError {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if err != io.EOF {
				return rawBackendError(data)
			}
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "BESError" {
			continue
		}
		be := &BackendError{}
		if err = dec.DecodeElement(be, &start); err != nil {
			return rawBackendError(data)
		}
		be.Message = strings.TrimSpace(be.Message)
		be.Administrator = strings.TrimSpace(be.Administrator)
		if !be.Category.valid() {
			be.Category = CategoryInvalid
		}
		return be
	}
	return rawBackendError(data)
}

func rawBackendError(data []byte) *BackendError {
	return &BackendError{Category: CategoryInternal, Message: strings.TrimSpace(string(data))}
}

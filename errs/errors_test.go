package errs

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

// TestKindOf_WrappedChain finds the classification through fmt wrapping.
func TestKindOf_WrappedChain(t *testing.T) {
	err := fmt.Errorf("execute: %w", Protocol("get dds", "localhost:10022", 4, io.ErrUnexpectedEOF))

	require.Equal(t, KindProtocol, KindOf(err))
	require.True(t, IsProtocol(err))
	require.False(t, IsConnection(err))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Contains(t, err.Error(), "client executed 4 commands")
}

// TestKindOf_Plain returns unknown for unclassified errors.
func TestKindOf_Plain(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

// TestConfiguration_NoTarget keeps the sentinel reachable.
func TestConfiguration_NoTarget(t *testing.T) {
	err := Configuration("resolve /c/x", ErrNoTarget)

	require.True(t, IsConfiguration(err))
	require.ErrorIs(t, err, ErrNoTarget)
	require.NotContains(t, err.Error(), "commands")
}

// TestHTTPStatus_PoolFaults maps pool-layer faults to 5xx codes.
func TestHTTPStatus_PoolFaults(t *testing.T) {
	require.Equal(t, http.StatusOK, HTTPStatus(nil))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(Configuration("x", ErrNoTarget)))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Connection("dial", "h:1", io.EOF)))
	require.Equal(t, http.StatusBadGateway, HTTPStatus(Protocol("x", "h:1", 0, io.EOF)))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

// TestHTTPStatus_BackendCategories maps every category deterministically.
func TestHTTPStatus_BackendCategories(t *testing.T) {
	cases := map[Category]int{
		CategoryInternal:      http.StatusInternalServerError,
		CategoryInternalFatal: http.StatusInternalServerError,
		CategorySyntax:        http.StatusBadRequest,
		CategoryForbidden:     http.StatusForbidden,
		CategoryNotFound:      http.StatusNotFound,
		CategoryTimeout:       http.StatusGatewayTimeout,
		CategoryInvalid:       http.StatusInternalServerError,
	}
	for cat, status := range cases {
		err := fmt.Errorf("wrapped: %w", &BackendError{Category: cat, Message: "m"})
		require.Equal(t, status, HTTPStatus(err), cat.String())
		require.Equal(t, KindBackend, KindOf(err))
	}
}

// TestParseBackendError_Namespaced parses an error nested in a namespaced response.
func TestParseBackendError_Namespaced(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<response xmlns="http://xml.opendap.org/ns/bes/1.0#" reqID="7">
  <BESError>
    <Type>5</Type>
    <Message> Failed to locate /data/missing.nc </Message>
    <Administrator>admin@example.org</Administrator>
    <Location><File>BESContainerStorageVolatile.cc</File><Line>123</Line></Location>
  </BESError>
</response>`)

	be := ParseBackendError(doc)
	require.Equal(t, CategoryNotFound, be.Category)
	require.Equal(t, "Failed to locate /data/missing.nc", be.Message)
	require.Equal(t, "admin@example.org", be.Administrator)
	require.NotNil(t, be.Location)
	require.Equal(t, 123, be.Location.Line)
	require.Equal(t, http.StatusNotFound, be.HTTPStatus())
	require.Contains(t, be.Error(), "not-found")
}

// TestParseBackendError_UnknownType normalizes out of range categories.
func TestParseBackendError_UnknownType(t *testing.T) {
	be := ParseBackendError([]byte(`<BESError><Type>42</Type><Message>odd</Message></BESError>`))
	require.Equal(t, CategoryInvalid, be.Category)
	require.Equal(t, "odd", be.Message)
}

// TestParseBackendError_NotXML falls back to an internal error with the raw text.
func TestParseBackendError_NotXML(t *testing.T) {
	be := ParseBackendError([]byte("  segmentation fault \n"))
	require.Equal(t, CategoryInternal, be.Category)
	require.Equal(t, "segmentation fault", be.Message)
}

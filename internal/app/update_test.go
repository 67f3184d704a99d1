package app

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releaseDoer answers every request with a canned release document.
type releaseDoer struct {
	status int
	body   string
}

func (d releaseDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
	}, nil
}

func TestCheckUpdateNewerRelease(t *testing.T) {
	var out strings.Builder
	err := checkUpdate(context.Background(), releaseDoer{
		status: http.StatusOK,
		body:   `{"tag_name":"v99.0.0"}`,
	}, &out, true)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "newer release")
	assert.Contains(t, out.String(), "99.0.0")
}

func TestCheckUpdateUpToDate(t *testing.T) {
	var out strings.Builder
	err := checkUpdate(context.Background(), releaseDoer{
		status: http.StatusOK,
		body:   `{"tag_name":"v` + Version + `"}`,
	}, &out, true)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "up to date")
}

func TestCheckUpdateHTTPError(t *testing.T) {
	var out strings.Builder
	err := checkUpdate(context.Background(), releaseDoer{
		status: http.StatusForbidden,
		body:   `{}`,
	}, &out, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestBeijingClock(t *testing.T) {
	now := Now()
	_, offset := now.Zone()
	assert.Equal(t, 8*60*60, offset)
}

package forum

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"punishment-bridge/model"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTransport func(*http.Request) (*http.Response, error)

func (f stubTransport) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newStubMessenger(t *testing.T, fn stubTransport) *Messenger {
	t.Helper()
	session, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	session.Client = &http.Client{Transport: fn}
	return NewMessenger(session, model.DiscordConfig{}, zap.NewNop())
}

func TestGetThreadLive(t *testing.T) {
	m := newStubMessenger(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"id":"555","name":"👤 Steve","type":11,"thread_metadata":{"archived":false}}`), nil
	})

	th, ok := m.GetThread("555")
	require.True(t, ok)
	assert.Equal(t, "555", th.ID)
	assert.Equal(t, "👤 Steve", th.Name)
}

func TestGetThreadArchived(t *testing.T) {
	m := newStubMessenger(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"id":"555","name":"👤 Steve","type":11,"thread_metadata":{"archived":true}}`), nil
	})

	_, ok := m.GetThread("555")
	assert.False(t, ok)
}

func TestGetThreadRejectsNonThreadChannel(t *testing.T) {
	m := newStubMessenger(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"id":"555","name":"general","type":0}`), nil
	})

	_, ok := m.GetThread("555")
	assert.False(t, ok)
}

func TestGetThreadDeleted(t *testing.T) {
	m := newStubMessenger(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Unknown Channel","code":10003}`), nil
	})

	_, ok := m.GetThread("555")
	assert.False(t, ok)
}

package rest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crowdigit/oh-no-bot/internal/pkg/config"
	"github.com/crowdigit/oh-no-bot/internal/pkg/transport"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, transport.HostSet, func()) {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	est, err := transport.NewEstablisher(transport.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	require.NoError(t, err)
	cfg := &config.Config{
		Token:           "t0ken",
		Hostname:        "127.0.0.1",
		GatewayOption:   "/?v=10&encoding=json",
		HTTPAPILocation: "/api/v10",
		GatewayVersion:  10,
		HTTPAPIVersion:  10,
	}
	client, err := NewClient(WithConfig(cfg), WithEstablisher(est))
	require.NoError(t, err)
	hosts := transport.HostSet{
		Hostname: "127.0.0.1",
		Addrs:    []string{ts.Listener.Addr().String()},
	}
	return client, hosts, ts.Close
}

func TestGetGatewayBot(t *testing.T) {
	var authorization string
	client, hosts, teardown := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v10/gateway/bot", r.URL.Path)
		authorization = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"url": "wss://gateway.example.test",
			"shards": 2,
			"session_start_limit": {"total": 1000, "remaining": 997, "reset_after": 12345}
		}`)
	}))
	defer teardown()

	result, err := client.GetGatewayBot(context.Background(), hosts)
	require.NoError(t, err)
	require.Equal(t, "Bot t0ken", authorization)
	require.Equal(t, "wss://gateway.example.test", result.URL)
	require.Equal(t, 2, result.Shards)
	require.Equal(t, SessionStartLimit{Total: 1000, Remaining: 997, ResetAfter: 12345}, result.SessionStartLimit)
}

func TestSendMessage(t *testing.T) {
	var body []byte
	client, hosts, teardown := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v10/channels/42/messages", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "1"}`)
	}))
	defer teardown()

	require.NoError(t, client.SendMessage(context.Background(), hosts, "42", "hello there"))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, "hello there", decoded["content"])
}

// Action endpoints answer 204 with no body; that is success, not a parse error.
func TestDeleteMessageNoContent(t *testing.T) {
	client, hosts, teardown := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v10/channels/42/messages/7", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer teardown()

	require.NoError(t, client.DeleteMessage(context.Background(), hosts, "42", "7"))
}

func TestKick(t *testing.T) {
	client, hosts, teardown := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v10/guilds/9/members/13", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer teardown()

	require.NoError(t, client.Kick(context.Background(), hosts, "9", "13"))
}

func TestUnparseableBody(t *testing.T) {
	client, hosts, teardown := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	}))
	defer teardown()

	_, err := client.GetGatewayBot(context.Background(), hosts)
	require.ErrorIs(t, err, ErrParse)
}

func TestConnectFailureSurfacesTransportError(t *testing.T) {
	est, err := transport.NewEstablisher()
	require.NoError(t, err)
	cfg := &config.Config{
		Token:           "t0ken",
		Hostname:        "127.0.0.1",
		GatewayOption:   "/",
		HTTPAPILocation: "/api/v10",
		GatewayVersion:  10,
		HTTPAPIVersion:  10,
	}
	client, err := NewClient(WithConfig(cfg), WithEstablisher(est))
	require.NoError(t, err)

	_, err = client.GetGatewayBot(context.Background(), transport.HostSet{
		Hostname: "127.0.0.1",
		Addrs:    []string{"127.0.0.1:1"},
	})
	require.ErrorIs(t, err, transport.ErrConnection)
}

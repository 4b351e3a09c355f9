package remote

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arvostack/actorcore/actor"
	"github.com/stretchr/testify/require"
)

type doubler struct{}

func (doubler) Receive(ctx actor.Context) {
	n, ok := ctx.Message().(int)
	if !ok {
		return
	}
	ctx.TryReply(n * 2)
}

func newServedReference(t *testing.T) (*actor.Reference, *httptest.Server) {
	d := actor.NewDispatcher()
	t.Cleanup(d.Close)

	ref := actor.NewReference(func() actor.Instance { return doubler{} }, actor.MailboxConfig{}, d)
	require.NoError(t, ref.Start())
	t.Cleanup(ref.Stop)

	srv := httptest.NewServer(Serve(ref, time.Second))
	t.Cleanup(srv.Close)
	return ref, srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestRemoteAskRoundTrips(t *testing.T) {
	_, srv := newServedReference(t)

	client, err := Dial(wsURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	future, err := client.Ask(21, time.Second)
	require.NoError(t, err)

	value, err := future.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, value)
}

func TestRemoteAskTimesOutWhenPeerNeverReplies(t *testing.T) {
	silent := httptest.NewServer(silentUpgradeHandler())
	defer silent.Close()

	client, err := Dial(wsURL(silent.URL))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	future, err := client.Ask(1, 50*time.Millisecond)
	require.NoError(t, err)

	_, waitErr := future.Wait()
	require.ErrorIs(t, waitErr, actor.ErrTimedOut)
}

// silentUpgradeHandler accepts a websocket upgrade and reads frames, never
// replying, so an ask against it can only resolve by its own timeout.
func silentUpgradeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func TestRemoteLinkUnlinkUnsupported(t *testing.T) {
	_, srv := newServedReference(t)

	client, err := Dial(wsURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, client.Start())
	defer client.Stop()

	require.ErrorIs(t, client.Link(nil), actor.ErrNotSupportedRemotely)
	require.ErrorIs(t, client.Unlink(nil), actor.ErrNotSupportedRemotely)

	_, sizeErr := client.MailboxSize()
	require.ErrorIs(t, sizeErr, actor.ErrNotSupportedRemotely)
}

package dashboard

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/store/memstore"
)

type received struct {
	Type  MessageType       `json:"type"`
	Items []json.RawMessage `json:"items"`
	Error string            `json:"error"`
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func startServer(t *testing.T) (*Server, *itemsync.Syncer, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	s := itemsync.New(ms, itemsync.WithLogger(quietLogger()), itemsync.WithTimeout(time.Second))
	s.Start()

	select {
	case <-s.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("syncer never became ready")
	}

	srv := NewServer(s, Config{Addr: "127.0.0.1:0", Logger: quietLogger()})
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		assert.NoError(t, srv.Stop())
		s.Stop()
		s.Wait()
		_ = ms.Close()
	})
	return srv, s, ms
}

func dial(t *testing.T, ctx context.Context, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func snapshotOf(n int) func(received) bool {
	return func(m received) bool { return m.Type == MessageTypeSnapshot && len(m.Items) == n }
}

func isError(m received) bool { return m.Type == MessageTypeError }

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
}

func TestHealth(t *testing.T) {
	srv, _, _ := startServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["clients"])
}

func TestSnapshotOnConnect(t *testing.T) {
	srv, s, ms := startServer(t)
	ms.Put("01A", []byte(`{"title":"Buy milk","description":"2 liters"}`))
	require.Eventually(t, func() bool { return len(s.Snapshot()) == 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)

	msg := readUntil(t, ctx, conn, snapshotOf(1))
	assert.JSONEq(t, `{"id":"01A","title":"Buy milk","description":"2 liters"}`, string(msg.Items[0]))

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLateClientStartsFromLatestBroadcast(t *testing.T) {
	srv, _, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)
	readUntil(t, ctx, conn, snapshotOf(0))

	send(t, ctx, conn, `{"op":"add","title":"Buy milk","description":"2 liters"}`)
	readUntil(t, ctx, conn, snapshotOf(1))

	late := dial(t, ctx, srv)
	_, data, err := late.Read(ctx)
	require.NoError(t, err)
	var first received
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, MessageTypeSnapshot, first.Type)
	assert.Len(t, first.Items, 1)
}

func TestMutationsBroadcastSnapshots(t *testing.T) {
	srv, s, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)
	other := dial(t, ctx, srv)
	readUntil(t, ctx, conn, snapshotOf(0))

	send(t, ctx, conn, `{"op":"add","title":"Buy milk","description":"2 liters"}`)
	readUntil(t, ctx, conn, snapshotOf(1))
	readUntil(t, ctx, other, snapshotOf(1))

	id := s.Snapshot()[0].ID
	send(t, ctx, conn, `{"op":"update","item":{"id":"`+id+`","title":"Buy milk","description":"3 liters"}}`)
	require.Eventually(t, func() bool {
		items := s.Snapshot()
		return len(items) == 1 && items[0].Description == "3 liters"
	}, 3*time.Second, 10*time.Millisecond)

	send(t, ctx, conn, `{"op":"delete","id":"`+id+`"}`)
	readUntil(t, ctx, other, snapshotOf(0))
}

func TestInvalidMessages(t *testing.T) {
	srv, _, ms := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, srv)

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"malformed", `not json`, "INVALID_INPUT"},
		{"missing op", `{}`, "op is required"},
		{"unknown op", `{"op":"toggle"}`, "unknown op toggle"},
		{"add without title", `{"op":"add","description":"x"}`, "title and description are required"},
		{"add without description", `{"op":"add","title":"T"}`, "title and description are required"},
		{"add with blank description", `{"op":"add","title":"T","description":"  "}`, "INVALID_INPUT"},
		{"delete without id", `{"op":"delete"}`, "MISSING_ID"},
		{"update without item", `{"op":"update"}`, "item is required"},
		{"update without id", `{"op":"update","item":{"title":"x"}}`, "MISSING_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, ctx, conn, tt.msg)
			msg := readUntil(t, ctx, conn, isError)
			assert.Contains(t, msg.Error, tt.want)
		})
	}
	assert.Equal(t, 0, ms.Len())
}

func TestStopDisconnectsClients(t *testing.T) {
	ms := memstore.New()
	defer ms.Close()
	s := itemsync.New(ms, itemsync.WithLogger(quietLogger()))
	s.Start()
	defer s.Stop()

	srv := NewServer(s, Config{Addr: "127.0.0.1:0", Logger: quietLogger()})
	require.NoError(t, srv.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	readUntil(t, ctx, conn, snapshotOf(0))

	require.NoError(t, srv.Stop())
	assert.Equal(t, 0, srv.ClientCount())

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}
}

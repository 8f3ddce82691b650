package httpadapter_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/PabloGalante/singlechat/internal/adapters/http"
	"github.com/PabloGalante/singlechat/internal/domain"
)

type frame struct {
	Type     string `json:"type"`
	Error    string `json:"error"`
	Stage    string `json:"stage"`
	Messages []struct {
		Role    string  `json:"role"`
		Content string  `json:"content"`
		Parent  *string `json:"parent"`
		ID      string  `json:"id"`
	} `json:"messages"`
}

func dial(t *testing.T, conv *fakeConversation, opts httpadapter.Options) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(httpadapter.NewServer(conv, opts))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestWebSocketSendMessage(t *testing.T) {
	conv := &fakeConversation{}
	conn := dial(t, conv, httpadapter.Options{})

	send(t, conn, `{"type":"send_message","content":"hello"}`)
	f := read(t, conn)

	assert.Equal(t, "message_update", f.Type)
	require.Len(t, f.Messages, 2)
	assert.Equal(t, "user", f.Messages[0].Role)
	assert.Equal(t, "hello", f.Messages[0].Content)
	assert.Nil(t, f.Messages[0].Parent)
	assert.Equal(t, "assistant", f.Messages[1].Role)
	require.NotNil(t, f.Messages[1].Parent)
	assert.Equal(t, f.Messages[0].ID, *f.Messages[1].Parent)
}

func TestWebSocketGetMessages(t *testing.T) {
	conv := &fakeConversation{}
	conn := dial(t, conv, httpadapter.Options{})

	send(t, conn, `{"type":"send_message","content":"one"}`)
	read(t, conn)
	send(t, conn, `{"type":"send_message","content":"two"}`)
	read(t, conn)

	send(t, conn, `{"type":"get_messages"}`)
	f := read(t, conn)
	assert.Equal(t, "message_update", f.Type)
	require.Len(t, f.Messages, 4)
	assert.Equal(t, "one", f.Messages[0].Content)
	assert.Equal(t, "re: two", f.Messages[3].Content)
}

func TestWebSocketIgnoresUnknownFrames(t *testing.T) {
	conv := &fakeConversation{}
	conn := dial(t, conv, httpadapter.Options{})

	send(t, conn, `{"type":"delete_everything"}`)
	send(t, conn, `not json`)
	send(t, conn, `{"type":"send_message"}`)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	send(t, conn, `{"type":"get_messages"}`)

	f := read(t, conn)
	assert.Equal(t, "message_update", f.Type)
	assert.Empty(t, f.Messages)
	assert.Empty(t, conv.sent)
}

func TestWebSocketErrorFrame(t *testing.T) {
	conv := &fakeConversation{
		sendErr: &domain.TurnError{Stage: domain.StageCompletion, Err: domain.ErrTransportFailure},
	}
	conn := dial(t, conv, httpadapter.Options{})

	send(t, conn, `{"type":"send_message","content":"hello"}`)
	f := read(t, conn)

	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "completion", f.Stage)
	assert.NotEmpty(t, f.Error)
	assert.NotContains(t, f.Error, "transport")
}

func TestWebSocketSilentFailures(t *testing.T) {
	conv := &fakeConversation{
		sendErr: &domain.TurnError{Stage: domain.StagePersistUser, Err: domain.ErrUnavailable},
	}
	conn := dial(t, conv, httpadapter.Options{SilentFailures: true})

	send(t, conn, `{"type":"send_message","content":"hello"}`)
	send(t, conn, `{"type":"get_messages"}`)

	f := read(t, conn)
	assert.Equal(t, "message_update", f.Type, "the failed send produced no frame")
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want httpadapter.Command
	}{
		{name: "send", raw: `{"type":"send_message","content":"hi"}`, want: httpadapter.SendMessage{Content: "hi"}},
		{name: "send empty content", raw: `{"type":"send_message","content":""}`, want: httpadapter.SendMessage{}},
		{name: "send without content", raw: `{"type":"send_message"}`, want: httpadapter.Unknown{Type: "send_message"}},
		{name: "get", raw: `{"type":"get_messages"}`, want: httpadapter.GetMessages{}},
		{name: "unknown", raw: `{"type":"ping"}`, want: httpadapter.Unknown{Type: "ping"}},
		{name: "no type", raw: `{}`, want: httpadapter.Unknown{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpadapter.DecodeCommand([]byte(tt.raw)))
		})
	}

	bad, ok := httpadapter.DecodeCommand([]byte(`{`)).(httpadapter.Unknown)
	require.True(t, ok)
	assert.Error(t, bad.Err)
}

func TestWebSocketRejectsOversizedFrame(t *testing.T) {
	conv := &fakeConversation{}
	conn := dial(t, conv, httpadapter.Options{})

	content := strings.Repeat("a", 2<<20)
	// The server may drop the connection before the whole frame is written.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_message","content":"`+content+`"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, websocket.CloseMessageTooBig, closeErr.Code)
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	assert.Empty(t, conv.sent)
}

func TestWebSocketAcceptsFrameUnderLimit(t *testing.T) {
	conv := &fakeConversation{}
	conn := dial(t, conv, httpadapter.Options{})

	content := strings.Repeat("a", 512<<10)
	send(t, conn, `{"type":"send_message","content":"`+content+`"}`)
	f := read(t, conn)

	assert.Equal(t, "message_update", f.Type)
	require.Len(t, f.Messages, 2)
	assert.Equal(t, content, f.Messages[0].Content)
}

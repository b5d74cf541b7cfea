package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
	"github.com/ignatzorin/civic-intake/internal/usecase/intake"
	"github.com/ignatzorin/civic-intake/internal/whatsapp"
)

type fakeTurns struct {
	mu       sync.Mutex
	received []entity.InboundMessage
	ctxErrs  []error
	delay    time.Duration
	reply    string
	err      error
}

func (f *fakeTurns) Execute(ctx context.Context, msg entity.InboundMessage) (*intake.TurnOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.received = append(f.received, msg)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &intake.TurnOutput{Reply: f.reply}, nil
}

type sentText struct {
	to   string
	text string
}

type fakeMessenger struct {
	mu          sync.Mutex
	media       map[string][]byte
	downloadErr error
	sent        []sentText
}

func (f *fakeMessenger) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if f.downloadErr != nil {
		return nil, "", f.downloadErr
	}
	return f.media[mediaID], "image/jpeg", nil
}

func (f *fakeMessenger) SendText(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{to: to, text: text})
	return nil
}

func newTestWebhookRouter(turns *fakeTurns, messenger *fakeMessenger, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := NewWebhookHandler(context.Background(), turns, messenger, WebhookConfig{
		VerifyToken: "verify-me",
		AppSecret:   secret,
	}, log)
	// в тестах сообщения обрабатываются синхронно
	h.spawn = func(ctx context.Context, fn func(context.Context)) { fn(ctx) }

	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func postWebhook(r *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(whatsapp.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const textWebhook = `{"entry":[{"changes":[{"value":{"messages":[
	{"from":"15550001111","id":"m1","type":"text","text":{"body":"pothole on Main St"}}
]}}]}]}`

func TestWebhookHandler_Verify(t *testing.T) {
	r := newTestWebhookRouter(&fakeTurns{}, &fakeMessenger{}, "")

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid", "?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", http.StatusOK, "12345"},
		{"without mode", "?hub.verify_token=verify-me&hub.challenge=42", http.StatusOK, "42"},
		{"wrong token", "?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
		{"wrong mode", "?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/webhook"+tt.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestWebhookHandler_Verify_EmptyTokenRejectsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(context.Background(), &fakeTurns{}, &fakeMessenger{}, WebhookConfig{}, logrus.New())
	r := gin.New()
	r.GET("/webhook", h.Verify)

	req, _ := http.NewRequest(http.MethodGet, "/webhook?hub.verify_token=&hub.challenge=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookHandler_Receive_RepliesWithTurnOutput(t *testing.T) {
	turns := &fakeTurns{reply: "Thanks! Where did this happen?"}
	messenger := &fakeMessenger{}
	r := newTestWebhookRouter(turns, messenger, "")

	w := postWebhook(r, textWebhook, "")

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, turns.received, 1)
	assert.Equal(t, entity.NewTextMessage("15550001111", "pothole on Main St"), turns.received[0])
	assert.Equal(t, []sentText{{to: "15550001111", text: "Thanks! Where did this happen?"}}, messenger.sent)
}

func TestWebhookHandler_Receive_Signature(t *testing.T) {
	turns := &fakeTurns{reply: "ok"}
	r := newTestWebhookRouter(turns, &fakeMessenger{}, "app-secret")

	w := postWebhook(r, textWebhook, whatsapp.Sign([]byte(textWebhook), "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, turns.received)

	w = postWebhook(r, textWebhook, whatsapp.Sign([]byte(textWebhook), "app-secret"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, turns.received, 1)
}

func TestWebhookHandler_Receive_BadJSON(t *testing.T) {
	r := newTestWebhookRouter(&fakeTurns{}, &fakeMessenger{}, "")

	w := postWebhook(r, "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_Receive_StatusOnlyIsIgnored(t *testing.T) {
	turns := &fakeTurns{}
	r := newTestWebhookRouter(turns, &fakeMessenger{}, "")

	w := postWebhook(r, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, turns.received)
}

func TestWebhookHandler_Receive_DownloadsMedia(t *testing.T) {
	turns := &fakeTurns{reply: "Report submitted"}
	messenger := &fakeMessenger{media: map[string][]byte{"img-1": {0xFF, 0xD8, 0xFF}}}
	r := newTestWebhookRouter(turns, messenger, "")

	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"15550001111","id":"m2","type":"image","image":{"id":"img-1","mime_type":"image/jpeg"}}
	]}}]}]}`
	postWebhook(r, body, "")

	require.Len(t, turns.received, 1)
	assert.Equal(t, entity.MessageKindImage, turns.received[0].Kind)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, turns.received[0].Media)
}

func TestWebhookHandler_Receive_DownloadFailureStillRunsTurn(t *testing.T) {
	turns := &fakeTurns{reply: "Sorry, I couldn't process your voice message"}
	messenger := &fakeMessenger{downloadErr: errors.New("graph down")}
	r := newTestWebhookRouter(turns, messenger, "")

	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"15550001111","id":"m3","type":"voice","voice":{"id":"v-1"}}
	]}}]}]}`
	postWebhook(r, body, "")

	require.Len(t, turns.received, 1)
	assert.Equal(t, entity.MessageKindAudio, turns.received[0].Kind)
	assert.Empty(t, turns.received[0].Media)
	assert.Len(t, messenger.sent, 1)
}

func TestWebhookHandler_Receive_TurnErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		reply string
	}{
		{"busy", apperror.ErrTurnInProgress, intake.ReplyBusy},
		{"store down", apperror.Wrap(errors.New("conn refused"), apperror.ErrCodeStore, "не удалось получить сессию"), intake.ReplyTurnFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := &fakeMessenger{}
			r := newTestWebhookRouter(&fakeTurns{err: tt.err}, messenger, "")

			w := postWebhook(r, textWebhook, "")

			assert.Equal(t, http.StatusOK, w.Code)
			require.Len(t, messenger.sent, 1)
			assert.Equal(t, tt.reply, messenger.sent[0].text)
		})
	}
}

func TestWebhookHandler_Receive_KeepsMessageOrder(t *testing.T) {
	turns := &fakeTurns{reply: "ok"}
	r := newTestWebhookRouter(turns, &fakeMessenger{}, "")

	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"1555","id":"a","type":"text","text":{"body":"first"}},
		{"from":"1555","id":"b","type":"location","location":{"latitude":1,"longitude":2}}
	]}}]}]}`
	postWebhook(r, body, "")

	require.Len(t, turns.received, 2)
	assert.Equal(t, "first", turns.received[0].Text)
	assert.Equal(t, entity.MessageKindLocation, turns.received[1].Kind)
}

func TestWebhookHandler_Receive_TimeoutPerMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	turns := &fakeTurns{reply: "ok", delay: 80 * time.Millisecond}
	h := NewWebhookHandler(context.Background(), turns, &fakeMessenger{}, WebhookConfig{
		VerifyToken:    "verify-me",
		MessageTimeout: 50 * time.Millisecond,
	}, log)
	h.spawn = func(ctx context.Context, fn func(context.Context)) { fn(ctx) }
	r := gin.New()
	r.POST("/webhook", h.Receive)

	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"1555","id":"a","type":"text","text":{"body":"first"}},
		{"from":"1555","id":"b","type":"text","text":{"body":"second"}}
	]}}]}]}`
	postWebhook(r, body, "")

	require.Len(t, turns.ctxErrs, 2)
	assert.NoError(t, turns.ctxErrs[0])
	assert.NoError(t, turns.ctxErrs[1], "второе сообщение не должно наследовать срок первого")
}

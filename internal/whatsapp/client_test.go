package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphServer(t *testing.T, file []byte) (*httptest.Server, *[]sendTextRequest) {
	t.Helper()
	var sent []sendTextRequest

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":       srv.URL + "/files/media-1",
			"mime_type": "image/jpeg",
		})
	})
	mux.HandleFunc("/files/media-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write(file)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/phone-1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req sendTextRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		sent = append(sent, req)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &sent
}

func TestClient_DownloadMedia(t *testing.T) {
	file := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	srv, _ := newGraphServer(t, file)
	c := NewClient(srv.URL, "token", "phone-1")

	data, mimeType, err := c.DownloadMedia(context.Background(), "media-1")
	require.NoError(t, err)
	assert.Equal(t, file, data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestClient_DownloadMedia_Errors(t *testing.T) {
	srv, _ := newGraphServer(t, make([]byte, 64))

	_, _, err := NewClient(srv.URL, "token", "phone-1").DownloadMedia(context.Background(), "missing")
	assert.ErrorContains(t, err, "404")

	_, _, err = NewClient(srv.URL, "token", "phone-1").DownloadMedia(context.Background(), "")
	assert.Error(t, err)

	_, _, err = NewClient(srv.URL, "token", "phone-1", WithMaxMediaBytes(16)).DownloadMedia(context.Background(), "media-1")
	assert.ErrorContains(t, err, "больше 16 байт")
}

func TestClient_SendText(t *testing.T) {
	srv, sent := newGraphServer(t, nil)
	c := NewClient(srv.URL+"/", "token", "phone-1")

	require.NoError(t, c.SendText(context.Background(), "15550001111", "Hello"))
	require.Len(t, *sent, 1)
	assert.Equal(t, sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               "15550001111",
		Type:             "text",
		Text:             textBody{Body: "Hello"},
	}, (*sent)[0])

	assert.Error(t, c.SendText(context.Background(), " ", "Hello"))
	assert.Error(t, NewClient(srv.URL, "token", "").SendText(context.Background(), "1555", "Hello"))
}

func TestClient_SendText_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "token", "phone-1").SendText(context.Background(), "1555", "Hello")
	assert.ErrorContains(t, err, "401")
}

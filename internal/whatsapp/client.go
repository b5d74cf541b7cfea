package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://graph.facebook.com/v20.0"

	defaultMaxMediaBytes = 16 << 20
)

// Client ходит в WhatsApp Cloud API: скачивает медиа и отправляет ответы.
type Client struct {
	baseURL       string
	token         string
	phoneNumberID string
	maxMediaBytes int64
	httpClient    *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxMediaBytes ограничивает размер скачиваемого файла.
func WithMaxMediaBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxMediaBytes = n
		}
	}
}

func NewClient(baseURL, token, phoneNumberID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		maxMediaBytes: defaultMaxMediaBytes,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia скачивает вложение в два шага: сначала ссылку по id, затем сам файл.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if mediaID == "" {
		return nil, "", fmt.Errorf("whatsapp: пустой id медиа")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return nil, "", err
	}
	c.authorize(req)

	var info mediaInfo
	if err := c.doJSON(req, &info); err != nil {
		return nil, "", fmt.Errorf("whatsapp: не удалось получить ссылку на медиа: %w", err)
	}
	if info.URL == "" {
		return nil, "", fmt.Errorf("whatsapp: в ответе нет ссылки на медиа")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, "", err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: не удалось скачать медиа: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, "", fmt.Errorf("whatsapp: не удалось скачать медиа: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: не удалось прочитать медиа: %w", err)
	}
	if int64(len(data)) > c.maxMediaBytes {
		return nil, "", fmt.Errorf("whatsapp: медиа больше %d байт", c.maxMediaBytes)
	}

	mimeType := info.MimeType
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	return data, mimeType, nil
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText отправляет обычное текстовое сообщение.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if c.phoneNumberID == "" {
		return fmt.Errorf("whatsapp: phone number id не задан")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("whatsapp: пустой номер получателя")
	}

	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: text},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.phoneNumberID+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: не удалось отправить сообщение: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("whatsapp: не удалось отправить сообщение: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) doJSON(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("код ответа %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

// SignatureHeader содержит HMAC-SHA256 тела запроса, ключом служит app secret.
const SignatureHeader = "X-Hub-Signature-256"

// Payload описывает тело webhook от Cloud API. Разбираются только нужные поля.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Image     *Media    `json:"image,omitempty"`
	Audio     *Media    `json:"audio,omitempty"`
	Voice     *Media    `json:"voice,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Messages собирает сообщения из всех entry и changes. Статусы доставки
// приходят в тот же webhook без messages и сюда не попадают.
func (p Payload) Messages() []Message {
	var out []Message
	for _, e := range p.Entry {
		for _, ch := range e.Changes {
			out = append(out, ch.Value.Messages...)
		}
	}
	return out
}

// media возвращает вложение, которое нужно скачать, или nil.
func (m Message) media() *Media {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "voice":
		if m.Voice != nil {
			return m.Voice
		}
		return m.Audio
	}
	return nil
}

// MediaID возвращает id вложения для DownloadMedia, пустой для сообщений без медиа.
func (m Message) MediaID() string {
	if media := m.media(); media != nil {
		return media.ID
	}
	return ""
}

// ToInbound переводит сообщение в доменный вид. data и mimeType содержат скачанное
// вложение; если скачать не удалось, передаётся nil, и автомат ответит сам.
func (m Message) ToInbound(data []byte, mimeType string) entity.InboundMessage {
	if media := m.media(); media != nil && media.MimeType != "" {
		mimeType = media.MimeType
	}

	switch m.Type {
	case "text":
		if m.Text == nil {
			return entity.NewTextMessage(m.From, "")
		}
		return entity.NewTextMessage(m.From, m.Text.Body)
	case "audio", "voice":
		return entity.NewAudioMessage(m.From, data, mimeType)
	case "image":
		return entity.NewImageMessage(m.From, data, mimeType)
	case "location":
		if m.Location == nil {
			return entity.NewUnsupportedMessage(m.From)
		}
		return entity.NewLocationMessage(m.From, m.Location.Latitude, m.Location.Longitude)
	default:
		return entity.NewUnsupportedMessage(m.From)
	}
}

// VerifySignature сверяет подпись тела. Пустой appSecret отключает проверку.
func VerifySignature(body []byte, header, appSecret string) error {
	if appSecret == "" {
		return nil
	}
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok {
		return apperror.ErrInvalidSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return apperror.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return apperror.ErrInvalidSignature
	}
	return nil
}

// Sign считает значение заголовка подписи для тела.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

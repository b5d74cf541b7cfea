package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/goroutine"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
	"github.com/ignatzorin/civic-intake/internal/usecase/intake"
	"github.com/ignatzorin/civic-intake/internal/whatsapp"
)

const (
	DefaultMessageTimeout = 2 * time.Minute

	maxWebhookBody = 1 << 20
	sendTimeout    = 15 * time.Second
)

type TurnProcessor interface {
	Execute(ctx context.Context, msg entity.InboundMessage) (*intake.TurnOutput, error)
}

// Messenger представляет канал, из которого приходят сообщения и куда уходят ответы.
type Messenger interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
	SendText(ctx context.Context, to, text string) error
}

type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
	// MessageTimeout ограничивает обработку одного сообщения: ожидание блокировки и ход.
	MessageTimeout time.Duration
}

// WebhookHandler принимает webhook WhatsApp. Ответ 200 отдаётся сразу, а
// сообщения обрабатываются в фоне по порядку, в котором пришли.
type WebhookHandler struct {
	turns     TurnProcessor
	messenger Messenger
	cfg       WebhookConfig
	baseCtx   context.Context
	spawn     func(ctx context.Context, fn func(context.Context))
	log       logrus.FieldLogger
}

// NewWebhookHandler создаёт хэндлер. На baseCtx запускается фоновая обработка.
func NewWebhookHandler(baseCtx context.Context, turns TurnProcessor, messenger Messenger, cfg WebhookConfig, log logrus.FieldLogger) *WebhookHandler {
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = DefaultMessageTimeout
	}
	return &WebhookHandler{
		turns:     turns,
		messenger: messenger,
		cfg:       cfg,
		baseCtx:   baseCtx,
		spawn:     goroutine.SafeGoWithContext,
		log:       log,
	}
}

// Verify обрабатывает GET-проверку подписки: hub.verify_token должен совпасть,
// в ответ возвращается hub.challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")

	if h.cfg.VerifyToken == "" || token != h.cfg.VerifyToken || (mode != "" && mode != "subscribe") {
		c.String(http.StatusForbidden, "invalid verification token")
		return
	}

	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// Receive обрабатывает POST с входящими сообщениями.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "не удалось прочитать тело запроса"})
		return
	}

	if err := whatsapp.VerifySignature(body, c.GetHeader(whatsapp.SignatureHeader), h.cfg.AppSecret); err != nil {
		h.log.WithField("ip", c.ClientIP()).Warn("webhook с неверной подписью")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "неверная подпись"})
		return
	}

	var payload whatsapp.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный JSON"})
		return
	}

	if messages := payload.Messages(); len(messages) > 0 {
		h.spawn(h.baseCtx, func(ctx context.Context) {
			for _, msg := range messages {
				h.handleMessage(ctx, msg)
			}
		})
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg whatsapp.Message) {
	// у каждого сообщения свой срок, медленный ход не съедает время следующих
	ctx, cancel := context.WithTimeout(ctx, h.cfg.MessageTimeout)
	defer cancel()

	log := h.log.WithFields(logrus.Fields{
		"phone":      msg.From,
		"kind":       msg.Type,
		"message_id": msg.ID,
	})
	if msg.From == "" {
		log.Warn("сообщение без отправителя пропущено")
		return
	}

	var (
		data     []byte
		mimeType string
	)
	if mediaID := msg.MediaID(); mediaID != "" {
		var err error
		data, mimeType, err = h.messenger.DownloadMedia(ctx, mediaID)
		if err != nil {
			log.WithError(err).Warn("не удалось скачать вложение")
		}
	}

	reply := h.process(ctx, msg.ToInbound(data, mimeType), log)
	if reply == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	if err := h.messenger.SendText(sendCtx, msg.From, reply); err != nil {
		log.WithError(err).Error("не удалось отправить ответ")
	}
}

func (h *WebhookHandler) process(ctx context.Context, inbound entity.InboundMessage, log logrus.FieldLogger) string {
	out, err := h.turns.Execute(ctx, inbound)
	switch {
	case err == nil:
		return out.Reply
	case errors.Is(err, apperror.ErrTurnInProgress):
		log.Warn("ход отклонён: номер занят")
		return intake.ReplyBusy
	default:
		log.WithError(err).Error("ход завершился ошибкой")
		return intake.ReplyTurnFailed
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/repository"
)

// conn описывает часть *nats.Conn, которая нужна издателю.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	conn conn
	log  logrus.FieldLogger
}

var _ repository.EventPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher подключается к NATS. Подключение не блокирует запуск: при
// недоступном сервере клиент переподключается в фоне.
func NewNATSPublisher(url, token string, log logrus.FieldLogger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("civic-intake"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats: соединение потеряно")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("nats: соединение восстановлено")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATSPublisher{conn: nc, log: log}, nil
}

func (p *NATSPublisher) PublishReportSubmitted(ctx context.Context, report *entity.ComplaintReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewReportSubmitted(report))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.conn.Publish(SubjectReportSubmitted, payload); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectReportSubmitted, err)
	}
	return nil
}

// Close дожидается отправки буферизованных сообщений.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NoopPublisher используется, когда NATS_URL не задан.
type NoopPublisher struct{}

var _ repository.EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishReportSubmitted(context.Context, *entity.ComplaintReport) error {
	return nil
}

// Package accesslog ships one JSON entry per HTTP request to Kafka.
package accesslog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Service    string    `json:"service"`
}

// MessageWriter is the part of *kafka.Writer the middleware needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns nil when no broker is configured.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		BatchTimeout: 100 * time.Millisecond,
		Completion: func(_ []kafka.Message, err error) {
			if err != nil {
				log.Errorf("[accesslog] failed to write log to Kafka: %v", err)
			}
		},
	}
}

// Middleware records the request after the rest of the chain, including
// the application error handler, has produced the response status.
func Middleware(w MessageWriter, service string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		entry := LogEntry{
			Timestamp:  time.Now(),
			IP:         clientIP(c),
			StatusCode: c.Response().StatusCode(),
			RequestID:  requestID(c),
			Method:     c.Method(),
			Path:       c.Path(),
			Duration:   time.Since(start).Seconds(),
			Service:    service,
		}

		jsonEntry, err := json.Marshal(entry)
		if err != nil {
			log.Errorf("[accesslog] failed to marshal log entry for request %s", entry.RequestID)
			return nil
		}
		if err := w.WriteMessages(context.Background(), kafka.Message{Value: jsonEntry}); err != nil {
			log.Errorf("[accesslog] failed to write log to Kafka: %v", err)
			return nil
		}
		log.Debugf("[accesslog] log entry sent to Kafka request_id:%s", entry.RequestID)
		return nil
	}
}

// clientIP reads X-Forwarded-For only when the request came through one of
// the app's trusted proxies.
func clientIP(c *fiber.Ctx) string {
	if c.App().Config().EnableTrustedProxyCheck && c.IsProxyTrusted() {
		if ips := c.IPs(); len(ips) > 0 && ips[0] != "" {
			return ips[0]
		}
	}
	return c.IP()
}

func requestID(c *fiber.Ctx) string {
	if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}

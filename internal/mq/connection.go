package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Задержки повторного дозвона при разрыве соединения.
const (
	redialBase = time.Second
	redialMax  = 30 * time.Second
)

// ErrNoChannel возвращается, когда канал недоступен: соединение
// в процессе передозвона.
var ErrNoChannel = errors.New("amqp channel unavailable")

// Connection держит одно AMQP-соединение на процесс и сам
// передозванивается при разрыве. API публикует через него события
// runs, оркестратор потребляет; обе стороны переживают рестарт
// брокера без рестарта процесса.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done     chan struct{}
	redialed chan struct{}
}

// NewConnection дозванивается до RabbitMQ и запускает супервизор
// соединения.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:      url,
		logger:   logger,
		done:     make(chan struct{}),
		redialed: make(chan struct{}, 1),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}
	go c.supervise()

	return c, nil
}

// dial открывает соединение и канал поверх него.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("amqp connection established")
	return nil
}

// supervise ждёт закрытия соединения и передозванивается,
// пока Connection не закроют.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		closed, conn := c.closed, c.conn
		c.mu.RUnlock()
		if closed {
			return
		}

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case amqpErr := <-lost:
			if amqpErr != nil {
				c.logger.Warn("amqp connection lost", "error", amqpErr)
			}
		}

		if !c.redial() {
			return
		}
	}
}

// redial восстанавливает соединение с экспоненциальной задержкой.
// false означает, что Connection закрыли во время ожидания.
func (c *Connection) redial() bool {
	delay := redialBase

	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("amqp redial failed", "delay", delay, "error", err)
			delay = min(delay*2, redialMax)
			continue
		}

		c.logger.Info("amqp connection restored")

		// Будим потребителей, ждущих восстановления
		select {
		case c.redialed <- struct{}{}:
		default:
		}
		return true
	}
}

// Redialed возвращает канал, сигналящий после каждого успешного
// передозвона.
func (c *Connection) Redialed() <-chan struct{} {
	return c.redialed
}

// Channel возвращает текущий AMQP-канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// WithChannel выполняет fn на текущем канале.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	ch := c.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close останавливает супервизор и закрывает канал и соединение.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.logger.Info("amqp connection closed")
	return errors.Join(errs...)
}

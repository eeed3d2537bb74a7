package telegram

import (
	"context"
	"fmt"
	"sync"

	"perpScalper/internal/ports"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultQueueSize = 64

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token     string
	ChatID    int64
	Logger    ports.Logger
	QueueSize int
	// APIEndpoint overrides the Bot API endpoint format, e.g. "http://host/bot%s/%s".
	APIEndpoint string
}

// Notifier implements ports.Notifier. Notify only enqueues; a single worker delivers
// messages in order, so a slow or failing Telegram never blocks the caller.
type Notifier struct {
	bot    *tgbotapi.BotAPI // nil when notifications are disabled
	chatID int64
	logger ports.Logger

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a notifier. Without a token or chat id it only logs the messages.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for telegram notifier")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	n := &Notifier{
		chatID: cfg.ChatID,
		logger: cfg.Logger,
		queue:  make(chan string, size),
		stop:   make(chan struct{}),
	}

	if cfg.Token == "" || cfg.ChatID == 0 {
		cfg.Logger.Warn(context.Background(), "Telegram token or chat id empty: notifications will only be logged")
		return n, nil
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	bot.Debug = false
	n.bot = bot
	cfg.Logger.Info(context.Background(), "Telegram connected", map[string]interface{}{"bot": bot.Self.UserName})
	return n, nil
}

// Enabled reports whether messages are delivered to Telegram.
func (n *Notifier) Enabled() bool {
	return n.bot != nil
}

// Start launches the delivery worker. Calling it more than once has no effect.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		n.wg.Add(1)
		go n.run(ctx)
	})
}

// Notify enqueues text for delivery. When the queue is full the message is dropped.
func (n *Notifier) Notify(ctx context.Context, text string) {
	select {
	case <-n.stop:
		n.logger.Warn(ctx, "Notifier closed, message dropped", map[string]interface{}{"text": text})
		return
	default:
	}

	select {
	case n.queue <- text:
	default:
		n.logger.Warn(ctx, "Notification queue full, message dropped", map[string]interface{}{"text": text})
	}
}

// Close stops the worker after it has delivered what is already queued.
func (n *Notifier) Close() {
	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case text := <-n.queue:
			n.deliver(ctx, text)
		case <-n.stop:
			n.drain(ctx)
			return
		case <-ctx.Done():
			n.drain(ctx)
			return
		}
	}
}

func (n *Notifier) drain(ctx context.Context) {
	for {
		select {
		case text := <-n.queue:
			n.deliver(ctx, text)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, text string) {
	if n.bot == nil {
		n.logger.Info(ctx, "Notification", map[string]interface{}{"text": text})
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error(ctx, err, "Telegram send failed", map[string]interface{}{"chatID": n.chatID})
	}
}

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"reelbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramGreeting     = "Hi! Send an Instagram link and I'll reply."
	telegramHelp         = "Send me a link to an Instagram reel, for example\nhttps://www.instagram.com/reel/<id>/\nand I'll reply with a direct video URL."
	telegramUnknownCmd   = "Unknown command. Send an Instagram reel link."
	telegramUnauthorized = "Unauthorized. Your user ID is not in the allow list."
)

// telegramBot is the subset of *tgbotapi.BotAPI used after startup.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram long-polls the Bot API and answers every text message with the
// pipeline's reply.
type Telegram struct {
	token       string
	allowFrom   []int64 // empty = allow all
	pollTimeout int

	processor Processor
	bot       telegramBot
	logger    *slog.Logger
	inflight  sync.WaitGroup
}

type TelegramConfig struct {
	Token              string
	AllowFrom          []string // user IDs as strings
	PollTimeoutSeconds int
	Processor          Processor
	Logger             *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.PollTimeoutSeconds <= 0 {
		cfg.PollTimeoutSeconds = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Telegram{
		token:       cfg.Token,
		allowFrom:   allowed,
		pollTimeout: cfg.PollTimeoutSeconds,
		processor:   cfg.Processor,
		logger:      cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram, drops updates queued while the bot was offline
// and polls until ctx is cancelled. In-flight replies are awaited before returning.
func (t *Telegram) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		t.logger.Warn("could not drop pending updates", "err", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "edited_message"}
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")
	defer t.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.inflight.Add(1)
			go func() {
				defer t.inflight.Done()
				t.handleUpdate(ctx, update)
			}()
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return
	}

	chatID := msg.Chat.ID
	var userID int64
	var username string
	if msg.From != nil {
		userID = msg.From.ID
		username = msg.From.UserName
	}

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user", "user_id", userID, "username", username)
		t.reply(msg, telegramUnauthorized)
		return
	}

	if msg.IsCommand() {
		t.handleCommand(msg)
		return
	}

	// Non-text messages (photos, stickers, joins) carry no text.
	text := msg.Text
	if text == "" {
		return
	}

	_, _ = t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	reply := t.processor.Process(ctx, domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    strconv.FormatInt(chatID, 10),
		SenderID:  strconv.FormatInt(userID, 10),
		Text:      text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	})

	t.logger.Info("telegram reply",
		"chat_id", chatID,
		"user", username,
		"outcome", reply.Outcome,
		"edited", update.EditedMessage != nil,
	)
	t.reply(msg, reply.Text())
}

func (t *Telegram) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.reply(msg, telegramGreeting)
	case "help":
		t.reply(msg, telegramHelp)
	default:
		t.reply(msg, telegramUnknownCmd)
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// reply sends text to the message's chat, quoting the message outside private chats.
func (t *Telegram) reply(to *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(to.Chat.ID, text)
	if !to.Chat.IsPrivate() {
		out.ReplyToMessageID = to.MessageID
	}
	if _, err := t.bot.Send(out); err != nil {
		t.logger.Error("telegram send failed", "chat_id", to.Chat.ID, "err", err)
	}
}

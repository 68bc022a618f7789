package bot

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

// DepositService drives the deposit intent lifecycle
type DepositService interface {
	CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (*entities.DepositIntent, error)
	AttachMessage(ctx context.Context, intentID uuid.UUID, messageID int) error
	FindByMessageID(ctx context.Context, messageID int) (*entities.DepositIntent, error)
	Cancel(ctx context.Context, intentID uuid.UUID) error
}

// ReferralService drives affiliate enrollment and attribution
type ReferralService interface {
	Enroll(ctx context.Context, userID string) (*entities.Affiliate, error)
	Attribute(ctx context.Context, userID, username, code string) (*entities.User, error)
	Profile(ctx context.Context, userID string) (*entities.Affiliate, error)
	ReferralLink(code string) string
}

// UserStore provisions and reads user accounts
type UserStore interface {
	Upsert(ctx context.Context, userID, username string, referredBy *string) (*entities.User, error)
	GetByUserID(ctx context.Context, userID string) (*entities.User, error)
}

// QRProvider renders the payment QR image for a transfer
type QRProvider interface {
	FetchImage(ctx context.Context, amount decimal.Decimal, description string) ([]byte, error)
}

// BankInfo is what the QR caption shows the user
type BankInfo struct {
	Name        string
	Account     string
	AccountName string
}

// Bot is the Telegram front-end. It only ever talks to the domain
// services; nothing here touches the database directly.
type Bot struct {
	api       *tgbotapi.BotAPI
	deposits  DepositService
	referrals ReferralService
	users     UserStore
	qr        QRProvider
	state     *StateStore
	limiter   *RateLimiter
	bank      BankInfo
	timeout   int
	logger    *logger.Logger
}

// Config collects the bot's collaborators
type Config struct {
	API           *tgbotapi.BotAPI
	Deposits      DepositService
	Referrals     ReferralService
	Users         UserStore
	QR            QRProvider
	State         *StateStore
	Limiter       *RateLimiter
	Bank          BankInfo
	UpdateTimeout int
	Logger        *logger.Logger
}

// New creates the bot front-end
func New(cfg Config) *Bot {
	timeout := cfg.UpdateTimeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Bot{
		api:       cfg.API,
		deposits:  cfg.Deposits,
		referrals: cfg.Referrals,
		users:     cfg.Users,
		qr:        cfg.QR,
		state:     cfg.State,
		limiter:   cfg.Limiter,
		bank:      cfg.Bank,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

// Run long-polls Telegram until the context is cancelled
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if !b.limiter.Allow(ctx, cb.Message.Chat.ID) {
			b.answerCallback(cb.ID, "⌛️ Thao tác quá nhanh, vui lòng thử lại sau.")
			return
		}
		b.handleCallback(ctx, cb)
	case update.Message != nil:
		msg := update.Message
		if !b.limiter.Allow(ctx, msg.Chat.ID) {
			return
		}
		b.handleMessage(ctx, msg)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		default:
			b.reply(msg.Chat.ID, "💡 Vui lòng sử dụng menu để truy cập các tính năng.", mainMenuKeyboard())
		}
		return
	}

	switch msg.Text {
	case buttonAccount:
		b.handleAccount(ctx, msg)
	case buttonDeposit:
		b.handleDeposit(ctx, msg)
	case buttonReferral, buttonMore:
		b.handleReferralMenu(ctx, msg.Chat.ID, userIDOf(msg))
	case buttonBack:
		b.handleBack(ctx, msg)
	default:
		b.handleFreeText(ctx, msg)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	switch cb.Data {
	case callbackCheckPayment:
		b.handleCheckPayment(cb)
	case callbackCancelPayment:
		b.handleCancelPayment(ctx, cb)
	case callbackActivateReferral:
		b.handleActivateReferral(ctx, cb)
	case callbackCancelReferral:
		b.handleCancelReferral(ctx, cb)
	case callbackShowReferral:
		b.answerCallback(cb.ID, "")
		b.handleReferralMenu(ctx, cb.Message.Chat.ID, strconv.FormatInt(cb.From.ID, 10))
	default:
		b.answerCallback(cb.ID, "")
	}
}

func userIDOf(msg *tgbotapi.Message) string {
	return strconv.FormatInt(msg.From.ID, 10)
}

func (b *Bot) reply(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Failed to send bot message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cb); err != nil {
		b.logger.Warn("Failed to answer callback query", "error", err)
	}
}

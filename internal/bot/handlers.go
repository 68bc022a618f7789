package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
)

const (
	msgGenericError = "❌ Có lỗi xảy ra. Vui lòng thử lại sau."
	msgBackToMenu   = "👋 Quay lại menu chính"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := userIDOf(msg)
	username := msg.From.UserName
	code := strings.TrimSpace(msg.CommandArguments())

	var (
		user *entities.User
		err  error
	)
	if code != "" {
		user, err = b.referrals.Attribute(ctx, userID, username, code)
	} else {
		user, err = b.users.Upsert(ctx, userID, username, nil)
	}
	if err != nil {
		b.logger.Error("Start handler failed", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msgGenericError, nil)
		return
	}

	text := fmt.Sprintf("👋 Chào mừng @%s đến với dịch vụ của chúng tôi!\n\n", username)
	if code != "" && user.HasReferrer() {
		text += "🎉 Bạn đã được giới thiệu thành công!\n\n"
	}
	text += "💡 Vui lòng sử dụng menu để truy cập các tính năng."

	b.reply(msg.Chat.ID, text, mainMenuKeyboard())
}

func (b *Bot) handleAccount(ctx context.Context, msg *tgbotapi.Message) {
	userID := userIDOf(msg)

	user, err := b.users.Upsert(ctx, userID, msg.From.UserName, nil)
	if err != nil {
		b.logger.Error("Account handler failed", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msgGenericError, nil)
		return
	}

	text := "👤 <b>THÔNG TIN TÀI KHOẢN</b>\n\n" +
		fmt.Sprintf("🆔 ID: <code>%s</code>\n", user.UserID) +
		fmt.Sprintf("👤 Username: @%s\n", msg.From.UserName) +
		fmt.Sprintf("💰 Số dư: %sđ", notify.FormatVND(user.Balance))

	if affiliate, err := b.referrals.Profile(ctx, userID); err == nil {
		text += fmt.Sprintf("\n\n🎖 Cấp độ: %s\n", affiliate.Rank) +
			fmt.Sprintf("👥 Số người giới thiệu: %d\n", affiliate.TotalReferrals) +
			fmt.Sprintf("💎 Tỷ lệ hoa hồng: %s%%\n", affiliate.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1)) +
			fmt.Sprintf("💰 Tổng hoa hồng: %sđ", notify.FormatVND(affiliate.TotalCommission))
	}

	b.reply(msg.Chat.ID, text, accountInlineKeyboard())
}

func (b *Bot) handleDeposit(ctx context.Context, msg *tgbotapi.Message) {
	userID := userIDOf(msg)

	user, err := b.users.Upsert(ctx, userID, msg.From.UserName, nil)
	if err != nil {
		b.logger.Error("Deposit handler failed", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msgGenericError, nil)
		return
	}

	text := "💰 <b>NẠP TIỀN</b>\n\n" +
		fmt.Sprintf("👤 Tài khoản: @%s\n", msg.From.UserName) +
		fmt.Sprintf("💵 Số dư hiện tại: %sđ\n\n", notify.FormatVND(user.Balance)) +
		"Vui lòng chọn số tiền muốn nạp:"

	b.reply(msg.Chat.ID, text, depositAmountKeyboard())

	if err := b.state.Set(ctx, msg.Chat.ID, &ChatState{SelectingAmount: true}); err != nil {
		b.logger.Warn("Failed to store chat state", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleBack(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.state.Clear(ctx, msg.Chat.ID); err != nil {
		b.logger.Warn("Failed to clear chat state", "chat_id", msg.Chat.ID, "error", err)
	}
	b.reply(msg.Chat.ID, msgBackToMenu, mainMenuKeyboard())
}

// handleFreeText routes plain text by conversational state. The only
// stateful input is the deposit amount selection.
func (b *Bot) handleFreeText(ctx context.Context, msg *tgbotapi.Message) {
	state, err := b.state.Get(ctx, msg.Chat.ID)
	if err != nil {
		b.logger.Warn("Failed to load chat state", "chat_id", msg.Chat.ID, "error", err)
		state = &ChatState{}
	}

	if state.SelectingAmount {
		b.handleAmountSelection(ctx, msg)
		return
	}

	b.reply(msg.Chat.ID, "💡 Vui lòng sử dụng menu để truy cập các tính năng.", mainMenuKeyboard())
}

func (b *Bot) handleAmountSelection(ctx context.Context, msg *tgbotapi.Message) {
	userID := userIDOf(msg)

	amount, ok := parseAmount(msg.Text)
	if !ok {
		b.reply(msg.Chat.ID, "❌ Mệnh giá không hợp lệ", nil)
		return
	}

	intent, err := b.deposits.CreateIntent(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidAmount) {
			b.reply(msg.Chat.ID, "❌ Mệnh giá không hợp lệ", nil)
			return
		}
		b.logger.Error("Failed to create deposit intent", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msgGenericError, nil)
		return
	}

	image, err := b.qr.FetchImage(ctx, amount, intent.Description)
	if err != nil {
		b.logger.Error("Failed to render QR image", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, "❌ Không thể tạo mã QR. Vui lòng thử lại sau.", nil)
		return
	}

	caption := "💳 <b>QUÉT MÃ QR ĐỂ THANH TOÁN</b>\n\n" +
		fmt.Sprintf("🏦 Ngân hàng: %s\n", b.bank.Name) +
		fmt.Sprintf("👤 Chủ tài khoản: %s\n", b.bank.AccountName) +
		fmt.Sprintf("💳 Số tài khoản: <code>%s</code>\n", b.bank.Account) +
		fmt.Sprintf("💰 Số tiền: %sđ\n", notify.FormatVND(amount)) +
		fmt.Sprintf("📝 Nội dung: <code>%s</code>\n\n", intent.Description) +
		"ℹ️ Lưu ý:\n" +
		"• Vui lòng chuyển đúng số tiền và nội dung\n" +
		"• Tiền sẽ được cộng tự động sau 1-3 phút\n" +
		"• Nếu cần hỗ trợ, vui lòng liên hệ admin"

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "qrcode.png", Bytes: image})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyMarkup = paymentInlineKeyboard()

	sent, err := b.api.Send(photo)
	if err != nil {
		b.logger.Error("Failed to send QR message", "user_id", userID, "error", err)
		b.reply(msg.Chat.ID, msgGenericError, nil)
		return
	}

	if err := b.deposits.AttachMessage(ctx, intent.ID, sent.MessageID); err != nil {
		b.logger.Warn("Failed to attach QR message to intent",
			"intent_id", intent.ID, "message_id", sent.MessageID, "error", err)
	}

	if err := b.state.Set(ctx, msg.Chat.ID, &ChatState{
		IntentID:    intent.ID.String(),
		QRMessageID: sent.MessageID,
	}); err != nil {
		b.logger.Warn("Failed to store chat state", "chat_id", msg.Chat.ID, "error", err)
	}
}

// handleCheckPayment just acknowledges; settlement happens through the
// bank webhook, there is nothing to poll.
func (b *Bot) handleCheckPayment(cb *tgbotapi.CallbackQuery) {
	alert := tgbotapi.NewCallbackWithAlert(cb.ID,
		"⌛️ Hệ thống đang xử lý giao dịch...\nVui lòng đợi 1-3 phút để tiền được cộng tự động.")
	if _, err := b.api.Request(alert); err != nil {
		b.logger.Warn("Failed to answer callback query", "error", err)
	}
}

// handleCancelPayment cancels the intent attached to the QR message the
// button lives on. Looking the intent up by message id keeps the cancel
// working even after the redis state expired.
func (b *Bot) handleCancelPayment(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	intent, err := b.deposits.FindByMessageID(ctx, cb.Message.MessageID)
	if err == nil {
		err = b.deposits.Cancel(ctx, intent.ID)
	}
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) || errors.Is(err, domainerrors.ErrInvalidState) {
			b.answerCallback(cb.ID, "❌ Không thể huỷ giao dịch")
			return
		}
		b.logger.Error("Failed to cancel deposit intent", "message_id", cb.Message.MessageID, "error", err)
		b.answerCallback(cb.ID, "❌ Không thể huỷ giao dịch")
		return
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, cb.Message.MessageID)); err != nil {
		b.logger.Warn("Failed to delete QR message", "chat_id", chatID, "error", err)
	}

	b.answerCallback(cb.ID, "✅ Đã huỷ giao dịch")
	if err := b.state.Clear(ctx, chatID); err != nil {
		b.logger.Warn("Failed to clear chat state", "chat_id", chatID, "error", err)
	}
	b.reply(chatID, msgBackToMenu, mainMenuKeyboard())
}

func (b *Bot) handleReferralMenu(ctx context.Context, chatID int64, userID string) {
	affiliate, err := b.referrals.Profile(ctx, userID)
	if err == nil {
		b.reply(chatID, referralProfileText(affiliate, b.referrals.ReferralLink(affiliate.Code)), nil)
		b.reply(chatID, msgBackToMenu, mainMenuKeyboard())
		return
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		b.logger.Error("Referral profile lookup failed", "user_id", userID, "error", err)
		b.reply(chatID, msgGenericError, mainMenuKeyboard())
		return
	}

	text := "👋 CHƯƠNG TRÌNH GIỚI THIỆU\n\n💎 Hệ thống hạng và hoa hồng:\n"
	for _, r := range entities.AffiliateRanks {
		text += fmt.Sprintf("• %s: %s%% (%d người)\n",
			r.Name, r.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1), r.RequiredReferrals)
	}
	text += "\n💡 Bạn có muốn tham gia không?"

	b.reply(chatID, text, referralEnrollKeyboard())
}

func (b *Bot) handleActivateReferral(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := fmt.Sprintf("%d", cb.From.ID)

	affiliate, err := b.referrals.Enroll(ctx, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyEnrolled) {
			b.editMessage(cb, "❌ Bạn đã kích hoạt tính năng giới thiệu rồi.")
			b.answerCallback(cb.ID, "")
			return
		}
		b.logger.Error("Referral enrollment failed", "user_id", userID, "error", err)
		b.editMessage(cb, "❌ Có lỗi xảy ra khi kích hoạt. Vui lòng thử lại sau.")
		b.answerCallback(cb.ID, "")
		return
	}

	text := "✅ KÍCH HOẠT THÀNH CÔNG!\n\n" +
		fmt.Sprintf("🏆 Hạng hiện tại: %s\n", affiliate.Rank) +
		fmt.Sprintf("💰 Tỷ lệ hoa hồng: %s%%\n\n", affiliate.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1)) +
		fmt.Sprintf("🔗 Link giới thiệu của bạn:\n%s", b.referrals.ReferralLink(affiliate.Code))

	if next := entities.NextRank(affiliate.Rank); next != nil {
		text += fmt.Sprintf("\n\n📈 Thăng hạng tiếp theo:\n• %s: %s%%\n• Cần %d người giới thiệu",
			next.Name, next.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1), next.RequiredReferrals)
	}

	b.editMessage(cb, text)
	b.answerCallback(cb.ID, "")
}

func (b *Bot) handleCancelReferral(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.editMessage(cb, msgBackToMenu)
	b.answerCallback(cb.ID, "")
}

func (b *Bot) editMessage(cb *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn("Failed to edit bot message", "chat_id", cb.Message.Chat.ID, "error", err)
	}
}

func referralProfileText(a *entities.Affiliate, link string) string {
	text := "📊 THÔNG TIN GIỚI THIỆU\n\n" +
		fmt.Sprintf("🏆 Hạng: %s\n", a.Rank) +
		fmt.Sprintf("💰 Tỷ lệ hoa hồng: %s%%\n", a.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1)) +
		fmt.Sprintf("👥 Số người giới thiệu: %d\n", a.TotalReferrals) +
		fmt.Sprintf("💵 Tổng hoa hồng: %sđ\n\n", notify.FormatVND(a.TotalCommission)) +
		fmt.Sprintf("🔗 Link giới thiệu:\n%s\n\n", link)

	if next := entities.NextRank(a.Rank); next != nil {
		text += fmt.Sprintf("📈 Thăng hạng tiếp theo:\n• %s: %s%%\n• Cần thêm %d người giới thiệu",
			next.Name, next.CommissionRate.Mul(decimal.NewFromInt(100)).StringFixed(1),
			next.RequiredReferrals-a.TotalReferrals)
	} else {
		text += "🎉 Chúc mừng! Bạn đã đạt hạng cao nhất"
	}
	return text
}

// parseAmount strips everything but digits from a keyboard label like
// "20.000đ" and returns the amount.
func parseAmount(text string) (decimal.Decimal, bool) {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(digits.String())
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

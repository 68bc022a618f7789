package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
)

const (
	buttonAccount  = "👤 Account"
	buttonDeposit  = "💸 Deposit Now"
	buttonReferral = "👫 Referral"
	buttonMore     = "🔥 More"
	buttonBack     = "⬅️ Back"

	callbackCheckPayment     = "check_payment"
	callbackCancelPayment    = "cancel_payment"
	callbackActivateReferral = "activate_referral"
	callbackCancelReferral   = "cancel_referral"
	callbackShowReferral     = "show_referral"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonAccount),
			tgbotapi.NewKeyboardButton(buttonDeposit),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonReferral),
			tgbotapi.NewKeyboardButton(buttonMore),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func depositAmountKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, d := range entities.DepositDenominations {
		row = append(row, tgbotapi.NewKeyboardButton(notify.FormatVND(decimal.NewFromInt(d))+"đ"))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(buttonBack)})

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func paymentInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Đã thanh toán", callbackCheckPayment),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Huỷ giao dịch", callbackCancelPayment),
		),
	)
}

func referralEnrollKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Có", callbackActivateReferral),
			tgbotapi.NewInlineKeyboardButtonData("❌ Không", callbackCancelReferral),
		),
	)
}

func accountInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Chương trình giới thiệu", callbackShowReferral),
		),
	)
}

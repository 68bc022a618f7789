package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FormatVND renders an amount with thousand separators the way the
// storefront displays money, e.g. 50000 -> "50.000".
func FormatVND(amount decimal.Decimal) string {
	s := amount.Truncate(0).String()
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// PaidCaption is the replacement caption for the QR message after a
// successful settlement
func PaidCaption(amount, newBalance decimal.Decimal) string {
	return "✅ THANH TOÁN THÀNH CÔNG\n\n" +
		fmt.Sprintf("💰 Số tiền: +%sđ\n", FormatVND(amount)) +
		fmt.Sprintf("💵 Số dư mới: %sđ", FormatVND(newBalance))
}

// Receipt is the detailed settlement notification sent to the depositor
func Receipt(amount, newBalance decimal.Decimal, tid, bankName, senderName string, when time.Time) string {
	return "✅ <b>GIAO DỊCH THÀNH CÔNG</b>\n\n" +
		fmt.Sprintf("💰 Số tiền: +%sđ\n", FormatVND(amount)) +
		fmt.Sprintf("💳 Mã GD: <code>%s</code>\n", tid) +
		fmt.Sprintf("🏦 Ngân hàng: %s\n", bankName) +
		fmt.Sprintf("👤 Người gửi: %s\n", senderName) +
		fmt.Sprintf("⌛️ Thời gian: %s\n", when.Format("02/01/2006 15:04:05")) +
		fmt.Sprintf("💵 Số dư hiện tại: %sđ\n\n", FormatVND(newBalance)) +
		"🎉 Cảm ơn bạn đã sử dụng dịch vụ!"
}

// Reminder nudges the user about a pending transfer
func Reminder(amount decimal.Decimal) string {
	return "⏰ <b>Nhắc nhở thanh toán</b>\n\n" +
		"Bạn có một giao dịch nạp tiền đang chờ:\n" +
		fmt.Sprintf("💰 Số tiền: <b>%sđ</b>\n\n", FormatVND(amount)) +
		"Vui lòng hoàn tất thanh toán hoặc hủy giao dịch nếu không còn nhu cầu."
}

// ExpiredCaption replaces the QR message caption when the intent times out
func ExpiredCaption(now time.Time) string {
	return "❌ <b>GIAO DỊCH ĐÃ HẾT HẠN</b>\n\n" +
		fmt.Sprintf("⏱ Thời gian: %s", now.Format("02/01/2006 15:04:05"))
}

// Expired tells the user their pending deposit was auto-cancelled
func Expired(amount decimal.Decimal) string {
	return "⏰ <b>Giao dịch đã hết hạn</b>\n\n" +
		fmt.Sprintf("Giao dịch nạp <b>%sđ</b> đã bị hủy do quá thời gian thanh toán.\n", FormatVND(amount)) +
		"Vui lòng tạo giao dịch mới nếu bạn vẫn muốn nạp tiền."
}

// CommissionEarned notifies the referrer of a commission payout
func CommissionEarned(paid decimal.Decimal, sourceUsername string, rate decimal.Decimal, rank string) string {
	percent := rate.Mul(decimal.NewFromInt(100))
	return "💰 <b>NHẬN HOA HỒNG</b>\n\n" +
		fmt.Sprintf("Bạn nhận được <b>%sđ</b>\n", FormatVND(paid)) +
		fmt.Sprintf("từ giao dịch nạp tiền của @%s\n", sourceUsername) +
		fmt.Sprintf("🏆 Hạng: %s\n", rank) +
		fmt.Sprintf("Tỷ lệ hoa hồng: %s%%", percent.StringFixed(1))
}

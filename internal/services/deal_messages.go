package services

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"ozergarant/internal/models"
	"ozergarant/internal/utils"
)

const dateLayout = "02.01.2006 15:04"

var statusLabels = map[models.DealStatus]string{
	models.DealCreated:        "🟡 Создана",
	models.DealJoined:         "🔵 Партнер найден",
	models.DealPaymentPending: "🟠 Ожидание оплаты",
	models.DealCompleted:      "✅ Завершена",
	models.DealCancelled:      "❌ Отменена",
	models.DealDisputed:       "🔴 Спор",
}

func StatusLabel(s models.DealStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "❓ Неизвестно"
}

// StatusReason explains to a would-be participant why the deal is closed.
func StatusReason(s models.DealStatus) string {
	switch s {
	case models.DealJoined:
		return "уже имеет партнера"
	case models.DealPaymentPending:
		return "находится в процессе оплаты"
	case models.DealCompleted:
		return "завершена"
	case models.DealCancelled:
		return "отменена"
	case models.DealDisputed:
		return "находится в споре"
	}
	return "недоступна"
}

func RoleLabel(r models.DealRole) string {
	if r == models.RoleBuyer {
		return "💰 Покупатель"
	}
	return "💎 Продавец"
}

// shorten cuts s to n runes and adds an ellipsis.
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// FormatDeal renders the deal card as seen by viewerID.
func FormatDeal(d *models.Deal, viewerID int64, now time.Time) string {
	method := "Не выбран"
	if d.PaymentMethod != nil {
		method = "💳 " + string(*d.PaymentMethod)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💼 <b>Сделка #%s</b>\n\n", d.Code)
	fmt.Fprintf(&b, "📊 Статус: %s\n", StatusLabel(d.Status))
	fmt.Fprintf(&b, "👤 Ваша роль: %s\n", RoleLabel(d.RoleOf(viewerID)))
	fmt.Fprintf(&b, "💰 Сумма: %s\n", utils.FormatUSD(d.AmountUSD))
	fmt.Fprintf(&b, "📋 Условия: %s\n", html.EscapeString(d.Terms))
	fmt.Fprintf(&b, "💳 Способ оплаты: %s\n", method)
	fmt.Fprintf(&b, "📅 Создана: %s\n", d.CreatedAt.Format(dateLayout))
	fmt.Fprintf(&b, "⏰ Истекает: %s", d.ExpiresAt.Format(dateLayout))
	if d.Status == models.DealCreated {
		fmt.Fprintf(&b, " (%s)", utils.FormatTimeLeft(d.ExpiresAt, now))
	}
	if d.CompletedAt != nil {
		fmt.Fprintf(&b, "\n✅ Завершена: %s", d.CompletedAt.Format(dateLayout))
	}
	return b.String()
}

// FormatProfile renders the user's profile card.
func FormatProfile(u *models.User) string {
	username := "Не указан"
	if u.Username != "" {
		username = "@" + u.Username
	}
	verified := "Нет"
	if u.Verified {
		verified = "Да"
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)

	var b strings.Builder
	b.WriteString("👤 <b>Профиль пользователя</b>\n\n")
	fmt.Fprintf(&b, "🆔 ID: <code>%d</code>\n", u.ID)
	fmt.Fprintf(&b, "👤 Имя: %s\n", html.EscapeString(name))
	fmt.Fprintf(&b, "📝 Username: %s\n", html.EscapeString(username))
	fmt.Fprintf(&b, "✅ Верификация: %s\n", verified)
	fmt.Fprintf(&b, "💼 Всего сделок: %d\n", u.DealsCount)
	fmt.Fprintf(&b, "✅ Успешных сделок: %d\n", u.SuccessfulDeals)
	fmt.Fprintf(&b, "⭐ Рейтинг: %s (%.1f/5.0)\n", utils.RatingStars(u.Rating), u.Rating)
	fmt.Fprintf(&b, "📅 Регистрация: %s", u.CreatedAt.Format(dateLayout))
	return b.String()
}

func dealKeyboard(dealID int64) models.Keyboard {
	return models.Keyboard{{
		{Action: models.IntentShowDeal, Label: "📄 Открыть сделку", Payload: strconv.FormatInt(dealID, 10)},
	}}
}

func methodLabel(m models.PaymentMethod) string {
	switch m {
	case models.MethodTRC20:
		return "🔗 USDT TRC20"
	case models.MethodTON:
		return "💎 TON"
	}
	return string(m)
}

// PaymentMethodKeyboard offers every configured rail for the deal.
func PaymentMethodKeyboard(dealID int64, methods []models.PaymentMethod) models.Keyboard {
	id := strconv.FormatInt(dealID, 10)
	var kb models.Keyboard
	for _, m := range methods {
		kb = append(kb, []models.Intent{{
			Action:  models.IntentPaymentMethod,
			Label:   methodLabel(m),
			Payload: models.JoinPayload(id, string(m)),
		}})
	}
	return kb
}

// PaymentDoneKeyboard is shown to the payer together with the instructions.
func PaymentDoneKeyboard(dealID int64) models.Keyboard {
	return models.Keyboard{
		{{Action: models.IntentPaymentDone, Label: "✅ Я оплатил", Payload: strconv.FormatInt(dealID, 10)}},
		{{Action: models.IntentCancelDeal, Label: "❌ Отменить сделку", Payload: strconv.FormatInt(dealID, 10)}},
	}
}

func creatorJoinedNotice(d *models.Deal, partner string) models.Notification {
	text := fmt.Sprintf("🎉 <b>К вашей сделке присоединился партнер!</b>\n\n"+
		"💼 Сделка: #%s\n👤 Партнер: %s\n💰 Сумма: %s\n📋 Условия: %s\n\n"+
		"🔄 Следующий шаг: %s",
		d.Code, html.EscapeString(partner), utils.FormatUSD(d.AmountUSD), html.EscapeString(shorten(d.Terms, 100)),
		nextStepHint(d.CreatorRole))
	return models.Notification{Text: text, Keyboard: dealKeyboard(d.ID)}
}

func nextStepHint(viewerRole models.DealRole) string {
	if viewerRole == models.RoleBuyer {
		return "выберите способ оплаты."
	}
	return "ожидайте оплату от покупателя."
}

func choosePaymentNotice(d *models.Deal, methods []models.PaymentMethod) models.Notification {
	text := fmt.Sprintf("💳 <b>Выберите способ оплаты для сделки #%s</b>\n\n"+
		"💰 Сумма к оплате: %s\n\nВыберите удобный для вас способ:",
		d.Code, utils.FormatUSD(d.AmountUSD))
	return models.Notification{Text: text, Keyboard: PaymentMethodKeyboard(d.ID, methods)}
}

func methodSelectedNotice(d *models.Deal, method models.PaymentMethod) models.Notification {
	text := fmt.Sprintf("💳 <b>Покупатель выбрал способ оплаты</b>\n\n"+
		"💼 Сделка: #%s\n💰 Сумма: %s\n🔗 Способ: %s\n\n⏳ Ожидайте подтверждения оплаты от покупателя.",
		d.Code, utils.FormatUSD(d.AmountUSD), method)
	return models.Notification{Text: text, Keyboard: dealKeyboard(d.ID)}
}

func completedNotice(d *models.Deal, forPayer bool) models.Notification {
	var text string
	if forPayer {
		text = fmt.Sprintf("✅ <b>Оплата подтверждена!</b>\n\n💼 Сделка #%s завершена\n💰 Сумма: %s\n\n"+
			"🎉 Спасибо за использование OZER GARANT!", d.Code, utils.FormatUSD(d.AmountUSD))
	} else {
		text = fmt.Sprintf("✅ <b>Сделка завершена!</b>\n\n💼 Сделка #%s\n💰 Сумма: %s\n\n"+
			"🎉 Покупатель подтвердил оплату!\n💼 Вы можете передать товар/услугу покупателю.", d.Code, utils.FormatUSD(d.AmountUSD))
	}
	return models.Notification{Text: text, Keyboard: dealKeyboard(d.ID)}
}

// FormatInstructions renders what the payer has to transfer.
func FormatInstructions(code string, pi *PaymentInstructions) string {
	return fmt.Sprintf("💳 <b>Оплата сделки #%s</b>\n\n"+
		"💰 Сумма: %s\n🔗 Способ: %s\n📍 Адрес: <code>%s</code>\n\n"+
		"⚠️ <b>ВАЖНО:</b>\n• Переводите ТОЧНУЮ сумму: %s\n• Сохраните чек/подтверждение оплаты\n"+
		"• После оплаты нажмите \"✅ Я оплатил\"\n\n📱 Ссылка для кошелька:\n<code>%s</code>",
		code, utils.FormatUSD(pi.Amount), pi.Method, html.EscapeString(pi.Address),
		utils.FormatUSD(pi.Amount), html.EscapeString(pi.URI))
}

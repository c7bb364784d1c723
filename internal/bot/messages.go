package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"ozergarant/internal/models"
	"ozergarant/internal/services"
	"ozergarant/internal/utils"
)

const (
	msgWelcome = "🎉 <b>Добро пожаловать в OZER GARANT!</b>\n\n" +
		"🔐 Безопасная площадка для проведения сделок с гарантией!\n\n" +
		"💼 <b>Возможности бота:</b>\n" +
		"• Создание безопасных сделок\n" +
		"• Гарантийная система\n" +
		"• Поддержка TRC20 USDT и TON\n" +
		"• 24/7 техническая поддержка\n\n" +
		"👇 Используйте меню для навигации:"

	msgCaptchaSolved  = "✅ <b>Капча пройдена успешно!</b>\n\nТеперь вы можете пользоваться всеми функциями бота."
	msgCaptchaLocked  = "❌ <b>Капча не пройдена!</b>\n\nПревышено максимальное количество попыток.\nНажмите /start для повторной попытки."
	msgCaptchaExpired = "❌ Сессия капчи истекла!"
	msgAlreadyPassed  = "✅ Вы уже прошли проверку."

	msgNotVerified = "❌ Для работы со сделками необходимо пройти верификацию.\nНажмите /start для прохождения капчи."
	msgUseMenu     = "🏠 <b>Главное меню</b>\n\nВыберите действие:"
	msgCancelled   = "❌ Действие отменено.\n\nИспользуйте меню для выбора другого действия."
	msgChooseRole  = "💼 <b>Создание новой сделки</b>\n\nВыберите вашу роль в сделке:"
	msgRoleButtons = "👆 Выберите роль кнопками выше или нажмите «Отмена»."
	msgNoDeals     = "📋 <b>Мои сделки</b>\n\nУ вас пока нет сделок.\nНажмите «" + menuCreateDeal + "» для создания первой сделки."
	msgDealsList   = "📋 <b>Мои сделки</b>\n\nВыберите сделку для просмотра:"
	msgInDevelop   = "🔄 Функция в разработке"
	msgPaidAlert   = "✅ Сделка завершена успешно!"
	msgGeneric     = "⚠️ Произошла ошибка. Попробуйте позже."

	msgFAQ = "❓ <b>Часто задаваемые вопросы</b>\n\n" +
		"<b>Q: Как создать сделку?</b>\nA: Нажмите «" + menuCreateDeal + "», выберите роль, укажите сумму, условия и пароль.\n\n" +
		"<b>Q: Как присоединиться к сделке?</b>\nA: Перейдите по ссылке от создателя и введите пароль сделки.\n\n" +
		"<b>Q: Какие способы оплаты поддерживаются?</b>\nA: TRC20 USDT и TON.\n\n" +
		"<b>Q: Сколько времени действует сделка?</b>\nA: 24 часа с момента создания.\n\n" +
		"<b>Q: Есть ли комиссия?</b>\nA: Сервис бесплатный, комиссия только сети."
)

func captchaText(question string) string {
	return "🛡️ <b>Добро пожаловать в OZER GARANT!</b>\n\nДля продолжения работы пройдите проверку:\n\n" + html.EscapeString(question)
}

func captchaRetryText(remaining int) string {
	return fmt.Sprintf("❌ Неправильный ответ! Осталось попыток: %d", remaining)
}

func supportText(username string) string {
	return "🆘 <b>Техническая поддержка</b>\n\n" +
		"📞 <b>Контакты поддержки:</b>\n" +
		"• Telegram: @" + html.EscapeString(username) + "\n" +
		"• Время работы: 24/7\n\n" +
		"💡 <b>Полезные советы:</b>\n" +
		"• Всегда проверяйте данные партнера\n" +
		"• Не передавайте пароли сделки третьим лицам\n" +
		"• Сохраняйте доказательства оплаты"
}

func askAmountText(role models.DealRole, maxAmount float64) string {
	return fmt.Sprintf("💼 <b>Создание сделки</b>\n\n👤 Роль: %s\n\n💰 Введите сумму сделки в USD:\n(Максимум: %s)",
		services.RoleLabel(role), utils.FormatUSD(maxAmount))
}

func askTermsText(amount float64) string {
	return fmt.Sprintf("💼 <b>Создание сделки</b>\n\n💰 Сумма: %s\n\n📋 Введите условия сделки:\n"+
		"(Опишите что продаете/покупаете, условия передачи товара/услуги)", utils.FormatUSD(amount))
}

func askPasswordText() string {
	return fmt.Sprintf("🔐 Введите пароль для сделки:\n(%d-%d символов, этот пароль понадобится партнеру для присоединения)",
		services.PasswordMinLen, services.PasswordMaxLen)
}

func dealCreatedText(d *models.Deal, password, link string) string {
	var b strings.Builder
	b.WriteString("✅ <b>Сделка создана успешно!</b>\n\n")
	fmt.Fprintf(&b, "💼 <b>Код сделки:</b> <code>%s</code>\n", d.Code)
	fmt.Fprintf(&b, "👤 <b>Ваша роль:</b> %s\n", services.RoleLabel(d.CreatorRole))
	fmt.Fprintf(&b, "💰 <b>Сумма:</b> %s\n", utils.FormatUSD(d.AmountUSD))
	fmt.Fprintf(&b, "🔐 <b>Пароль:</b> <code>%s</code>\n\n", html.EscapeString(password))
	if link != "" {
		fmt.Fprintf(&b, "🔗 <b>Ссылка для партнера:</b>\n%s\n\n", link)
	}
	fmt.Fprintf(&b, "⏰ <b>Сделка активна до:</b> %s\n\n", d.ExpiresAt.Format("02.01.2006 15:04"))
	b.WriteString("📝 <b>Как пригласить партнера:</b>\n1. Отправьте ему ссылку выше\n2. Партнер должен ввести пароль сделки\n3. После присоединения начнется процесс сделки")
	return b.String()
}

func joinPreviewText(d *models.Deal) string {
	return fmt.Sprintf("💼 <b>Присоединение к сделке #%s</b>\n\n"+
		"👤 <b>Роль создателя:</b> %s\n👤 <b>Ваша роль:</b> %s\n💰 <b>Сумма:</b> %s\n📋 <b>Условия:</b> %s\n⏰ <b>Истекает:</b> %s\n\n"+
		"🔐 <b>Введите пароль сделки для присоединения:</b>",
		d.Code, services.RoleLabel(d.CreatorRole), services.RoleLabel(d.CreatorRole.Counterpart()),
		utils.FormatUSD(d.AmountUSD), html.EscapeString(d.Terms), d.ExpiresAt.Format("02.01.2006 15:04"))
}

func joinedText(d *models.Deal) string {
	return fmt.Sprintf("✅ <b>Вы успешно присоединились к сделке!</b>\n\n"+
		"💼 <b>Сделка:</b> #%s\n👤 <b>Ваша роль:</b> %s\n💰 <b>Сумма:</b> %s\n\n"+
		"🔄 Вы получите уведомление при изменении статуса сделки.",
		d.Code, services.RoleLabel(d.CreatorRole.Counterpart()), utils.FormatUSD(d.AmountUSD))
}

// errorText maps service errors to what the user sees. ok is false for
// unexpected failures, which the caller logs.
func errorText(err error, supportUsername string) (text string, ok bool) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		switch ve.Field {
		case "amount":
			return "❌ Неверная сумма!\n\nВведите положительное число не больше лимита, например 150 или 1,000.50:", true
		case "terms":
			return fmt.Sprintf("❌ Условия сделки должны содержать от %d до %d символов.\n\nОпишите условия ещё раз:",
				services.TermsMinLen, services.TermsMaxLen), true
		case "password":
			return fmt.Sprintf("❌ Неверный пароль!\n\nПароль должен содержать от %d до %d символов:",
				services.PasswordMinLen, services.PasswordMaxLen), true
		}
		return "❌ Некорректные данные: " + html.EscapeString(ve.Error()), true
	}
	var se *services.InvalidStateError
	if errors.As(err, &se) {
		return "❌ Сделка " + services.StatusReason(se.Current) + "!", true
	}
	switch {
	case errors.Is(err, services.ErrNotVerified):
		return msgNotVerified, true
	case errors.Is(err, services.ErrBanned):
		return "⛔ Ваш аккаунт заблокирован. Обратитесь в поддержку: @" + html.EscapeString(supportUsername), true
	case errors.Is(err, services.ErrNotFound):
		return "❌ Сделка не найдена!\n\nВозможно, ссылка неверная или сделка была удалена.", true
	case errors.Is(err, services.ErrSelfJoin):
		return "❌ Вы не можете присоединиться к собственной сделке!\n\nПоделитесь ссылкой с партнером.", true
	case errors.Is(err, services.ErrExpired):
		return "❌ Срок действия сделки истек!", true
	case errors.Is(err, services.ErrAuth):
		return "❌ Неверный пароль!\n\nПопробуйте еще раз:", true
	case errors.Is(err, services.ErrForbidden):
		return "❌ Это действие доступно только покупателю сделки.", true
	case errors.Is(err, services.ErrUnsupportedMethod):
		return "❌ Этот способ оплаты недоступен.", true
	case errors.Is(err, services.ErrTransitionNotSupported):
		return msgInDevelop, true
	case errors.Is(err, services.ErrInvalidState):
		return "❌ Сейчас это действие недоступно.", true
	}
	return msgGeneric, false
}

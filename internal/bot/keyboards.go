package bot

import (
	"strconv"

	"ozergarant/internal/models"
	"ozergarant/internal/services"
	"ozergarant/internal/utils"
)

// Main menu buttons; the reply keyboard sends their text back as a message.
const (
	menuCreateDeal = "💼 Создать сделку"
	menuProfile    = "👤 Профиль"
	menuMyDeals    = "📋 Мои сделки"
	menuSupport    = "🆘 Поддержка"
)

var mainMenuRows = [][]string{
	{menuCreateDeal},
	{menuProfile, menuMyDeals},
	{menuSupport},
}

func captchaKeyboard(sessionID int64, display []string) models.Keyboard {
	id := strconv.FormatInt(sessionID, 10)
	var kb models.Keyboard
	// two buttons per row
	for i := 0; i < len(display); i += 2 {
		var row []models.Intent
		for j := i; j < i+2 && j < len(display); j++ {
			row = append(row, models.Intent{
				Action:  models.IntentCaptchaAnswer,
				Label:   display[j],
				Payload: models.JoinPayload(id, strconv.Itoa(j)),
			})
		}
		kb = append(kb, row)
	}
	return kb
}

func roleKeyboard() models.Keyboard {
	return models.Keyboard{
		{
			{Action: models.IntentRole, Label: services.RoleLabel(models.RoleBuyer), Payload: string(models.RoleBuyer)},
			{Action: models.IntentRole, Label: services.RoleLabel(models.RoleSeller), Payload: string(models.RoleSeller)},
		},
		{{Action: models.IntentCancelWorkflow, Label: "❌ Отмена"}},
	}
}

func cancelKeyboard() models.Keyboard {
	return models.Keyboard{{{Action: models.IntentCancelWorkflow, Label: "❌ Отмена"}}}
}

func supportKeyboard(supportUsername string) models.Keyboard {
	return models.Keyboard{
		{{Action: models.IntentURL, Label: "💬 Написать в поддержку", Payload: "https://t.me/" + supportUsername}},
		{{Action: models.IntentShowFAQ, Label: "❓ FAQ"}},
		{{Action: models.IntentBackToMenu, Label: "🏠 Главное меню"}},
	}
}

// dealsKeyboard lists at most maxListed deals, newest first.
func dealsKeyboard(deals []*models.Deal) models.Keyboard {
	const maxListed = 10
	var kb models.Keyboard
	for i, d := range deals {
		if i == maxListed {
			break
		}
		label := "#" + d.Code + " • " + utils.FormatUSD(d.AmountUSD) + " • " + services.StatusLabel(d.Status)
		kb = append(kb, []models.Intent{{
			Action:  models.IntentShowDeal,
			Label:   label,
			Payload: strconv.FormatInt(d.ID, 10),
		}})
	}
	kb = append(kb, []models.Intent{{Action: models.IntentBackToMenu, Label: "🏠 Главное меню"}})
	return kb
}

// dealActions are the buttons under a deal card for viewerID.
func dealActions(d *models.Deal, viewerID int64, methods []models.PaymentMethod) models.Keyboard {
	var kb models.Keyboard
	if d.PayerID() == viewerID {
		switch d.Status {
		case models.DealJoined:
			kb = append(kb, services.PaymentMethodKeyboard(d.ID, methods)...)
		case models.DealPaymentPending:
			kb = append(kb, services.PaymentDoneKeyboard(d.ID)...)
			return kb
		}
	}
	if !d.Status.Terminal() && d.Status != models.DealPaymentPending {
		kb = append(kb, []models.Intent{{
			Action: models.IntentCancelDeal, Label: "❌ Отменить сделку", Payload: strconv.FormatInt(d.ID, 10),
		}})
	}
	return kb
}

func openDealKeyboard(dealID int64) models.Keyboard {
	return models.Keyboard{{
		{Action: models.IntentShowDeal, Label: "📄 Открыть сделку", Payload: strconv.FormatInt(dealID, 10)},
	}}
}

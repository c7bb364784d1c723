package services

import (
	"fmt"
	"html"
	"strconv"

	"gopkg.in/gomail.v2"

	"ozergarant/internal/models"
	"ozergarant/internal/utils"
)

// EmailService sends operator alerts. Deal parties never get e-mail.
type EmailService interface {
	SendDealCompleted(deal *models.Deal) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail, alertsTo string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		dialer: dialer,
		from:   fromEmail,
		to:     alertsTo,
	}
}

func (s *emailService) SendDealCompleted(deal *models.Deal) error {
	if err := s.dialer.DialAndSend(dealCompletedMessage(s.from, s.to, deal)); err != nil {
		return fmt.Errorf("failed to send deal alert: %w", err)
	}
	return nil
}

func dealCompletedMessage(from, to string, deal *models.Deal) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Сделка #"+deal.Code+" завершена")

	method := "—"
	if deal.PaymentMethod != nil {
		method = string(*deal.PaymentMethod)
	}
	proof := "—"
	if deal.PaymentProof != nil && *deal.PaymentProof != "" {
		proof = *deal.PaymentProof
	}
	participant := "—"
	if deal.ParticipantID != nil {
		participant = strconv.FormatInt(*deal.ParticipantID, 10)
	}

	body := fmt.Sprintf(`
		<h3>Сделка #%s завершена</h3>
		<p>Сумма: <strong>%s</strong>, способ оплаты: %s</p>
		<p>Создатель: %d (%s), участник: %s</p>
		<p>Отметка об оплате: %s</p>
		<p>Условия:<br>%s</p>
	`,
		html.EscapeString(deal.Code), utils.FormatUSD(deal.AmountUSD), html.EscapeString(method),
		deal.CreatorID, deal.CreatorRole, participant,
		html.EscapeString(proof), html.EscapeString(deal.Terms),
	)
	m.SetBody("text/html", body)
	return m
}

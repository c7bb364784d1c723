// Package bot adapts Telegram updates to the verification, deal and
// workflow services.
package bot

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/services"
	"ozergarant/internal/utils"
)

const deepLinkPrefix = "deal_"

// Sender is the outbound side; services.TelegramService implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb models.Keyboard) error
	SendReplyKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb models.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

type Deps struct {
	Users        services.UserService
	Verification services.VerificationService
	Deals        services.DealService
	Workflow     services.WorkflowService
	Out          Sender
	Log          logging.Logger

	BotUsername     string
	SupportUsername string
	Methods         []models.PaymentMethod
	MaxAmount       float64
	Now             func() time.Time
}

type Dispatcher struct {
	users    services.UserService
	verify   services.VerificationService
	deals    services.DealService
	workflow services.WorkflowService
	out      Sender
	log      logging.Logger

	botUsername string
	support     string
	methods     []models.PaymentMethod
	maxAmount   float64
	now         func() time.Time
}

func NewDispatcher(d Deps) *Dispatcher {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		users:       d.Users,
		verify:      d.Verification,
		deals:       d.Deals,
		workflow:    d.Workflow,
		out:         d.Out,
		log:         d.Log.With("component", "dispatcher"),
		botUsername: d.BotUsername,
		support:     d.SupportUsername,
		methods:     d.Methods,
		maxAmount:   d.MaxAmount,
		now:         now,
	}
}

// request carries the per-update identity and logger.
type request struct {
	log       logging.Logger
	chatID    int64
	userID    int64
	messageID int
}

// UserID returns the sender of an update, 0 when it has none.
func UserID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	}
	return 0
}

// Handle processes one update. Errors are reported to the user and logged,
// never returned.
func (d *Dispatcher) Handle(ctx context.Context, upd tgbotapi.Update) {
	log := d.log.With("update_id", upd.UpdateID, "request_id", uuid.NewString())
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		m := upd.Message
		r := request{log: log.With("user_id", m.From.ID), chatID: m.Chat.ID, userID: m.From.ID, messageID: m.MessageID}
		d.onMessage(ctx, r, m)
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		cq := upd.CallbackQuery
		r := request{log: log.With("user_id", cq.From.ID), chatID: cq.From.ID, userID: cq.From.ID}
		if cq.Message != nil {
			r.chatID = cq.Message.Chat.ID
			r.messageID = cq.Message.MessageID
		}
		d.onCallback(ctx, r, cq)
	default:
		log.Debug(ctx, "update ignored")
	}
}

func profileOf(u *tgbotapi.User) models.Profile {
	return models.Profile{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

// ---- messages

func (d *Dispatcher) onMessage(ctx context.Context, r request, m *tgbotapi.Message) {
	if m.IsCommand() {
		switch m.Command() {
		case "start":
			d.onStart(ctx, r, profileOf(m.From), strings.TrimSpace(m.CommandArguments()))
		case "cancel":
			d.cancelWorkflow(ctx, r)
			d.sendMenu(ctx, r, msgCancelled)
		case "help":
			d.send(ctx, r, msgFAQ, nil)
		default:
			d.sendMenu(ctx, r, msgUseMenu)
		}
		return
	}

	text := strings.TrimSpace(m.Text)
	if text == menuSupport {
		d.send(ctx, r, supportText(d.support), supportKeyboard(d.support))
		return
	}
	if _, err := d.users.RequireActive(ctx, r.userID); err != nil {
		d.fail(ctx, r, err)
		return
	}

	switch text {
	case menuCreateDeal:
		if _, err := d.workflow.Advance(ctx, r.userID, models.ActionCreateRole, models.WorkflowData{}); err != nil {
			d.fail(ctx, r, err)
			return
		}
		d.send(ctx, r, msgChooseRole, roleKeyboard())
		return
	case menuProfile:
		u, err := d.users.Get(ctx, r.userID)
		if err != nil {
			d.fail(ctx, r, err)
			return
		}
		d.send(ctx, r, services.FormatProfile(u), nil)
		return
	case menuMyDeals:
		d.showDeals(ctx, r)
		return
	}

	ws, err := d.workflow.Current(ctx, r.userID)
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	switch ws.Action {
	case models.ActionCreateRole:
		d.send(ctx, r, msgRoleButtons, nil)
	case models.ActionCreateAmount:
		d.onAmount(ctx, r, ws, text)
	case models.ActionCreateTerms:
		d.onTerms(ctx, r, ws, text)
	case models.ActionCreatePassword:
		d.onCreatePassword(ctx, r, ws, text)
	case models.ActionJoinPassword:
		d.onJoinPassword(ctx, r, ws, text)
	default:
		if code := strings.ToUpper(text); utils.IsDealCode(code) {
			d.startJoin(ctx, r, code)
			return
		}
		d.sendMenu(ctx, r, msgUseMenu)
	}
}

func (d *Dispatcher) onStart(ctx context.Context, r request, p models.Profile, arg string) {
	res, err := d.verify.Start(ctx, p)
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	if res.Outcome != services.OutcomeAlreadyVerified {
		r.log.Info(ctx, "captcha issued", "session_id", res.SessionID)
		d.sendCaptcha(ctx, r, res)
		return
	}
	if code, ok := strings.CutPrefix(arg, deepLinkPrefix); ok && code != "" {
		d.startJoin(ctx, r, strings.ToUpper(code))
		return
	}
	d.sendMenu(ctx, r, msgWelcome)
}

func (d *Dispatcher) startJoin(ctx context.Context, r request, code string) {
	deal, err := d.deals.Preview(ctx, code, r.userID)
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	data := models.WorkflowData{DealCode: deal.Code, DealID: deal.ID}
	if _, err := d.workflow.Advance(ctx, r.userID, models.ActionJoinPassword, data); err != nil {
		d.fail(ctx, r, err)
		return
	}
	d.send(ctx, r, joinPreviewText(deal), cancelKeyboard())
}

func (d *Dispatcher) onAmount(ctx context.Context, r request, ws *models.WorkflowSession, text string) {
	amount, err := utils.ParseAmount(text)
	if err == nil {
		err = d.deals.ValidateAmount(amount)
	} else {
		err = &services.ValidationError{Field: "amount", Reason: "not a number"}
	}
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	data := ws.Data
	data.Amount = amount
	if _, err := d.workflow.Advance(ctx, r.userID, models.ActionCreateTerms, data); err != nil {
		d.fail(ctx, r, err)
		return
	}
	d.send(ctx, r, askTermsText(amount), cancelKeyboard())
}

func (d *Dispatcher) onTerms(ctx context.Context, r request, ws *models.WorkflowSession, text string) {
	terms, err := d.deals.ValidateTerms(text)
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	data := ws.Data
	data.Terms = terms
	if _, err := d.workflow.Advance(ctx, r.userID, models.ActionCreatePassword, data); err != nil {
		d.fail(ctx, r, err)
		return
	}
	d.send(ctx, r, askPasswordText(), cancelKeyboard())
}

func (d *Dispatcher) onCreatePassword(ctx context.Context, r request, ws *models.WorkflowSession, password string) {
	if err := d.deals.ValidatePassword(password); err != nil {
		d.fail(ctx, r, err)
		return
	}
	deal, err := d.deals.Create(ctx, services.CreateDealInput{
		CreatorID: r.userID,
		Role:      ws.Data.Role,
		Amount:    ws.Data.Amount,
		Terms:     ws.Data.Terms,
		Password:  password,
	})
	if err != nil {
		var ve *services.ValidationError
		if !errors.As(err, &ve) || ve.Field != "password" {
			// ввод уже не исправить на этом шаге
			d.cancelWorkflow(ctx, r)
		}
		d.fail(ctx, r, err)
		return
	}
	d.cancelWorkflow(ctx, r)
	link := ""
	if d.botUsername != "" {
		link = utils.DealLink(d.botUsername, deal.Code)
	}
	d.send(ctx, r, dealCreatedText(deal, password, link), openDealKeyboard(deal.ID))
}

func (d *Dispatcher) onJoinPassword(ctx context.Context, r request, ws *models.WorkflowSession, password string) {
	deal, err := d.deals.Join(ctx, ws.Data.DealCode, r.userID, password)
	if err != nil {
		// wrong password keeps the step so the user can retry
		if !errors.Is(err, services.ErrAuth) {
			d.cancelWorkflow(ctx, r)
		}
		d.fail(ctx, r, err)
		return
	}
	d.cancelWorkflow(ctx, r)
	d.send(ctx, r, joinedText(deal), openDealKeyboard(deal.ID))
}

func (d *Dispatcher) showDeals(ctx context.Context, r request) {
	deals, err := d.deals.ListForUser(ctx, r.userID)
	if err != nil {
		d.fail(ctx, r, err)
		return
	}
	if len(deals) == 0 {
		d.send(ctx, r, msgNoDeals, nil)
		return
	}
	d.send(ctx, r, msgDealsList, dealsKeyboard(deals))
}

// ---- callbacks

// callbackReply is the toast shown for the pressed button.
type callbackReply struct {
	text  string
	alert bool
}

func (d *Dispatcher) onCallback(ctx context.Context, r request, cq *tgbotapi.CallbackQuery) {
	action, payload := services.DecodeCallback(cq.Data)
	r.log = r.log.With("action", action)

	reply := d.routeCallback(ctx, r, cq, action, payload)
	if err := d.out.AnswerCallback(ctx, cq.ID, reply.text, reply.alert); err != nil {
		r.log.Warn(ctx, "answer callback failed", "error", err)
	}
}

func (d *Dispatcher) routeCallback(ctx context.Context, r request, cq *tgbotapi.CallbackQuery, action, payload string) callbackReply {
	switch action {
	case models.IntentCaptchaAnswer:
		return d.onCaptchaAnswer(ctx, r, payload)
	case models.IntentRole:
		return d.onRole(ctx, r, payload)
	case models.IntentPaymentMethod:
		return d.onPaymentMethod(ctx, r, payload)
	case models.IntentPaymentDone:
		return d.onPaymentDone(ctx, r, payload)
	case models.IntentShowDeal:
		return d.onShowDeal(ctx, r, payload)
	case models.IntentCancelWorkflow:
		d.cancelWorkflow(ctx, r)
		d.edit(ctx, r, msgCancelled, nil)
		return callbackReply{}
	case models.IntentCancelDeal:
		id, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return d.callbackFail(ctx, r, services.ErrNotFound)
		}
		return d.callbackFail(ctx, r, d.deals.Cancel(ctx, id, r.userID))
	case models.IntentShowFAQ:
		d.edit(ctx, r, msgFAQ, models.Keyboard{{{Action: models.IntentBackToMenu, Label: "🏠 Главное меню"}}})
		return callbackReply{}
	case models.IntentBackToMenu:
		d.sendMenu(ctx, r, msgUseMenu)
		return callbackReply{}
	}
	r.log.Warn(ctx, "unknown callback", "data", cq.Data)
	return callbackReply{text: msgGeneric}
}

func (d *Dispatcher) onCaptchaAnswer(ctx context.Context, r request, payload string) callbackReply {
	parts := models.SplitPayload(payload)
	if len(parts) != 2 {
		return callbackReply{text: msgCaptchaExpired, alert: true}
	}
	sessionID, err1 := strconv.ParseInt(parts[0], 10, 64)
	idx, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return callbackReply{text: msgCaptchaExpired, alert: true}
	}

	res, err := d.verify.Answer(ctx, r.userID, sessionID, idx)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return callbackReply{text: msgCaptchaExpired, alert: true}
		}
		return d.callbackFail(ctx, r, err)
	}

	switch res.Outcome {
	case services.OutcomeVerified:
		r.log.Info(ctx, "user verified")
		d.edit(ctx, r, msgCaptchaSolved, nil)
		d.sendMenu(ctx, r, msgWelcome)
		return callbackReply{text: "✅"}
	case services.OutcomeAlreadyVerified:
		d.sendMenu(ctx, r, msgUseMenu)
		return callbackReply{text: msgAlreadyPassed}
	case services.OutcomeRetry:
		return callbackReply{text: captchaRetryText(res.RemainingAttempts), alert: true}
	case services.OutcomeLocked:
		d.edit(ctx, r, msgCaptchaLocked, nil)
		return callbackReply{text: "❌"}
	default:
		if res.Challenge == nil {
			return callbackReply{text: msgCaptchaExpired, alert: true}
		}
		// a fresh challenge replaces the stale one in place
		d.edit(ctx, r, captchaText(res.Challenge.Question), captchaKeyboard(res.SessionID, res.Challenge.Display))
		return callbackReply{text: msgCaptchaExpired}
	}
}

func (d *Dispatcher) onRole(ctx context.Context, r request, payload string) callbackReply {
	role := models.DealRole(payload)
	if !role.Valid() {
		return d.callbackFail(ctx, r, &services.ValidationError{Field: "role", Reason: "must be buyer or seller"})
	}
	if _, err := d.users.RequireActive(ctx, r.userID); err != nil {
		return d.callbackFail(ctx, r, err)
	}
	if _, err := d.workflow.Advance(ctx, r.userID, models.ActionCreateAmount, models.WorkflowData{Role: role}); err != nil {
		return d.callbackFail(ctx, r, err)
	}
	d.edit(ctx, r, askAmountText(role, d.maxAmount), cancelKeyboard())
	return callbackReply{}
}

func (d *Dispatcher) onPaymentMethod(ctx context.Context, r request, payload string) callbackReply {
	parts := models.SplitPayload(payload)
	if len(parts) != 2 {
		return d.callbackFail(ctx, r, services.ErrNotFound)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return d.callbackFail(ctx, r, services.ErrNotFound)
	}
	pi, err := d.deals.SelectPaymentMethod(ctx, id, r.userID, models.PaymentMethod(parts[1]))
	if err != nil {
		return d.callbackFail(ctx, r, err)
	}
	d.edit(ctx, r, services.FormatInstructions(pi.DealCode, pi), services.PaymentDoneKeyboard(pi.DealID))
	return callbackReply{}
}

func (d *Dispatcher) onPaymentDone(ctx context.Context, r request, payload string) callbackReply {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return d.callbackFail(ctx, r, services.ErrNotFound)
	}
	deal, err := d.deals.AttestPayment(ctx, id, r.userID, "")
	if err != nil {
		return d.callbackFail(ctx, r, err)
	}
	d.edit(ctx, r, services.FormatDeal(deal, r.userID, d.now()), nil)
	return callbackReply{text: msgPaidAlert, alert: true}
}

func (d *Dispatcher) onShowDeal(ctx context.Context, r request, payload string) callbackReply {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return d.callbackFail(ctx, r, services.ErrNotFound)
	}
	if _, err := d.users.RequireActive(ctx, r.userID); err != nil {
		return d.callbackFail(ctx, r, err)
	}
	deal, err := d.deals.Get(ctx, id)
	if err == nil && !deal.IsParty(r.userID) {
		err = services.ErrNotFound
	}
	if err != nil {
		return d.callbackFail(ctx, r, err)
	}
	d.send(ctx, r, services.FormatDeal(deal, r.userID, d.now()), dealActions(deal, r.userID, d.methods))
	return callbackReply{}
}

// ---- output helpers

func (d *Dispatcher) send(ctx context.Context, r request, text string, kb models.Keyboard) {
	if err := d.out.SendMessage(ctx, r.chatID, text, kb); err != nil {
		r.log.Warn(ctx, "send failed", "error", err)
	}
}

func (d *Dispatcher) sendMenu(ctx context.Context, r request, text string) {
	if err := d.out.SendReplyKeyboard(ctx, r.chatID, text, mainMenuRows); err != nil {
		r.log.Warn(ctx, "send menu failed", "error", err)
	}
}

// edit falls back to a new message when the callback has no message.
func (d *Dispatcher) edit(ctx context.Context, r request, text string, kb models.Keyboard) {
	if r.messageID == 0 {
		d.send(ctx, r, text, kb)
		return
	}
	if err := d.out.EditMessage(ctx, r.chatID, r.messageID, text, kb); err != nil {
		r.log.Warn(ctx, "edit failed", "error", err)
	}
}

func (d *Dispatcher) sendCaptcha(ctx context.Context, r request, res *services.VerificationResult) {
	d.send(ctx, r, captchaText(res.Challenge.Question), captchaKeyboard(res.SessionID, res.Challenge.Display))
}

func (d *Dispatcher) cancelWorkflow(ctx context.Context, r request) {
	if err := d.workflow.Clear(ctx, r.userID); err != nil {
		r.log.Warn(ctx, "workflow clear failed", "error", err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, r request, err error) {
	text, ok := errorText(err, d.support)
	if !ok {
		r.log.Error(ctx, "operation failed", "error", err)
	} else {
		r.log.Debug(ctx, "operation rejected", "error", err)
	}
	d.send(ctx, r, text, nil)
}

func (d *Dispatcher) callbackFail(ctx context.Context, r request, err error) callbackReply {
	if err == nil {
		return callbackReply{}
	}
	text, ok := errorText(err, d.support)
	if !ok {
		r.log.Error(ctx, "operation failed", "error", err)
	}
	return callbackReply{text: stripTags(text), alert: true}
}

// stripTags — callback alerts are plain text.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}

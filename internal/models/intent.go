package models

import "strings"

// Intent is a transport-neutral button: the adapter decides how to draw it.
type Intent struct {
	Action  string
	Label   string
	Payload string
}

// Keyboard is rows of intents.
type Keyboard [][]Intent

// Notification is what the core hands to the notification port.
type Notification struct {
	Text     string
	Keyboard Keyboard
}

// Intent actions understood by the transport adapter.
const (
	IntentCaptchaAnswer  = "captcha"
	IntentRole           = "role"
	IntentPaymentMethod  = "pay"
	IntentPaymentDone    = "paid"
	IntentShowDeal       = "deal"
	IntentCancelWorkflow = "cancel"
	IntentCancelDeal     = "cancel_deal"
	IntentShowFAQ        = "faq"
	IntentBackToMenu     = "menu"
	IntentURL            = "url"
)

// JoinPayload / SplitPayload keep the payload layout in one place:
// colon-separated parts, e.g. "42:TRC20".
func JoinPayload(parts ...string) string {
	return strings.Join(parts, ":")
}

func SplitPayload(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ":")
}

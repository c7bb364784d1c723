package models

import (
	"time"
)

type DealStatus string

const (
	DealCreated        DealStatus = "created"
	DealJoined         DealStatus = "joined"
	DealPaymentPending DealStatus = "payment_pending"
	DealCompleted      DealStatus = "completed"
	DealCancelled      DealStatus = "cancelled"
	DealDisputed       DealStatus = "disputed"
)

func (s DealStatus) Terminal() bool {
	return s == DealCompleted || s == DealCancelled || s == DealDisputed
}

type DealRole string

const (
	RoleBuyer  DealRole = "buyer"
	RoleSeller DealRole = "seller"
)

func (r DealRole) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Counterpart is the role the joining participant ends up with.
func (r DealRole) Counterpart() DealRole {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

type PaymentMethod string

const (
	MethodTRC20 PaymentMethod = "TRC20"
	MethodTON   PaymentMethod = "TON"
)

type Deal struct {
	ID            int64          `json:"id"`
	Code          string         `json:"deal_code"`
	CreatorID     int64          `json:"creator_id"`
	ParticipantID *int64         `json:"participant_id,omitempty"`
	CreatorRole   DealRole       `json:"creator_role"`
	AmountUSD     float64        `json:"amount_usd"`
	Terms         string         `json:"deal_conditions"`
	PasswordHash  string         `json:"-"`
	Status        DealStatus     `json:"status"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
	PaymentProof  *string        `json:"payment_proof,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// PayerID — сторона-покупатель: создатель, если он buyer, иначе участник.
// Returns 0 while the buyer side has not joined yet.
func (d *Deal) PayerID() int64 {
	if d.CreatorRole == RoleBuyer {
		return d.CreatorID
	}
	if d.ParticipantID != nil {
		return *d.ParticipantID
	}
	return 0
}

// CounterpartyOf returns the other side of the deal for userID, 0 if unknown.
func (d *Deal) CounterpartyOf(userID int64) int64 {
	if userID == d.CreatorID {
		if d.ParticipantID != nil {
			return *d.ParticipantID
		}
		return 0
	}
	return d.CreatorID
}

func (d *Deal) IsParty(userID int64) bool {
	return userID == d.CreatorID || (d.ParticipantID != nil && *d.ParticipantID == userID)
}

// RoleOf is the role of userID inside the deal.
func (d *Deal) RoleOf(userID int64) DealRole {
	if userID == d.CreatorID {
		return d.CreatorRole
	}
	return d.CreatorRole.Counterpart()
}

func (d *Deal) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

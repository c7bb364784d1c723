package models

import "time"

// User — пользователь бота; ID совпадает с Telegram user id.
type User struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Verified        bool       `json:"is_verified"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	DealsCount      int        `json:"deals_count"`
	SuccessfulDeals int        `json:"successful_deals"`
	Rating          float64    `json:"rating"`
	Banned          bool       `json:"is_banned"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Profile is the subset of user fields the transport knows on every update.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

func (p Profile) User() *User {
	return &User{ID: p.ID, Username: p.Username, FirstName: p.FirstName, LastName: p.LastName}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

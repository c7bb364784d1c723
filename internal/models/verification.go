package models

import "time"

type ChallengeCategory string

const (
	CategoryColor    ChallengeCategory = "color"
	CategoryAnimal   ChallengeCategory = "animal"
	CategoryObject   ChallengeCategory = "object"
	CategoryNumber   ChallengeCategory = "number"
	CategoryMath     ChallengeCategory = "math"
	CategorySequence ChallengeCategory = "sequence"
)

var ChallengeCategories = []ChallengeCategory{
	CategoryColor, CategoryAnimal, CategoryObject, CategoryNumber, CategoryMath, CategorySequence,
}

// Challenge is a freshly generated puzzle. Options and Display are index-aligned;
// Display only decorates the option for rendering.
type Challenge struct {
	Category      ChallengeCategory
	Question      string
	CorrectAnswer string
	Options       []string
	Display       []string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// VerificationSession — одна выданная капча и её состояние.
// Options хранятся как были выданы: ответ сверяется только с ними.
type VerificationSession struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	Category      ChallengeCategory `json:"category"`
	CorrectAnswer string            `json:"-"`
	Options       []string          `json:"options"`
	Attempts      int               `json:"attempts"`
	Solved        bool              `json:"solved"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

func (s *VerificationSession) Active(now time.Time) bool {
	return s != nil && !s.Solved && now.Before(s.ExpiresAt)
}

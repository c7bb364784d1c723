package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
)

type VerificationOutcome string

const (
	OutcomeChallengeIssued VerificationOutcome = "challenge_issued"
	OutcomeReissued        VerificationOutcome = "reissued"
	OutcomeAlreadyVerified VerificationOutcome = "already_verified"
	OutcomeVerified        VerificationOutcome = "verified"
	OutcomeRetry           VerificationOutcome = "retry"
	OutcomeLocked          VerificationOutcome = "locked"
)

// VerificationResult — Challenge/SessionID заполнены только когда выдана
// новая капча (ChallengeIssued, Reissued).
type VerificationResult struct {
	Outcome           VerificationOutcome
	SessionID         int64
	Challenge         *models.Challenge
	RemainingAttempts int
}

type VerificationService interface {
	Start(ctx context.Context, p models.Profile) (*VerificationResult, error)
	Answer(ctx context.Context, userID, sessionID int64, optionIndex int) (*VerificationResult, error)
	IsVerified(ctx context.Context, userID int64) (bool, error)
}

type verificationService struct {
	users    repositories.UserRepository
	sessions repositories.VerificationRepository
	log      logging.Logger
	now      func() time.Time

	genMu sync.Mutex
	gen   *ChallengeGenerator

	maxAttempts int
}

func NewVerificationService(
	users repositories.UserRepository,
	sessions repositories.VerificationRepository,
	gen *ChallengeGenerator,
	maxAttempts int,
	log logging.Logger,
	now func() time.Time,
) VerificationService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if now == nil {
		now = time.Now
	}
	return &verificationService{
		users:       users,
		sessions:    sessions,
		gen:         gen,
		maxAttempts: maxAttempts,
		log:         log.With("component", "verification"),
		now:         now,
	}
}

func (s *verificationService) Start(ctx context.Context, p models.Profile) (*VerificationResult, error) {
	if p.ID == 0 {
		return nil, invalid("user_id", "required")
	}
	u, err := s.users.Upsert(ctx, p.User())
	if err != nil {
		return nil, persistence("verification start", err)
	}
	if u.Verified {
		return &VerificationResult{Outcome: OutcomeAlreadyVerified}, nil
	}
	return s.issue(ctx, p.ID, OutcomeChallengeIssued)
}

func (s *verificationService) Answer(ctx context.Context, userID, sessionID int64, optionIndex int) (*VerificationResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		// ответ пришёл раньше /start: регистрируем и выдаём капчу
		if _, err := s.users.Upsert(ctx, &models.User{ID: userID}); err != nil {
			return nil, persistence("verification answer", err)
		}
		return s.issue(ctx, userID, OutcomeReissued)
	case err != nil:
		return nil, persistence("verification answer", err)
	case u.Verified:
		return &VerificationResult{Outcome: OutcomeAlreadyVerified}, nil
	}

	now := s.now()
	active, err := s.sessions.GetActive(ctx, userID, now)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.issue(ctx, userID, OutcomeReissued)
	}
	if err != nil {
		return nil, persistence("verification answer", err)
	}
	// блокировку снимает только /start, старые кнопки тоже упираются в неё
	if active.Attempts >= s.maxAttempts {
		return &VerificationResult{Outcome: OutcomeLocked, SessionID: active.ID}, nil
	}
	if active.ID != sessionID {
		return s.issue(ctx, userID, OutcomeReissued)
	}
	if optionIndex < 0 || optionIndex >= len(active.Options) {
		return nil, invalid("option", "out of range")
	}

	if matchesAnswer(active.Options[optionIndex], active.CorrectAnswer) {
		ok, err := s.sessions.Solve(ctx, active.ID, userID, now, s.maxAttempts)
		if err != nil {
			return nil, persistence("verification solve", err)
		}
		if ok {
			s.log.Info(ctx, "user verified", "user_id", userID, "session_id", active.ID)
			return &VerificationResult{Outcome: OutcomeVerified, SessionID: active.ID}, nil
		}
		return s.afterLostRace(ctx, userID)
	}

	attempts, err := s.sessions.IncrementAttempts(ctx, active.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return s.afterLostRace(ctx, userID)
	}
	if err != nil {
		return nil, persistence("verification attempts", err)
	}
	if attempts >= s.maxAttempts {
		s.log.Info(ctx, "verification locked", "user_id", userID, "session_id", active.ID)
		return &VerificationResult{Outcome: OutcomeLocked, SessionID: active.ID}, nil
	}
	return &VerificationResult{
		Outcome:           OutcomeRetry,
		SessionID:         active.ID,
		RemainingAttempts: s.maxAttempts - attempts,
	}, nil
}

// afterLostRace handles a session that changed under us: either a parallel
// answer already verified the user or the session expired meanwhile.
func (s *verificationService) afterLostRace(ctx context.Context, userID int64) (*VerificationResult, error) {
	verified, err := s.IsVerified(ctx, userID)
	if err != nil {
		return nil, err
	}
	if verified {
		return &VerificationResult{Outcome: OutcomeAlreadyVerified}, nil
	}
	return s.issue(ctx, userID, OutcomeReissued)
}

func (s *verificationService) IsVerified(ctx context.Context, userID int64) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, persistence("is verified", err)
	}
	return u.Verified, nil
}

func (s *verificationService) issue(ctx context.Context, userID int64, outcome VerificationOutcome) (*VerificationResult, error) {
	s.genMu.Lock()
	ch := s.gen.Generate(s.now())
	s.genMu.Unlock()

	id, err := s.sessions.Create(ctx, &models.VerificationSession{
		UserID:        userID,
		Category:      ch.Category,
		CorrectAnswer: ch.CorrectAnswer,
		Options:       ch.Options,
		CreatedAt:     ch.CreatedAt,
		ExpiresAt:     ch.ExpiresAt,
	})
	if err != nil {
		return nil, persistence("verification issue", err)
	}
	s.log.Debug(ctx, "challenge issued", "user_id", userID, "session_id", id, "category", ch.Category)
	return &VerificationResult{Outcome: outcome, SessionID: id, Challenge: &ch}, nil
}

func matchesAnswer(given, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(correct))
}

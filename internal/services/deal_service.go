package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
	"ozergarant/internal/utils"
)

const (
	TermsMinLen    = 10
	TermsMaxLen    = 1000
	PasswordMinLen = 4
	PasswordMaxLen = 50

	codeAttempts = 5
)

type CreateDealInput struct {
	CreatorID int64
	Role      models.DealRole
	Amount    float64
	Terms     string
	Password  string
}

type DealService interface {
	Create(ctx context.Context, in CreateDealInput) (*models.Deal, error)
	// Preview runs the join checks except the password one.
	Preview(ctx context.Context, code string, participantID int64) (*models.Deal, error)
	Join(ctx context.Context, code string, participantID int64, password string) (*models.Deal, error)
	SelectPaymentMethod(ctx context.Context, dealID, actorID int64, method models.PaymentMethod) (*PaymentInstructions, error)
	AttestPayment(ctx context.Context, dealID, actorID int64, note string) (*models.Deal, error)
	Cancel(ctx context.Context, dealID, actorID int64) error
	OpenDispute(ctx context.Context, dealID, actorID int64, reason string) error
	Get(ctx context.Context, dealID int64) (*models.Deal, error)
	GetByCode(ctx context.Context, code string) (*models.Deal, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.Deal, error)
	// ValidateAmount / ValidateTerms / ValidatePassword let the dialog
	// re-prompt on the step that failed instead of at the very end.
	ValidateAmount(amount float64) error
	ValidateTerms(terms string) (string, error)
	ValidatePassword(password string) error
}

type DealConfig struct {
	TTL       time.Duration
	MaxAmount float64
}

type dealService struct {
	deals    repositories.DealRepository
	users    repositories.UserRepository
	gate     UserService
	payments PaymentResolver
	notify   *bestEffort
	email    EmailService
	log      logging.Logger
	now      func() time.Time
	newCode  func() (string, error)
	cfg      DealConfig
}

func NewDealService(
	deals repositories.DealRepository,
	users repositories.UserRepository,
	gate UserService,
	payments PaymentResolver,
	notifier Notifier,
	email EmailService,
	cfg DealConfig,
	log logging.Logger,
	now func() time.Time,
) DealService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = 100000
	}
	if now == nil {
		now = time.Now
	}
	return &dealService{
		deals:    deals,
		users:    users,
		gate:     gate,
		payments: payments,
		notify:   newBestEffort(notifier, log),
		email:    email,
		log:      log.With("component", "deals"),
		now:      now,
		newCode:  utils.NewDealCode,
		cfg:      cfg,
	}
}

func (s *dealService) ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return invalid("amount", "must be a finite number")
	}
	if amount <= 0 {
		return invalid("amount", "must be positive")
	}
	if amount > s.cfg.MaxAmount {
		return invalid("amount", fmt.Sprintf("must not exceed %s", utils.FormatUSD(s.cfg.MaxAmount)))
	}
	return nil
}

func (s *dealService) ValidateTerms(terms string) (string, error) {
	terms = strings.TrimSpace(terms)
	n := utf8.RuneCountInString(terms)
	if n < TermsMinLen {
		return "", invalid("terms", "too short")
	}
	if n > TermsMaxLen {
		return "", invalid("terms", "too long")
	}
	return terms, nil
}

func (s *dealService) ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLen || n > PasswordMaxLen {
		return invalid("password", fmt.Sprintf("length must be %d-%d", PasswordMinLen, PasswordMaxLen))
	}
	return nil
}

func (s *dealService) Create(ctx context.Context, in CreateDealInput) (*models.Deal, error) {
	if _, err := s.gate.RequireActive(ctx, in.CreatorID); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "must be buyer or seller")
	}
	amount := utils.RoundCents(in.Amount)
	if err := s.ValidateAmount(amount); err != nil {
		return nil, err
	}
	terms, err := s.ValidateTerms(in.Terms)
	if err != nil {
		return nil, err
	}
	if err := s.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := utils.HashDealPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash deal password: %w", err)
	}

	now := s.now()
	deal := &models.Deal{
		CreatorID:    in.CreatorID,
		CreatorRole:  in.Role,
		AmountUSD:    amount,
		Terms:        terms,
		PasswordHash: hash,
		Status:       models.DealCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
	}

	for attempt := 1; attempt <= codeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate deal code: %w", err)
		}
		deal.Code = code
		id, err := s.deals.Create(ctx, deal)
		if errors.Is(err, repositories.ErrDuplicateCode) {
			s.log.Warn(ctx, "deal code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, persistence("create deal", err)
		}
		deal.ID = id
		s.log.Info(ctx, "deal created", "deal_id", id, "deal_code", code, "creator_id", in.CreatorID)
		return deal, nil
	}
	return nil, ErrCodeGeneration
}

// checkJoinable — порядок проверок важен: его видит пользователь.
func (s *dealService) checkJoinable(ctx context.Context, code string, participantID int64) (*models.Deal, error) {
	if _, err := s.gate.RequireActive(ctx, participantID); err != nil {
		return nil, err
	}
	deal, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if deal.CreatorID == participantID {
		return nil, ErrSelfJoin
	}
	if deal.Status != models.DealCreated {
		return nil, &InvalidStateError{Current: deal.Status, Required: models.DealCreated}
	}
	if deal.Expired(s.now()) {
		return nil, ErrExpired
	}
	return deal, nil
}

func (s *dealService) Preview(ctx context.Context, code string, participantID int64) (*models.Deal, error) {
	return s.checkJoinable(ctx, code, participantID)
}

func (s *dealService) Join(ctx context.Context, code string, participantID int64, password string) (*models.Deal, error) {
	deal, err := s.checkJoinable(ctx, code, participantID)
	if err != nil {
		return nil, err
	}
	if !utils.CheckDealPassword(password, deal.PasswordHash) {
		return nil, ErrAuth
	}

	now := s.now()
	ok, err := s.deals.Join(ctx, deal.ID, participantID, models.DealCreated, now)
	if err != nil {
		return nil, persistence("join deal", err)
	}
	if !ok {
		return nil, s.stateConflict(ctx, deal.ID, models.DealCreated)
	}

	deal.ParticipantID = &participantID
	deal.Status = models.DealJoined
	deal.UpdatedAt = now
	s.log.Info(ctx, "deal joined", "deal_id", deal.ID, "deal_code", deal.Code, "participant_id", participantID)

	s.bumpCounter(ctx, "deals_count", s.users.IncrementDeals, deal.CreatorID, participantID)

	s.notify.send(ctx, deal.CreatorID, creatorJoinedNotice(deal, s.displayName(ctx, participantID)))
	s.notify.send(ctx, deal.PayerID(), choosePaymentNotice(deal, s.payments.Methods()))
	return deal, nil
}

// loadForPayer fetches the deal and checks that actorID is its payer and
// that it is in the required status.
func (s *dealService) loadForPayer(ctx context.Context, dealID, actorID int64, required models.DealStatus) (*models.Deal, error) {
	if _, err := s.gate.RequireActive(ctx, actorID); err != nil {
		return nil, err
	}
	deal, err := s.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParty(actorID) {
		return nil, ErrForbidden
	}
	if deal.Status != required {
		return nil, &InvalidStateError{Current: deal.Status, Required: required}
	}
	if deal.PayerID() != actorID {
		return nil, fmt.Errorf("%w: only the buyer can do this", ErrForbidden)
	}
	return deal, nil
}

func (s *dealService) SelectPaymentMethod(ctx context.Context, dealID, actorID int64, method models.PaymentMethod) (*PaymentInstructions, error) {
	deal, err := s.loadForPayer(ctx, dealID, actorID, models.DealJoined)
	if err != nil {
		return nil, err
	}
	address, err := s.payments.Resolve(method)
	if err != nil {
		return nil, err
	}
	uri, err := s.payments.TransferURI(method, address, deal.AmountUSD)
	if err != nil {
		return nil, err
	}

	ok, err := s.deals.SetPaymentMethod(ctx, deal.ID, method, models.DealJoined, s.now())
	if err != nil {
		return nil, persistence("set payment method", err)
	}
	if !ok {
		return nil, s.stateConflict(ctx, deal.ID, models.DealJoined)
	}
	deal.PaymentMethod = &method
	deal.Status = models.DealPaymentPending
	s.log.Info(ctx, "payment method selected", "deal_id", deal.ID, "method", method)

	s.notify.send(ctx, deal.CounterpartyOf(actorID), methodSelectedNotice(deal, method))
	return &PaymentInstructions{
		DealID:   deal.ID,
		DealCode: deal.Code,
		Method:   method,
		Address:  address,
		Amount:   deal.AmountUSD,
		URI:      uri,
	}, nil
}

func (s *dealService) AttestPayment(ctx context.Context, dealID, actorID int64, note string) (*models.Deal, error) {
	deal, err := s.loadForPayer(ctx, dealID, actorID, models.DealPaymentPending)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)

	now := s.now()
	ok, err := s.deals.Complete(ctx, deal.ID, note, now)
	if err != nil {
		return nil, persistence("complete deal", err)
	}
	if !ok {
		return nil, s.stateConflict(ctx, deal.ID, models.DealPaymentPending)
	}
	deal.Status = models.DealCompleted
	deal.PaymentProof = &note
	deal.CompletedAt = &now
	deal.UpdatedAt = now
	s.log.Info(ctx, "deal completed", "deal_id", deal.ID, "deal_code", deal.Code)

	counterparty := deal.CounterpartyOf(actorID)
	s.bumpCounter(ctx, "successful_deals", s.users.IncrementSuccessful, actorID, counterparty)

	s.notify.send(ctx, actorID, completedNotice(deal, true))
	s.notify.send(ctx, counterparty, completedNotice(deal, false))

	if s.email != nil {
		if err := s.email.SendDealCompleted(deal); err != nil {
			s.log.Warn(ctx, "deal alert e-mail failed", "deal_id", deal.ID, "error", err)
		}
	}
	return deal, nil
}

// Cancel and OpenDispute are reserved: the statuses exist, the policy does not.
func (s *dealService) Cancel(ctx context.Context, dealID, actorID int64) error {
	return s.reserved(ctx, dealID, actorID, models.DealCancelled)
}

func (s *dealService) OpenDispute(ctx context.Context, dealID, actorID int64, _ string) error {
	return s.reserved(ctx, dealID, actorID, models.DealDisputed)
}

func (s *dealService) reserved(ctx context.Context, dealID, actorID int64, to models.DealStatus) error {
	deal, err := s.Get(ctx, dealID)
	if err != nil {
		return err
	}
	if !deal.IsParty(actorID) {
		return ErrForbidden
	}
	if !CanTransitionDeal(deal.Status, to) {
		return fmt.Errorf("%w: deal is already %s", ErrInvalidState, deal.Status)
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransitionNotSupported, deal.Status, to)
}

func (s *dealService) Get(ctx context.Context, dealID int64) (*models.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get deal", err)
	}
	return deal, nil
}

func (s *dealService) GetByCode(ctx context.Context, code string) (*models.Deal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !utils.IsDealCode(code) {
		return nil, ErrNotFound
	}
	deal, err := s.deals.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get deal by code", err)
	}
	return deal, nil
}

func (s *dealService) ListForUser(ctx context.Context, userID int64) ([]*models.Deal, error) {
	deals, err := s.deals.ListByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list deals", err)
	}
	return deals, nil
}

// stateConflict builds the error for a lost compare-and-set from the
// status that is persisted now.
func (s *dealService) stateConflict(ctx context.Context, dealID int64, required models.DealStatus) error {
	cur, err := s.Get(ctx, dealID)
	if err != nil {
		return err
	}
	return &InvalidStateError{Current: cur.Status, Required: required}
}

func (s *dealService) bumpCounter(ctx context.Context, name string, inc func(context.Context, int64) error, ids ...int64) {
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if err := inc(ctx, id); err != nil {
			s.log.Warn(ctx, "counter update failed", "counter", name, "user_id", id, "error", err)
		}
	}
}

func (s *dealService) displayName(ctx context.Context, userID int64) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("id %d", userID)
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return fmt.Sprintf("id %d", userID)
}

package drafts

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"escrow-bot-go/internal/escrow"

	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
)

// Step is the next input a draft is waiting for.
type Step int

const (
	StepCounterparty Step = iota
	StepAmount
	StepDescription
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepCounterparty:
		return "counterparty"
	case StepAmount:
		return "amount"
	case StepDescription:
		return "description"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrNoDraft          = errors.New("no deal draft in progress")
	ErrInvalidInput     = errors.New("invalid draft input")
	ErrDraftNotComplete = errors.New("draft is not ready for confirmation")
)

// Draft is a deal being assembled by the buyer over several chat messages.
type Draft struct {
	BuyerId     string
	SellerId    string
	Amount      int64
	Currency    string
	Description string
	Step        Step
	StartedAt   time.Time
}

// Params converts a confirmed draft into deal creation parameters.
func (d *Draft) Params() (escrow.CreateDealParams, error) {
	if d.Step != StepConfirm {
		return escrow.CreateDealParams{}, ErrDraftNotComplete
	}
	return escrow.CreateDealParams{
		BuyerId:     d.BuyerId,
		SellerId:    d.SellerId,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Description: d.Description,
	}, nil
}

// Store keeps one draft per buyer and forgets drafts that go idle.
type Store struct {
	cache    *ttlcache.Cache[string, *Draft]
	currency string
}

func NewStore(ttl time.Duration, currency string) *Store {
	return &Store{
		cache: ttlcache.New[string, *Draft](
			ttlcache.WithTTL[string, *Draft](ttl)),
		currency: strings.ToLower(currency),
	}
}

// Start runs the expiry loop; it blocks until Stop.
func (s *Store) Start() {
	s.cache.Start()
}

func (s *Store) Stop() {
	s.cache.Stop()
}

// Begin starts a new draft for the buyer, replacing any existing one.
func (s *Store) Begin(buyerId string) *Draft {
	d := &Draft{
		BuyerId:   buyerId,
		Currency:  s.currency,
		Step:      StepCounterparty,
		StartedAt: time.Now().UTC(),
	}
	s.cache.Set(buyerId, d, ttlcache.DefaultTTL)
	return d
}

// Get returns the buyer's active draft. Reading it extends its lifetime.
func (s *Store) Get(buyerId string) (*Draft, bool) {
	item := s.cache.Get(buyerId)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *Store) Discard(buyerId string) bool {
	_, ok := s.Get(buyerId)
	s.cache.Delete(buyerId)
	return ok
}

// Advance feeds the next user input into the draft and returns the updated draft.
// On invalid input the draft stays on the same step.
func (s *Store) Advance(buyerId, input string) (*Draft, error) {
	d, ok := s.Get(buyerId)
	if !ok {
		return nil, ErrNoDraft
	}
	input = strings.TrimSpace(input)

	switch d.Step {
	case StepCounterparty:
		seller, err := parseCounterparty(input)
		if err != nil {
			return d, err
		}
		if seller == d.BuyerId {
			return d, fmt.Errorf("%w: you cannot open a deal with yourself", ErrInvalidInput)
		}
		d.SellerId = seller
		d.Step = StepAmount
	case StepAmount:
		amount, err := ParseAmount(input)
		if err != nil {
			return d, err
		}
		d.Amount = amount
		d.Step = StepDescription
	case StepDescription:
		if n := utf8.RuneCountInString(input); n == 0 || n > 500 {
			return d, fmt.Errorf("%w: description must be 1 to 500 characters", ErrInvalidInput)
		}
		d.Description = input
		d.Step = StepConfirm
	case StepConfirm:
		return d, fmt.Errorf("%w: reply /confirm or /cancel_draft", ErrInvalidInput)
	}

	s.cache.Set(buyerId, d, ttlcache.DefaultTTL)
	return d, nil
}

func parseCounterparty(input string) (string, error) {
	id := strings.TrimPrefix(input, "@")
	if id == "" {
		return "", fmt.Errorf("%w: send the seller's numeric user id", ErrInvalidInput)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: seller id must be numeric", ErrInvalidInput)
		}
	}
	return id, nil
}

// ParseAmount reads a major-unit amount such as "100" or "99.95" into minor units.
func ParseAmount(input string) (int64, error) {
	input = strings.TrimLeft(strings.TrimSpace(input), "$€£")
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an amount", ErrInvalidInput, input)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return 0, fmt.Errorf("%w: at most two decimal places", ErrInvalidInput)
	}
	return amount.Shift(2).IntPart(), nil
}

package instrument

import (
	"context"
	"errors"

	"uplus-loyalty/internal/domain"
	"uplus-loyalty/internal/domain/model"
	"uplus-loyalty/internal/domain/ports/repository"
	"uplus-loyalty/internal/infra/metrics"
)

var (
	_ repository.ProfileRepository = (*Profiles)(nil)
	_ repository.LedgerRepository  = (*Ledger)(nil)
)

// Profiles counts failed profile reads. A missing row is not a failure.
type Profiles struct {
	repository.ProfileRepository
}

func NewProfiles(inner repository.ProfileRepository) *Profiles {
	return &Profiles{ProfileRepository: inner}
}

func (p *Profiles) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	prof, err := p.ProfileRepository.FindByID(ctx, tx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncProfileFetchError()
	}
	return prof, err
}

// Ledger counts welcome-bonus inserts by outcome.
type Ledger struct {
	repository.LedgerRepository
}

func NewLedger(inner repository.LedgerRepository) *Ledger {
	return &Ledger{LedgerRepository: inner}
}

func (l *Ledger) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	out, err := l.LedgerRepository.Insert(ctx, tx, e)
	if e != nil && e.Reason == model.WelcomeBonusReason && e.Source == model.WelcomeBonusSource {
		switch {
		case err == nil:
			metrics.IncWelcomeBonus("awarded")
		case errors.Is(err, domain.ErrAlreadyExists):
			metrics.IncWelcomeBonus("duplicate")
		default:
			metrics.IncWelcomeBonus("error")
		}
	}
	return out, err
}

package layout

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cipherpanel/internal/domain"
)

// Repo maps domain records onto gorm. Callers pass the *gorm.DB they want
// the statement to run on (a transaction or the root handle).
type Repo struct{}

func (Repo) GetProfile(ctx context.Context, db *gorm.DB, uid string) (*domain.Profile, error) {
	var m ProfileModel
	err := db.WithContext(ctx).First(&m, "user_id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Profile{UserID: m.UserID, Activity: m.Activity, Preference: m.Preference, UpdatedAt: m.UpdatedAt}, nil
}

func (Repo) SaveProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	m := ProfileModel{UserID: p.UserID, Activity: p.Activity, Preference: p.Preference, UpdatedAt: p.UpdatedAt}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// GetLayoutState returns the zero (uncomputed) state for identities that
// have no row yet.
func (Repo) GetLayoutState(ctx context.Context, db *gorm.DB, uid string) (*domain.LayoutState, error) {
	var m LayoutStateModel
	err := db.WithContext(ctx).First(&m, "user_id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.LayoutState{UserID: uid, Phase: domain.PhaseUncomputed}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.LayoutState{UserID: m.UserID, Phase: domain.Phase(m.Phase), Descriptor: m.Descriptor}, nil
}

func (Repo) SaveLayoutState(ctx context.Context, db *gorm.DB, s *domain.LayoutState) error {
	m := LayoutStateModel{UserID: s.UserID, Phase: uint8(s.Phase), Descriptor: s.Descriptor, UpdatedAt: time.Now()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (Repo) GetRevealed(ctx context.Context, db *gorm.DB, uid string) (*domain.RevealedLayout, error) {
	var m RevealedLayoutModel
	err := db.WithContext(ctx).First(&m, "user_id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotRevealed
	}
	if err != nil {
		return nil, err
	}
	return &domain.RevealedLayout{UserID: m.UserID, Config: m.Config, Rendered: m.Rendered, RevealedAt: m.RevealedAt}, nil
}

func (Repo) SaveRevealed(ctx context.Context, db *gorm.DB, r *domain.RevealedLayout) error {
	m := RevealedLayoutModel{UserID: r.UserID, Config: r.Config, Rendered: r.Rendered, RevealedAt: r.RevealedAt}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (Repo) DeleteRevealed(ctx context.Context, db *gorm.DB, uid string) error {
	return db.WithContext(ctx).Delete(&RevealedLayoutModel{}, "user_id = ?", uid).Error
}

// GetWeights returns the accumulator entries in component order.
func (Repo) GetWeights(ctx context.Context, db *gorm.DB) (map[string][]byte, error) {
	var ms []ComponentWeightModel
	if err := db.WithContext(ctx).Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(ms))
	for _, m := range ms {
		out[m.Component] = m.Weight
	}
	return out, nil
}

func (Repo) SaveWeight(ctx context.Context, db *gorm.DB, component string, weight []byte) error {
	m := ComponentWeightModel{Component: component, Weight: weight, UpdatedAt: time.Now()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "component"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// DeletePendingRequests drops the identity's unresolved handles. A new
// profile generation must not accept callbacks carrying the old
// generation's descriptor; resolved rows stay for audit.
func (Repo) DeletePendingRequests(ctx context.Context, db *gorm.DB, uid string) error {
	return db.WithContext(ctx).
		Delete(&DecryptionRequestModel{}, "user_id = ? AND resolved_at IS NULL", uid).Error
}

func (Repo) CreateRequest(ctx context.Context, db *gorm.DB, r *domain.DecryptionRequest) error {
	m := DecryptionRequestModel{Handle: r.Handle, UserID: r.UserID, CreatedAt: r.CreatedAt}
	return db.WithContext(ctx).Create(&m).Error
}

func (Repo) GetRequest(ctx context.Context, db *gorm.DB, handle string) (*domain.DecryptionRequest, error) {
	var m DecryptionRequestModel
	err := db.WithContext(ctx).First(&m, "handle = ?", handle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUnknownHandle
	}
	if err != nil {
		return nil, err
	}
	return &domain.DecryptionRequest{Handle: m.Handle, UserID: m.UserID, CreatedAt: m.CreatedAt, ResolvedAt: m.ResolvedAt}, nil
}

func (Repo) ResolveRequest(ctx context.Context, db *gorm.DB, handle string, at time.Time) error {
	return db.WithContext(ctx).Model(&DecryptionRequestModel{}).
		Where("handle = ?", handle).
		Update("resolved_at", at).Error
}

package layout

import "time"

// Persisted records. Ciphertext columns are opaque blobs; only internal/fhe
// interprets them.

type ProfileModel struct {
	UserID     string `gorm:"primaryKey;size:32"`
	Activity   []byte `gorm:"not null"`
	Preference []byte `gorm:"not null"`
	UpdatedAt  time.Time
}

func (ProfileModel) TableName() string { return "user_profiles" }

// LayoutStateModel carries the explicit lifecycle phase; illegal flag
// combinations (revealed but not computed) cannot be stored.
type LayoutStateModel struct {
	UserID     string `gorm:"primaryKey;size:32"`
	Phase      uint8  `gorm:"not null;default:0"`
	Descriptor []byte
	UpdatedAt  time.Time
}

func (LayoutStateModel) TableName() string { return "layout_states" }

type RevealedLayoutModel struct {
	UserID     string `gorm:"primaryKey;size:32"`
	Config     uint64 `gorm:"not null"`
	Rendered   string `gorm:"type:text;not null"`
	RevealedAt time.Time
}

func (RevealedLayoutModel) TableName() string { return "revealed_layouts" }

// ComponentWeightModel is shared across all identities: seeded once with
// unit weights, then only ever accumulated into.
type ComponentWeightModel struct {
	Component string `gorm:"primaryKey;size:32"`
	Weight    []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (ComponentWeightModel) TableName() string { return "component_weights" }

type DecryptionRequestModel struct {
	Handle     string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"size:32;index;not null"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

func (DecryptionRequestModel) TableName() string { return "decryption_requests" }

// Models lists everything AutoMigrate needs.
func Models() []any {
	return []any{
		&ProfileModel{},
		&LayoutStateModel{},
		&RevealedLayoutModel{},
		&ComponentWeightModel{},
		&DecryptionRequestModel{},
	}
}

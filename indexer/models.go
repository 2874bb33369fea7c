package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MintRecord is one committed parcel sale.
type MintRecord struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind             string    `gorm:"size:16;index" json:"kind"`
	ParcelID         string    `gorm:"size:80;index" json:"parcelId"`
	Zone             uint64    `gorm:"index" json:"zone"`
	X                int64     `json:"x"`
	Y                int64     `json:"y"`
	Buyer            string    `gorm:"size:42;index" json:"buyer"`
	Payee            string    `gorm:"size:42" json:"payee"`
	Price            string    `gorm:"size:80" json:"price"`
	WhitelistTokenID string    `gorm:"size:80" json:"whitelistTokenId,omitempty"`
	MintedAt         int64     `gorm:"index" json:"mintedAt"`
	CreatedAt        time.Time `json:"indexedAt"`
}

// ConfigChange is one committed sale configuration update.
type ConfigChange struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Field     string    `gorm:"size:32;index" json:"field"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"indexedAt"`
}

// AutoMigrate performs all schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&MintRecord{},
		&ConfigChange{},
	)
}

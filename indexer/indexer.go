package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"landsale/core/types"
	"landsale/native/landsale"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultLimit = 50
	maxLimit     = 500
)

// ErrUnsupportedDriver is returned by Open for unknown drivers.
var ErrUnsupportedDriver = errors.New("indexer: unsupported driver")

// Open connects to the receipt database. SQLite is embedded and needs only a
// file path or ":memory:" style DSN; Postgres takes a libpq connection string.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return db, nil
}

// Indexer stores committed sale events for later querying. It is fed by the
// node after every successful transition.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New migrates the schema and returns an indexer writing to db.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: log}, nil
}

// ConsumeEvents records sale events. Events from other modules are ignored.
// Failures are logged and do not affect the committed state.
func (ix *Indexer) ConsumeEvents(evts []*types.Event) {
	if err := ix.Index(context.Background(), evts); err != nil {
		ix.logger.Error("index sale events", slog.Any("error", err), slog.Int("events", len(evts)))
	}
}

// Index writes the sale events of one transition in a single database
// transaction.
func (ix *Indexer) Index(ctx context.Context, evts []*types.Event) error {
	mints := make([]MintRecord, 0, len(evts))
	changes := make([]ConfigChange, 0)
	for _, evt := range evts {
		switch evt.Type {
		case landsale.EventTypeParcelMinted:
			record, err := mintFromEvent(evt)
			if err != nil {
				return err
			}
			mints = append(mints, record)
		case landsale.EventTypeConfigUpdated:
			changes = append(changes, ConfigChange{
				ID:    uuid.New(),
				Field: evt.Attr("field"),
				Value: evt.Attr("value"),
			})
		}
	}
	if len(mints) == 0 && len(changes) == 0 {
		return nil
	}
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(mints) > 0 {
			if err := tx.Create(&mints).Error; err != nil {
				return err
			}
		}
		if len(changes) > 0 {
			if err := tx.Create(&changes).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func mintFromEvent(evt *types.Event) (MintRecord, error) {
	zone, err := strconv.ParseUint(evt.Attr("zone"), 10, 64)
	if err != nil {
		return MintRecord{}, fmt.Errorf("indexer: zone attribute: %w", err)
	}
	x, err := strconv.ParseInt(evt.Attr("x"), 10, 64)
	if err != nil {
		return MintRecord{}, fmt.Errorf("indexer: x attribute: %w", err)
	}
	y, err := strconv.ParseInt(evt.Attr("y"), 10, 64)
	if err != nil {
		return MintRecord{}, fmt.Errorf("indexer: y attribute: %w", err)
	}
	mintedAt, err := strconv.ParseInt(evt.Attr("mintedAt"), 10, 64)
	if err != nil {
		return MintRecord{}, fmt.Errorf("indexer: mintedAt attribute: %w", err)
	}
	return MintRecord{
		ID:               uuid.New(),
		Kind:             evt.Attr("kind"),
		ParcelID:         evt.Attr("parcelId"),
		Zone:             zone,
		X:                x,
		Y:                y,
		Buyer:            strings.ToLower(evt.Attr("buyer")),
		Payee:            strings.ToLower(evt.Attr("payee")),
		Price:            evt.Attr("price"),
		WhitelistTokenID: evt.Attr("whitelistTokenId"),
		MintedAt:         mintedAt,
	}, nil
}

// MintFilter narrows ListMints. Zero values match everything.
type MintFilter struct {
	Buyer  string
	Kind   string
	Zone   uint64
	Limit  int
	Offset int
}

// ListMints returns indexed mints newest first.
func (ix *Indexer) ListMints(ctx context.Context, filter MintFilter) ([]MintRecord, error) {
	query := ix.db.WithContext(ctx).Model(&MintRecord{})
	if buyer := strings.ToLower(strings.TrimSpace(filter.Buyer)); buyer != "" {
		query = query.Where("buyer = ?", buyer)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if filter.Zone != 0 {
		query = query.Where("zone = ?", filter.Zone)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	var records []MintRecord
	err := query.Order("minted_at DESC").Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ConfigHistory returns configuration changes for field, oldest first. An
// empty field returns every change.
func (ix *Indexer) ConfigHistory(ctx context.Context, field string) ([]ConfigChange, error) {
	query := ix.db.WithContext(ctx).Model(&ConfigChange{})
	if field = strings.TrimSpace(field); field != "" {
		query = query.Where("field = ?", field)
	}
	var changes []ConfigChange
	if err := query.Order("created_at ASC").Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/agentmesh/pkg/config"
	"github.com/biodoia/agentmesh/pkg/database"
	"github.com/biodoia/agentmesh/pkg/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// cardRecord è la rappresentazione relazionale di una ClientCard.
// Data e AuditTrail sono serializzati come JSON in colonne di testo
// per mantenere la parità tra sqlite e postgres.
type cardRecord struct {
	CardID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientID  string    `gorm:"index;not null"`
	Type      string    `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
	DataJSON  string    `gorm:"type:text"`
	AuditJSON string    `gorm:"type:text"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (cardRecord) TableName() string { return "client_cards" }

// SQLStore persiste le card su un database relazionale via GORM
type SQLStore struct {
	db *database.DB
}

// NewSQLStore apre la connessione e migra lo schema
func NewSQLStore(cfg *config.StorageConfig) (*SQLStore, error) {
	db, err := database.New(&database.Config{
		Type:       cfg.DatabaseType,
		Connection: cfg.DatabaseConnection,
		MaxConns:   cfg.DatabaseMaxConns,
		LogLevel:   "warn",
	})
	if err != nil {
		return nil, fmt.Errorf("sql store: %w", err)
	}

	if err := db.AutoMigrate(&cardRecord{}); err != nil {
		return nil, fmt.Errorf("sql store: migrate: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Load carica tutte le card attive di un cliente
func (s *SQLStore) Load(ctx context.Context, clientID string) ([]models.ClientCard, error) {
	var records []cardRecord
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND is_active = ?", clientID, true).
		Order("type, version").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	cards := make([]models.ClientCard, 0, len(records))
	for _, rec := range records {
		card, err := rec.toCard()
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt record %s: %v", ErrStoreUnavailable, rec.CardID, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// Write appende il delta di performance in una transazione
func (s *SQLStore) Write(ctx context.Context, clientID string, delta models.PerformanceDelta) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec cardRecord
		err := tx.Where("client_id = ? AND type = ? AND is_active = ?",
			clientID, string(models.CardTypePerformanceHistory), true).
			First(&rec).Error

		switch {
		case err == nil:
			card, convErr := rec.toCard()
			if convErr != nil {
				return convErr
			}
			updated := appendPerformanceDelta([]models.ClientCard{card}, clientID, delta)[0]
			newRec, convErr := fromCard(updated)
			if convErr != nil {
				return convErr
			}
			return tx.Save(&newRec).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			created := appendPerformanceDelta(nil, clientID, delta)[0]
			newRec, convErr := fromCard(created)
			if convErr != nil {
				return convErr
			}
			return tx.Create(&newRec).Error

		default:
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// List elenca i client id distinti
func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&cardRecord{}).
		Distinct("client_id").
		Order("client_id").
		Pluck("client_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// Close chiude la connessione
func (s *SQLStore) Close() error { return s.db.Close() }

func (r cardRecord) toCard() (models.ClientCard, error) {
	card := models.ClientCard{
		CardID:    r.CardID,
		ClientID:  r.ClientID,
		Type:      models.CardType(r.Type),
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		IsActive:  r.IsActive,
	}

	if r.DataJSON != "" {
		if err := json.Unmarshal([]byte(r.DataJSON), &card.Data); err != nil {
			return models.ClientCard{}, err
		}
	}
	if r.AuditJSON != "" {
		if err := json.Unmarshal([]byte(r.AuditJSON), &card.AuditTrail); err != nil {
			return models.ClientCard{}, err
		}
	}
	return card, nil
}

func fromCard(card models.ClientCard) (cardRecord, error) {
	dataJSON, err := json.Marshal(card.Data)
	if err != nil {
		return cardRecord{}, err
	}
	auditJSON, err := json.Marshal(card.AuditTrail)
	if err != nil {
		return cardRecord{}, err
	}

	return cardRecord{
		CardID:    card.CardID,
		ClientID:  card.ClientID,
		Type:      string(card.Type),
		Version:   card.Version,
		DataJSON:  string(dataJSON),
		AuditJSON: string(auditJSON),
		IsActive:  card.IsActive,
		CreatedAt: card.CreatedAt,
		UpdatedAt: card.UpdatedAt,
	}, nil
}

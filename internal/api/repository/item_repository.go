package repository

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"time"

	"github.com/jmoiron/sqlx"
)

// ItemRepository defines the interface for item data operations.
type ItemRepository interface {
	CreateItem(ctx context.Context, ownerID int64, title string) (*models.Item, error)
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItemsByOwner(ctx context.Context, ownerID int64) ([]models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	// TransferItem moves the item to toOwnerID only if it is still owned by
	// fromOwnerID. It reports whether the move happened.
	TransferItem(ctx context.Context, id, fromOwnerID, toOwnerID int64) (bool, error)
}

type sqliteItemRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewItemRepository creates a new SQLite-based ItemRepository.
func NewItemRepository(db *sqlx.DB, timeout time.Duration) ItemRepository {
	return &sqliteItemRepository{db: db, timeout: timeout}
}

func (r *sqliteItemRepository) CreateItem(ctx context.Context, ownerID int64, title string) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO items (title, owner_id) VALUES (?, ?)`, title, ownerID)
	if err != nil {
		return nil, classify("ITEM_CREATE", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("ITEM_CREATE", err)
	}
	return &models.Item{ID: id, Title: title, OwnerID: ownerID}, nil
}

func (r *sqliteItemRepository) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var item models.Item
	if err := r.db.GetContext(ctx, &item, `SELECT id, title, owner_id FROM items WHERE id = ?`, id); err != nil {
		return nil, classify("ITEM_GET", err)
	}
	return &item, nil
}

func (r *sqliteItemRepository) ListItemsByOwner(ctx context.Context, ownerID int64) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	items := []models.Item{}
	query := `SELECT id, title, owner_id FROM items WHERE owner_id = ? ORDER BY id`
	if err := r.db.SelectContext(ctx, &items, query, ownerID); err != nil {
		return nil, classify("ITEM_LIST", err)
	}
	return items, nil
}

func (r *sqliteItemRepository) DeleteItem(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return classify("ITEM_DELETE", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("ITEM_DELETE", err)
	}
	if n == 0 {
		return classify("ITEM_DELETE", ErrNotFound)
	}
	return nil
}

func (r *sqliteItemRepository) TransferItem(ctx context.Context, id, fromOwnerID, toOwnerID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `UPDATE items SET owner_id = ? WHERE id = ? AND owner_id = ?`
	res, err := r.db.ExecContext(ctx, query, toOwnerID, id, fromOwnerID)
	if err != nil {
		return false, classify("ITEM_TRANSFER", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("ITEM_TRANSFER", err)
	}
	return n == 1, nil
}

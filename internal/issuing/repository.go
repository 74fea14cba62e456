package issuing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists issue notes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateNote(ctx context.Context, note IssueNote) (int64, error)
	InsertLine(ctx context.Context, line IssueLine) (int64, error)
	UpdateStatus(ctx context.Context, noteID int64, status IssueNoteStatus) error
	SetLineLedgerEntry(ctx context.Context, lineID, entryID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a note header with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (IssueNote, []IssueLine, error) {
	var note IssueNote
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, warehouse_id, customer_id, sales_order_id, status, doc_ref, issued_at, note, created_by, created_at
FROM issue_notes WHERE id=$1`, id).
		Scan(&note.ID, &note.Number, &note.WarehouseID, &note.CustomerID, &note.SalesOrderID, &status, &note.DocRef, &note.IssuedAt, &note.Note, &note.CreatedBy, &note.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IssueNote{}, nil, ErrNoteNotFound
		}
		return IssueNote{}, nil, err
	}
	note.Status = IssueNoteStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, note_id, item_kind, item_id, qty, COALESCE(ledger_entry_id, 0)
FROM issue_note_lines WHERE note_id=$1 ORDER BY id`, id)
	if err != nil {
		return IssueNote{}, nil, err
	}
	defer rows.Close()
	var lines []IssueLine
	for rows.Next() {
		var line IssueLine
		var kind string
		if err := rows.Scan(&line.ID, &line.NoteID, &kind, &line.Item.ID, &line.Quantity, &line.LedgerEntryID); err != nil {
			return IssueNote{}, nil, err
		}
		line.Item.Kind = inventory.ItemKind(kind)
		lines = append(lines, line)
	}
	return note, lines, rows.Err()
}

func (r *txRepository) CreateNote(ctx context.Context, note IssueNote) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO issue_notes (number, warehouse_id, customer_id, sales_order_id, status, doc_ref, issued_at, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		note.Number, note.WarehouseID, note.CustomerID, note.SalesOrderID, string(note.Status), note.DocRef, note.IssuedAt, note.Note, note.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line IssueLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO issue_note_lines (note_id, item_kind, item_id, qty)
VALUES ($1,$2,$3,$4) RETURNING id`,
		line.NoteID, string(line.Item.Kind), line.Item.ID, line.Quantity).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateStatus(ctx context.Context, noteID int64, status IssueNoteStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE issue_notes SET status=$1 WHERE id=$2`, string(status), noteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *txRepository) SetLineLedgerEntry(ctx context.Context, lineID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE issue_note_lines SET ledger_entry_id=$1 WHERE id=$2`, entryID, lineID)
	return err
}

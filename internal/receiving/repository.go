package receiving

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists receipt notes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateNote(ctx context.Context, note ReceiptNote) (int64, error)
	InsertLine(ctx context.Context, line ReceiptLine) (int64, error)
	UpdateStatus(ctx context.Context, noteID int64, status ReceiptNoteStatus) error
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
func (r *Repository) Get(ctx context.Context, id int64) (ReceiptNote, []ReceiptLine, error) {
	var note ReceiptNote
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, warehouse_id, supplier_id, status, doc_ref, received_at, note, created_by, created_at
FROM receipt_notes WHERE id=$1`, id).
		Scan(&note.ID, &note.Number, &note.WarehouseID, &note.SupplierID, &status, &note.DocRef, &note.ReceivedAt, &note.Note, &note.CreatedBy, &note.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceiptNote{}, nil, ErrNoteNotFound
		}
		return ReceiptNote{}, nil, err
	}
	note.Status = ReceiptNoteStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, note_id, item_kind, item_id, qty, COALESCE(ledger_entry_id, 0)
FROM receipt_note_lines WHERE note_id=$1 ORDER BY id`, id)
	if err != nil {
		return ReceiptNote{}, nil, err
	}
	defer rows.Close()
	var lines []ReceiptLine
	for rows.Next() {
		var line ReceiptLine
		var kind string
		if err := rows.Scan(&line.ID, &line.NoteID, &kind, &line.Item.ID, &line.Quantity, &line.LedgerEntryID); err != nil {
			return ReceiptNote{}, nil, err
		}
		line.Item.Kind = inventory.ItemKind(kind)
		lines = append(lines, line)
	}
	return note, lines, rows.Err()
}

func (r *txRepository) CreateNote(ctx context.Context, note ReceiptNote) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO receipt_notes (number, warehouse_id, supplier_id, status, doc_ref, received_at, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		note.Number, note.WarehouseID, note.SupplierID, string(note.Status), note.DocRef, note.ReceivedAt, note.Note, note.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line ReceiptLine) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO receipt_note_lines (note_id, item_kind, item_id, qty)
VALUES ($1,$2,$3,$4) RETURNING id`,
		line.NoteID, string(line.Item.Kind), line.Item.ID, line.Quantity).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateStatus(ctx context.Context, noteID int64, status ReceiptNoteStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE receipt_notes SET status=$1 WHERE id=$2`, string(status), noteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *txRepository) SetLineLedgerEntry(ctx context.Context, lineID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE receipt_note_lines SET ledger_entry_id=$1 WHERE id=$2`, entryID, lineID)
	return err
}

package button

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines persistence for buttons, press states and deck slot
// allocations. Every write replaces a single row.
type Repository interface {
	// Get returns the button in slot, or ErrButtonNotFound.
	Get(ctx context.Context, slot int) (*Button, error)

	// GetByUUID returns the button with the given public UUID, or ErrButtonNotFound.
	GetByUUID(ctx context.Context, uuid string) (*Button, error)

	// List returns all buttons ordered by slot ascending.
	List(ctx context.Context) ([]Button, error)

	// Create inserts a new button. Returns ErrButtonExists when the slot is
	// occupied and ErrUUIDTaken when the UUID is in use.
	Create(ctx context.Context, b *Button) error

	// UpdateSVG replaces the icon of an existing button.
	UpdateSVG(ctx context.Context, slot int, svg string) error

	// GetState returns the stored press state of slot, or ErrStateNotFound.
	GetState(ctx context.Context, slot int) (*State, error)

	// PutState overwrites the press state of a slot.
	PutState(ctx context.Context, s State) error

	// ClearStates removes every stored press state.
	ClearStates(ctx context.Context) error

	// EnsureDeck returns the slot range of serial, allocating the next free
	// range on first sight.
	EnsureDeck(ctx context.Context, serial string, keyCount int) (*Deck, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const buttonColumns = `slot, uuid, device, x, y, svg`

// Get retrieves a button by slot.
func (r *SQLiteRepository) Get(ctx context.Context, slot int) (*Button, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+buttonColumns+` FROM buttons WHERE slot = ?`, slot)
	b, err := scanButton(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrButtonNotFound
		}
		return nil, fmt.Errorf("querying button by slot: %w", err)
	}
	return b, nil
}

// GetByUUID retrieves a button by public UUID.
func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*Button, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+buttonColumns+` FROM buttons WHERE uuid = ?`, uuid)
	b, err := scanButton(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrButtonNotFound
		}
		return nil, fmt.Errorf("querying button by uuid: %w", err)
	}
	return b, nil
}

// List retrieves all buttons in slot order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Button, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+buttonColumns+` FROM buttons ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("querying buttons: %w", err)
	}
	defer rows.Close()

	var buttons []Button
	for rows.Next() {
		b, err := scanButton(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning button: %w", err)
		}
		buttons = append(buttons, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buttons: %w", err)
	}
	return buttons, nil
}

// Create inserts a new button.
func (r *SQLiteRepository) Create(ctx context.Context, b *Button) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buttons (`+buttonColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		b.Slot, b.UUID, b.DeviceID, b.Position.X, b.Position.Y, b.SVG,
	)
	if err != nil {
		switch constraintViolation(err) {
		case "buttons.slot":
			return ErrButtonExists
		case "buttons.uuid":
			return ErrUUIDTaken
		}
		return fmt.Errorf("inserting button: %w", err)
	}
	return nil
}

// UpdateSVG replaces a button's icon.
func (r *SQLiteRepository) UpdateSVG(ctx context.Context, slot int, svg string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE buttons SET svg = ? WHERE slot = ?`, svg, slot)
	if err != nil {
		return fmt.Errorf("updating button svg: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrButtonNotFound
	}
	return nil
}

// GetState retrieves the press state of a slot.
func (r *SQLiteRepository) GetState(ctx context.Context, slot int) (*State, error) {
	var (
		s         State
		pressed   int
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT slot, pressed, updated_at FROM button_states WHERE slot = ?`, slot,
	).Scan(&s.Slot, &pressed, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("querying button state: %w", err)
	}
	s.Pressed = pressed == 1
	s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing state timestamp %q: %w", updatedAt, err)
	}
	return &s, nil
}

// PutState upserts the press state of a slot.
func (r *SQLiteRepository) PutState(ctx context.Context, s State) error {
	pressed := 0
	if s.Pressed {
		pressed = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO button_states (slot, pressed, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET pressed = excluded.pressed, updated_at = excluded.updated_at`,
		s.Slot, pressed, s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if constraintViolation(err) == "foreign key" {
			return ErrButtonNotFound
		}
		return fmt.Errorf("writing button state: %w", err)
	}
	return nil
}

// ClearStates deletes all press states.
func (r *SQLiteRepository) ClearStates(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM button_states`); err != nil {
		return fmt.Errorf("clearing button states: %w", err)
	}
	return nil
}

// EnsureDeck returns or allocates the slot range of a deck serial.
// New decks are placed after the highest allocated slot.
func (r *SQLiteRepository) EnsureDeck(ctx context.Context, serial string, keyCount int) (*Deck, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	d := Deck{Serial: serial}
	err = tx.QueryRowContext(ctx,
		`SELECT slot_base, key_count FROM decks WHERE serial = ?`, serial,
	).Scan(&d.SlotBase, &d.KeyCount)
	switch {
	case err == nil:
		if d.KeyCount != keyCount {
			return &d, fmt.Errorf("%w: %s has %d keys, allocated %d", ErrDeckMismatch, serial, keyCount, d.KeyCount)
		}
		return &d, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("querying deck: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(slot_base + key_count), 0) FROM decks`,
	).Scan(&d.SlotBase); err != nil {
		return nil, fmt.Errorf("computing next slot base: %w", err)
	}
	d.KeyCount = keyCount

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decks (serial, slot_base, key_count) VALUES (?, ?, ?)`,
		d.Serial, d.SlotBase, d.KeyCount,
	); err != nil {
		return nil, fmt.Errorf("inserting deck: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing deck: %w", err)
	}
	return &d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanButton(row rowScanner) (*Button, error) {
	var b Button
	if err := row.Scan(&b.Slot, &b.UUID, &b.DeviceID, &b.Position.X, &b.Position.Y, &b.SVG); err != nil {
		return nil, err
	}
	return &b, nil
}

// constraintViolation names the constraint a SQLite error violated:
// "table.column" for unique and primary key violations, "foreign key" for
// foreign key violations, or "" for any other error.
func constraintViolation(err error) string {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return ""
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return "foreign key"
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		msg := sqliteErr.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			return strings.TrimSpace(msg[i+2:])
		}
	}
	return ""
}

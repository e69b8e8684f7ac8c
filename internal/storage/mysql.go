package storage

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/tickettheatre/core-service/internal/model"
)

// MySQLStore implements Store over a MySQL database.  All timestamps
// are stored and compared in UTC; the connection must be opened with
// parseTime=true and loc=UTC (see internal/database).
type MySQLStore struct {
    db *sql.DB
}

// NewMySQLStore returns a MySQLStore bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying handle for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

const mysqlTime = "2006-01-02 15:04:05"

// activeQuantityTx sums the quantities that occupy seats for a seance
// at the given instant.  Pending holds past their deadline are
// excluded here even before the sweeper has flipped their status;
// this predicate is the single source of truth for "booked".
func activeQuantityTx(ctx context.Context, q queryer, seanceID uint64, now time.Time) (uint32, error) {
    const query = `SELECT COALESCE(SUM(quantity), 0)
                   FROM reservations
                   WHERE seance_id = ?
                     AND (status = 'confirmed' OR (status = 'pending' AND expires_at > ?))`
    var booked uint32
    err := q.QueryRowContext(ctx, query, seanceID, now.UTC().Format(mysqlTime)).Scan(&booked)
    return booked, err
}

// queryer abstracts *sql.DB and *sql.Tx for shared read helpers.
type queryer interface {
    QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetSeance loads a seance by id.
func (s *MySQLStore) GetSeance(ctx context.Context, id uint64) (*model.Seance, error) {
    const q = `SELECT id, hall_id, capacity, price_cents, starts_at, status, created_at, updated_at
               FROM seances WHERE id = ?`
    var se model.Seance
    err := s.db.QueryRowContext(ctx, q, id).Scan(
        &se.ID, &se.HallID, &se.Capacity, &se.PriceCents, &se.StartsAt, &se.Status,
        &se.CreatedAt, &se.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, model.ErrSeanceNotFound
    }
    if err != nil {
        return nil, err
    }
    return &se, nil
}

// ActiveQuantity implements Store.
func (s *MySQLStore) ActiveQuantity(ctx context.Context, seanceID uint64, now time.Time) (uint32, error) {
    return activeQuantityTx(ctx, s.db, seanceID, now)
}

// CreateHold re-checks remaining capacity and inserts the pending
// reservation inside one transaction.  The SELECT ... FOR UPDATE on
// the seance row serialises concurrent holds for the same seance so
// the check-then-insert cannot oversell under load.
func (s *MySQLStore) CreateHold(ctx context.Context, res *model.Reservation, now time.Time) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var capacity uint32
    err = tx.QueryRowContext(ctx, `SELECT capacity FROM seances WHERE id = ? FOR UPDATE`, res.SeanceID).Scan(&capacity)
    if errors.Is(err, sql.ErrNoRows) {
        return model.ErrSeanceNotFound
    }
    if err != nil {
        return err
    }

    booked, err := activeQuantityTx(ctx, tx, res.SeanceID, now)
    if err != nil {
        return err
    }
    remaining := uint32(0)
    if capacity > booked {
        remaining = capacity - booked
    }
    if res.Quantity > remaining {
        return &model.InsufficientCapacityError{Remaining: remaining}
    }

    var seatsJSON interface{}
    if len(res.Seats) > 0 {
        b, merr := json.Marshal(res.Seats)
        if merr != nil {
            return merr
        }
        seatsJSON = string(b)
    }
    var expires interface{}
    if res.ExpiresAt != nil {
        expires = res.ExpiresAt.UTC().Format(mysqlTime)
    }
    const ins = `INSERT INTO reservations
                 (seance_id, user_id, booking_reference, quantity, seats, total_price_cents,
                  status, payment_status, expires_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, ins,
        res.SeanceID, res.UserID, res.BookingReference, res.Quantity, seatsJSON,
        res.TotalPriceCents, res.Status, res.PaymentStatus, expires,
    )
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == 1062 {
            return ErrReferenceTaken
        }
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    // Query back the row to populate database-assigned timestamps.
    row, err := scanReservationRow(tx.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, res.ID))
    if err != nil {
        return err
    }
    *res = *row
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

const selectReservation = `SELECT id, seance_id, user_id, booking_reference, quantity, seats,
                                  total_price_cents, status, payment_status, payment_ref,
                                  expires_at, confirmed_at, cancelled_at, cancellation_reason,
                                  created_at, updated_at
                           FROM reservations`

// rowScanner abstracts *sql.Row and *sql.Rows for scanReservationRow.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanReservationRow(row rowScanner) (*model.Reservation, error) {
    var r model.Reservation
    var seats sql.NullString
    var payRef, reason sql.NullString
    var expires, confirmed, cancelled sql.NullTime
    err := row.Scan(
        &r.ID, &r.SeanceID, &r.UserID, &r.BookingReference, &r.Quantity, &seats,
        &r.TotalPriceCents, &r.Status, &r.PaymentStatus, &payRef,
        &expires, &confirmed, &cancelled, &reason,
        &r.CreatedAt, &r.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if seats.Valid && seats.String != "" {
        if err := json.Unmarshal([]byte(seats.String), &r.Seats); err != nil {
            return nil, err
        }
    }
    if payRef.Valid {
        v := payRef.String
        r.PaymentRef = &v
    }
    if reason.Valid {
        v := reason.String
        r.CancellationReason = &v
    }
    if expires.Valid {
        t := expires.Time.UTC()
        r.ExpiresAt = &t
    }
    if confirmed.Valid {
        t := confirmed.Time.UTC()
        r.ConfirmedAt = &t
    }
    if cancelled.Valid {
        t := cancelled.Time.UTC()
        r.CancelledAt = &t
    }
    return &r, nil
}

// GetReservation loads a reservation by id.
func (s *MySQLStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
    r, err := scanReservationRow(s.db.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, model.ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return r, nil
}

// GetReservationByReference loads a reservation by booking reference.
func (s *MySQLStore) GetReservationByReference(ctx context.Context, ref string) (*model.Reservation, error) {
    r, err := scanReservationRow(s.db.QueryRowContext(ctx, selectReservation+` WHERE booking_reference = ?`, ref))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, model.ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return r, nil
}

// GetReservationByPaymentRef loads a reservation by the external
// payment reference.
func (s *MySQLStore) GetReservationByPaymentRef(ctx context.Context, ref string) (*model.Reservation, error) {
    r, err := scanReservationRow(s.db.QueryRowContext(ctx, selectReservation+` WHERE payment_ref = ?`, ref))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, model.ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return r, nil
}

// ListReservationsByUser returns the user's reservations, newest first.
func (s *MySQLStore) ListReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
    rows, err := s.db.QueryContext(ctx, selectReservation+` WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Reservation, 0)
    for rows.Next() {
        r, err := scanReservationRow(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpdateReservation locks the row, applies the mutation and writes it
// back.  The write-back happens even when apply fails so that a
// confirmation attempt that lazily detects expiry persists the
// expired status before the error propagates.
func (s *MySQLStore) UpdateReservation(ctx context.Context, id uint64, now time.Time, apply func(*model.Reservation) error) (*model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    r, err := scanReservationRow(tx.QueryRowContext(ctx, selectReservation+` WHERE id = ? FOR UPDATE`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, model.ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }

    applyErr := apply(r)
    r.UpdatedAt = now.UTC()

    if err := writeReservationTx(ctx, tx, r); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return r, applyErr
}

func writeReservationTx(ctx context.Context, tx *sql.Tx, r *model.Reservation) error {
    var payRef, reason interface{}
    if r.PaymentRef != nil {
        payRef = *r.PaymentRef
    }
    if r.CancellationReason != nil {
        reason = *r.CancellationReason
    }
    var confirmed, cancelled, expires interface{}
    if r.ConfirmedAt != nil {
        confirmed = r.ConfirmedAt.UTC().Format(mysqlTime)
    }
    if r.CancelledAt != nil {
        cancelled = r.CancelledAt.UTC().Format(mysqlTime)
    }
    if r.ExpiresAt != nil {
        expires = r.ExpiresAt.UTC().Format(mysqlTime)
    }
    const upd = `UPDATE reservations
                 SET status = ?, payment_status = ?, payment_ref = ?,
                     expires_at = ?, confirmed_at = ?, cancelled_at = ?, cancellation_reason = ?,
                     updated_at = ?
                 WHERE id = ?`
    _, err := tx.ExecContext(ctx, upd,
        r.Status, r.PaymentStatus, payRef, expires, confirmed, cancelled, reason,
        r.UpdatedAt.Format(mysqlTime), r.ID,
    )
    return err
}

// ExpireDue collects pending reservations past their deadline and
// flips them to expired in one transaction.  The locking SELECT keeps
// a racing confirmation from seeing a half-applied sweep.
func (s *MySQLStore) ExpireDue(ctx context.Context, now time.Time) ([]model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    cutoff := now.UTC().Format(mysqlTime)
    rows, err := tx.QueryContext(ctx,
        selectReservation+` WHERE status = 'pending' AND expires_at <= ? FOR UPDATE`, cutoff)
    if err != nil {
        return nil, err
    }
    expired := make([]model.Reservation, 0)
    for rows.Next() {
        r, scanErr := scanReservationRow(rows)
        if scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        expired = append(expired, *r)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(expired) == 0 {
        committed = true
        return expired, tx.Commit()
    }

    _, err = tx.ExecContext(ctx,
        `UPDATE reservations SET status = 'expired' WHERE status = 'pending' AND expires_at <= ?`, cutoff)
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    for i := range expired {
        expired[i].Status = model.StatusExpired
    }
    return expired, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// ReservationRepo stores reservations, their seat lines and the seat_claims
// rows that keep at most one active claim per (showtime, seat).  All
// timestamps are written from the caller's clock in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, showtime_id, status, total_price_cents, hold_expires_at, confirmed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res       model.Reservation
		status    string
		expiresAt sql.NullTime
		confirmed sql.NullTime
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.ShowtimeID, &status, &res.TotalPriceCents,
		&expiresAt, &confirmed, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	res.Status = st
	res.HoldExpiresAt = nullTimePtr(expiresAt)
	res.ConfirmedAt = nullTimePtr(confirmed)
	return &res, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// CreateHold runs the whole hold in one READ COMMITTED transaction:
//
//  1. lock the existing seat_claims rows of the requested seats;
//  2. fail with a SeatConflictError if any belongs to an active reservation;
//  3. delete the stale claims left by lapsed or finished reservations;
//  4. insert the reservation, its seat lines and fresh claims.
//
// Two holds racing for a seat with no existing claim both pass step 2; the
// primary key on seat_claims makes the second insert fail and the loser
// receives booking.ErrConflict.
func (r *ReservationRepo) CreateHold(ctx context.Context, res *model.Reservation, lines []model.ReservationSeat, now time.Time) (err error) {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no seats to hold", booking.ErrValidation)
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seatIDs := make([]uint64, len(lines))
	for i, ln := range lines {
		seatIDs[i] = ln.SeatID
	}

	claims, err := r.lockClaimsTx(ctx, tx, res.ShowtimeID, seatIDs)
	if err != nil {
		return translate(err)
	}
	var taken []uint64
	for _, c := range claims {
		if c.Active(now) {
			taken = append(taken, c.SeatID)
		}
	}
	if len(taken) > 0 {
		return &booking.SeatConflictError{ShowtimeID: res.ShowtimeID, SeatIDs: taken}
	}
	for _, c := range claims {
		const del = `DELETE FROM seat_claims WHERE showtime_id = ? AND seat_id = ? AND reservation_id = ?`
		if _, err := tx.ExecContext(ctx, del, res.ShowtimeID, c.SeatID, c.ReservationID); err != nil {
			return translate(err)
		}
	}

	const ins = `INSERT INTO reservations (user_id, showtime_id, status, total_price_cents, hold_expires_at, confirmed_at, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins, res.UserID, res.ShowtimeID, string(res.Status), res.TotalPriceCents,
		timeArg(res.HoldExpiresAt), timeArg(res.ConfirmedAt), now, now)
	if err != nil {
		return translate(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	lineQuery := `INSERT INTO reservation_seats (reservation_id, showtime_id, seat_id, price_at_booking_cents) VALUES `
	claimQuery := `INSERT INTO seat_claims (showtime_id, seat_id, reservation_id) VALUES `
	lineArgs := make([]interface{}, 0, len(lines)*4)
	claimArgs := make([]interface{}, 0, len(lines)*3)
	for i, ln := range lines {
		if i > 0 {
			lineQuery += ","
			claimQuery += ","
		}
		lineQuery += "(?, ?, ?, ?)"
		claimQuery += "(?, ?, ?)"
		lineArgs = append(lineArgs, id, res.ShowtimeID, ln.SeatID, ln.PriceAtBookingCents)
		claimArgs = append(claimArgs, res.ShowtimeID, ln.SeatID, id)
	}
	if _, err := tx.ExecContext(ctx, lineQuery, lineArgs...); err != nil {
		return translate(err)
	}
	if _, err := tx.ExecContext(ctx, claimQuery, claimArgs...); err != nil {
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	res.ID = uint64(id)
	res.CreatedAt = now
	res.UpdatedAt = now
	return nil
}

// lockClaimsTx returns the claims currently recorded for the seats and
// locks their rows until the transaction ends.
func (r *ReservationRepo) lockClaimsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) ([]model.SeatClaim, error) {
	q := `SELECT c.seat_id, c.reservation_id, r.status, r.hold_expires_at
          FROM seat_claims c
          JOIN reservations r ON r.id = c.reservation_id
          WHERE c.showtime_id = ? AND c.seat_id IN (` + placeholders(len(seatIDs)) + `)
          FOR UPDATE`
	args := append([]interface{}{showtimeID}, uint64Args(seatIDs)...)
	return queryClaims(ctx, tx, q, args...)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryClaims(ctx context.Context, db queryer, q string, args ...interface{}) ([]model.SeatClaim, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var claims []model.SeatClaim
	for rows.Next() {
		var (
			c       model.SeatClaim
			status  string
			expires sql.NullTime
		)
		if err := rows.Scan(&c.SeatID, &c.ReservationID, &status, &expires); err != nil {
			return nil, err
		}
		if c.Status, err = model.ParseStatus(status); err != nil {
			return nil, err
		}
		c.HoldExpiresAt = nullTimePtr(expires)
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

// UpdateReservation locks the reservation row, applies fn and writes the
// result back.  The status change must be allowed by
// model.Status.CanTransition.  Moving to CONFIRMED requires the reservation
// to still own a claim for every seat line.  Moving to CANCELLED or EXPIRED
// deletes the seat claims in the same transaction, so the seats are free on
// return.
func (r *ReservationRepo) UpdateReservation(ctx context.Context, id uint64, fn func(res *model.Reservation) error) (_ *model.Reservation, _ []uint64, err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	before := res.Status
	if err := fn(res); err != nil {
		return nil, nil, err
	}
	if res.Status != before && !before.CanTransition(res.Status) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", booking.ErrInvalidState, before, res.Status)
	}
	if res.Status != before && res.Status == model.StatusConfirmed {
		if err := claimsOwned(ctx, tx, res.ID); err != nil {
			return nil, nil, err
		}
	}

	const upd = `UPDATE reservations SET status = ?, hold_expires_at = ?, confirmed_at = ?, updated_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, string(res.Status), timeArg(res.HoldExpiresAt), timeArg(res.ConfirmedAt), res.UpdatedAt.UTC(), res.ID); err != nil {
		return nil, nil, translate(err)
	}
	if res.Status != before && (res.Status == model.StatusCancelled || res.Status == model.StatusExpired) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM seat_claims WHERE reservation_id = ?`, res.ID); err != nil {
			return nil, nil, translate(err)
		}
	}

	seatIDs, err := seatIDsOf(ctx, tx, res.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, translate(err)
	}
	committed = true
	return res, seatIDs, nil
}

// claimsOwned locks the reservation's seat claims and fails with
// booking.ErrExpired when a lapsed claim was taken over by another hold.
func claimsOwned(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	var claims, lines int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seat_claims WHERE reservation_id = ? FOR UPDATE`, reservationID).Scan(&claims); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservation_seats WHERE reservation_id = ?`, reservationID).Scan(&lines); err != nil {
		return err
	}
	if claims != lines {
		return fmt.Errorf("%w: reservation %d owns %d of %d seat claims", booking.ErrExpired, reservationID, claims, lines)
	}
	return nil
}

func seatIDsOf(ctx context.Context, db queryer, reservationID uint64) ([]uint64, error) {
	rows, err := db.QueryContext(ctx, `SELECT seat_id FROM reservation_seats WHERE reservation_id = ? ORDER BY id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetReservation loads a reservation and its seat lines.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uint64) (*model.Reservation, []model.ReservationSeat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	const q = `SELECT id, reservation_id, showtime_id, seat_id, price_at_booking_cents
               FROM reservation_seats WHERE reservation_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var lines []model.ReservationSeat
	for rows.Next() {
		var ln model.ReservationSeat
		if err := rows.Scan(&ln.ID, &ln.ReservationID, &ln.ShowtimeID, &ln.SeatID, &ln.PriceAtBookingCents); err != nil {
			return nil, nil, err
		}
		lines = append(lines, ln)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return res, lines, nil
}

// SeatClaims returns the HELD and CONFIRMED seat lines for the seats of a
// showtime.  Lapsed holds are included; the caller decides with its clock.
func (r *ReservationRepo) SeatClaims(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.SeatClaim, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	q := `SELECT rs.seat_id, r.id, r.status, r.hold_expires_at
          FROM reservation_seats rs
          JOIN reservations r ON r.id = rs.reservation_id
          WHERE rs.showtime_id = ? AND rs.seat_id IN (` + placeholders(len(seatIDs)) + `)
            AND r.status IN ('HELD', 'CONFIRMED')`
	args := append([]interface{}{showtimeID}, uint64Args(seatIDs)...)
	return queryClaims(ctx, r.db, q, args...)
}

// ListLapsedHolds returns up to limit HELD reservations whose hold expired
// at or before now, oldest first.
func (r *ReservationRepo) ListLapsedHolds(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations
               WHERE status = 'HELD' AND hold_expires_at <= ?
               ORDER BY hold_expires_at
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

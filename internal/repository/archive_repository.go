package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/baresync/comanda/internal/model"
)

// ArchiveRepo persists session and ticket snapshots for audit and for
// the client order-history listing.  The live session state in memory
// stays authoritative; rows here are write-behind copies updated after
// each transition, which is why every write is an upsert.  All
// timestamps are stored in UTC.
type ArchiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo returns a new ArchiveRepo bound to the given database.
func NewArchiveRepo(db *sql.DB) *ArchiveRepo { return &ArchiveRepo{db: db} }

// DB exposes the underlying handle for transaction scoping by callers.
func (r *ArchiveRepo) DB() *sql.DB { return r.db }

// sessionRowTx resolves the archive row id of the current (non-closed)
// session for a table, creating it when this is the first write of a
// new session.  Runs inside the caller's transaction so a concurrent
// archive write for the same new session cannot create two rows.
func (r *ArchiveRepo) sessionRowTx(ctx context.Context, tx *sql.Tx, key model.SessionKey) (uint64, error) {
	const sel = `SELECT id FROM order_sessions
				 WHERE bar_id = ? AND table_id = ? AND status != 'CLOSED'
				 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	var id uint64
	err := tx.QueryRowContext(ctx, sel, key.BarID, key.TableID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	const ins = `INSERT INTO order_sessions (bar_id, table_id, status) VALUES (?, ?, 'OPEN')`
	res, err := tx.ExecContext(ctx, ins, key.BarID, key.TableID)
	if err != nil {
		return 0, err
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(newID), nil
}

// ArchiveTicket upserts one ticket snapshot and replaces its lines.
// Implements order.Archiver.
func (r *ArchiveRepo) ArchiveTicket(ctx context.Context, key model.SessionKey, t model.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sessionID, err := r.sessionRowTx(ctx, tx, key)
	if err != nil {
		return err
	}

	// Writes are asynchronous, so two rapid transitions of one ticket
	// may arrive here out of order.  Lock the existing row and skip the
	// write when it already holds a later lifecycle position; the row
	// only ever moves forward through the state machine.
	var curState string
	var curRevision uint64
	const cur = `SELECT state, revision FROM order_tickets
				 WHERE session_id = ? AND seq = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, cur, sessionID, t.Seq).Scan(&curState, &curRevision)
	switch {
	case err == nil:
		if curRevision > t.Revision ||
			(curRevision == t.Revision && stateProgress(model.TicketState(curState)) >= stateProgress(t.State)) {
			committed = true
			return tx.Commit()
		}
	case err != sql.ErrNoRows:
		return err
	}

	const up = `INSERT INTO order_tickets
					(session_id, seq, submitted_by, submitted_at, state, revision, replaced_by)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					state = VALUES(state),
					revision = VALUES(revision),
					replaced_by = VALUES(replaced_by)`
	var replacedBy interface{}
	if t.ReplacedBy != nil {
		replacedBy = *t.ReplacedBy
	}
	if _, err := tx.ExecContext(ctx, up,
		sessionID, t.Seq, t.SubmittedBy,
		t.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
		string(t.State), t.Revision, replacedBy,
	); err != nil {
		return err
	}

	var ticketID uint64
	const sel = `SELECT id FROM order_tickets WHERE session_id = ? AND seq = ?`
	if err := tx.QueryRowContext(ctx, sel, sessionID, t.Seq).Scan(&ticketID); err != nil {
		return err
	}

	// Replace lines wholesale; a review may have changed any of them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_ticket_lines WHERE ticket_id = ?`, ticketID); err != nil {
		return err
	}
	if len(t.Lines) > 0 {
		query := `INSERT INTO order_ticket_lines
					  (ticket_id, product_id, name, unit_price_cents, requested_qty, confirmed_qty, available)
				  VALUES `
		args := make([]interface{}, 0, len(t.Lines)*7)
		for i, l := range t.Lines {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?)"
			args = append(args, ticketID, l.ProductID, l.Name, l.UnitPriceCents, l.RequestedQty, l.ConfirmedQty, l.Available)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// stateProgress orders ticket states along the lifecycle so archive
// writes can be refused when they would move a row backwards.  Equal
// progress at equal revision means a duplicate of an already archived
// snapshot; terminal states share the top position because a ticket
// only ever reaches one of them.
func stateProgress(s model.TicketState) int {
	switch s {
	case model.TicketSubmitted:
		return 0
	case model.TicketUnderReview:
		return 1
	case model.TicketAdjusted, model.TicketAwaitingClientAck:
		return 2
	case model.TicketConfirmed, model.TicketRejected, model.TicketAbandoned:
		return 3
	}
	return 0
}

// ArchiveSession upserts the session row itself (status, payment ref,
// close time).  Tickets are archived individually as they transition.
// Implements order.Archiver.
func (r *ArchiveRepo) ArchiveSession(ctx context.Context, s model.TableSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sessionID, err := r.sessionRowTx(ctx, tx, s.Key)
	if err != nil {
		return err
	}

	var closedAt interface{}
	if s.ClosedAt != nil {
		closedAt = s.ClosedAt.UTC().Format("2006-01-02 15:04:05")
	}
	var paymentRef interface{}
	if s.PaymentRef != nil {
		paymentRef = *s.PaymentRef
	}
	const up = `UPDATE order_sessions SET status = ?, payment_ref = ?, closed_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, up, string(s.Status), paymentRef, closedAt, sessionID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// TicketHistoryRecord is one past ticket as shown on the client's
// order-history screen.
type TicketHistoryRecord struct {
	BarID       uint64             `json:"bar_id"`
	TableID     uint64             `json:"table_id"`
	Seq         uint64             `json:"seq"`
	State       string             `json:"state"`
	SubmittedAt string             `json:"submitted_at"`
	TotalCents  int64              `json:"total_cents"`
	Lines       []TicketHistoryLine `json:"lines"`
}

// TicketHistoryLine is one line of a historical ticket.
type TicketHistoryLine struct {
	ProductID      uint64 `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	RequestedQty   uint32 `json:"requested_qty"`
	ConfirmedQty   uint32 `json:"confirmed_qty"`
	Available      bool   `json:"available"`
}

// ListByParticipant returns the participant's archived tickets, newest
// first, with their lines populated.  The confirmed total is computed
// from the archived lines, so Rejected and Abandoned tickets show the
// zero they contribute.
func (r *ArchiveRepo) ListByParticipant(ctx context.Context, participantID string, limit int) ([]TicketHistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const q = `SELECT t.id, s.bar_id, s.table_id, t.seq, t.state, t.submitted_at
			   FROM order_tickets t
			   JOIN order_sessions s ON s.id = t.session_id
			   WHERE t.submitted_by = ?
			   ORDER BY t.submitted_at DESC, t.id DESC
			   LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, participantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]TicketHistoryRecord, 0)
	index := make(map[uint64]int)
	ids := make([]interface{}, 0)
	for rows.Next() {
		var rec TicketHistoryRecord
		var ticketID uint64
		var submittedAt time.Time
		if err := rows.Scan(&ticketID, &rec.BarID, &rec.TableID, &rec.Seq, &rec.State, &submittedAt); err != nil {
			return nil, err
		}
		rec.SubmittedAt = submittedAt.UTC().Format(time.RFC3339)
		rec.Lines = []TicketHistoryLine{}
		index[ticketID] = len(records)
		records = append(records, rec)
		ids = append(ids, ticketID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	query := `SELECT ticket_id, product_id, name, unit_price_cents, requested_qty, confirmed_qty, available
			  FROM order_ticket_lines
			  WHERE ticket_id IN (?` + repeatPlaceholder(len(ids)-1) + `)
			  ORDER BY ticket_id, id`
	lrows, err := r.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var tid uint64
		var l TicketHistoryLine
		if err := lrows.Scan(&tid, &l.ProductID, &l.Name, &l.UnitPriceCents, &l.RequestedQty, &l.ConfirmedQty, &l.Available); err != nil {
			return nil, err
		}
		i, ok := index[tid]
		if !ok {
			continue
		}
		records[i].Lines = append(records[i].Lines, l)
		if records[i].State == string(model.TicketConfirmed) {
			records[i].TotalCents += int64(l.ConfirmedQty) * l.UnitPriceCents
		}
	}
	if err := lrows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// repeatPlaceholder returns n copies of ",?" for IN clauses.
func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}

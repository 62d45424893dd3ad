package db

import (
	"context"
	"fmt"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

type TicketRepo struct {
	db core.IDB
}

func NewTicketRepo(db core.IDB) *TicketRepo {
	return &TicketRepo{db: db}
}

const ticketColumns = `id, user_id, user_role, restaurant_id, subject, order_number, status, created_at, updated_at`

func scanTicket(row pgx.Row) (dto.Ticket, error) {
	var t dto.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.UserRole, &t.RestaurantID, &t.Subject, &t.OrderNumber, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, notFound(err)
}

const messageColumns = `id, ticket_id, author_id, author_role, body, voice_note_url, created_at`

func scanMessage(row pgx.Row) (dto.TicketMessage, error) {
	var m dto.TicketMessage
	err := row.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.AuthorRole, &m.Body, &m.VoiceNoteURL, &m.CreatedAt)
	return m, notFound(err)
}

// insertMessage stores m and writes the outbox event with the ticket owner attached.
func insertMessage(ctx context.Context, tx pgx.Tx, t dto.Ticket, m dto.TicketMessage) (dto.TicketMessage, error) {
	created, err := scanMessage(tx.QueryRow(ctx, `
		INSERT INTO ticket_messages (ticket_id, author_id, author_role, body, voice_note_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+messageColumns, t.ID, m.AuthorID, m.AuthorRole, m.Body, m.VoiceNoteURL))
	if err != nil {
		return dto.TicketMessage{}, fmt.Errorf("insert ticket message: %w", err)
	}
	created.TicketUserID = t.UserID
	created.TicketUserRole = t.UserRole
	created.TicketRestaurantID = t.RestaurantID
	return created, outbox.Write(ctx, tx, "ticket_messages", events.Insert, created, nil)
}

func (tr *TicketRepo) Create(ctx context.Context, t dto.Ticket, first dto.TicketMessage) (dto.Ticket, error) {
	var created dto.Ticket
	err := db.WithTx(ctx, tr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = scanTicket(tx.QueryRow(ctx, `
			INSERT INTO support_tickets (user_id, user_role, restaurant_id, subject, order_number, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+ticketColumns, t.UserID, t.UserRole, t.RestaurantID, t.Subject, t.OrderNumber, t.Status))
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		if err := outbox.Write(ctx, tx, "support_tickets", events.Insert, created, nil); err != nil {
			return err
		}
		m, err := insertMessage(ctx, tx, created, first)
		if err != nil {
			return err
		}
		created.Messages = []dto.TicketMessage{m}
		return nil
	})
	return created, err
}

func (tr *TicketRepo) Get(ctx context.Context, id string) (dto.Ticket, error) {
	if !isUUID(id) {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	t, err := scanTicket(tr.db.GetPool().QueryRow(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id))
	if err != nil {
		return dto.Ticket{}, err
	}
	t.Messages, err = queryAll(ctx, tr.db.GetPool(), `
		SELECT `+messageColumns+` FROM ticket_messages
		WHERE ticket_id = $1
		ORDER BY created_at, id`, scanMessage, id)
	if err != nil {
		return dto.Ticket{}, fmt.Errorf("load ticket messages: %w", err)
	}
	return t, nil
}

func (tr *TicketRepo) List(ctx context.Context, f dto.TicketFilter) ([]dto.Ticket, error) {
	items, err := queryAll(ctx, tr.db.GetPool(), `
		SELECT `+ticketColumns+` FROM support_tickets
		WHERE ($1::text = '' OR user_id = $1) AND ($2::text = '' OR status = $2)
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4`, scanTicket, f.UserID, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return items, nil
}

func (tr *TicketRepo) AddMessage(ctx context.Context, m dto.TicketMessage) (dto.TicketMessage, error) {
	if !isUUID(m.TicketID) {
		return dto.TicketMessage{}, xerrors.ErrNotFound
	}
	var created dto.TicketMessage
	err := db.WithTx(ctx, tr.db.GetPool(), func(tx pgx.Tx) error {
		t, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1 FOR UPDATE`, m.TicketID))
		if err != nil {
			return err
		}
		if t.Status == dto.TicketClosed {
			return core.ErrTicketClosed
		}
		created, err = insertMessage(ctx, tx, t, m)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE support_tickets SET updated_at = now() WHERE id = $1`, t.ID)
		return err
	})
	return created, err
}

func (tr *TicketRepo) SetStatus(ctx context.Context, id, status string) (dto.Ticket, error) {
	if !isUUID(id) {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	var updated dto.Ticket
	err := db.WithTx(ctx, tr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scanTicket(tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		updated, err = scanTicket(tx.QueryRow(ctx, `
			UPDATE support_tickets SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+ticketColumns, id, status))
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		return outbox.Write(ctx, tx, "support_tickets", events.Update, updated, old)
	})
	return updated, err
}

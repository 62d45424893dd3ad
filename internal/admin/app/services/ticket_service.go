package services

import (
	"context"
	"fmt"
	"strings"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type TicketService struct {
	repo  core.ITicketRepo
	mylog logger.Logger
}

func NewTicketService(repo core.ITicketRepo, mylog logger.Logger) *TicketService {
	return &TicketService{repo: repo, mylog: mylog}
}

func validateMessage(body, voiceNoteURL string) error {
	if body == "" && voiceNoteURL == "" {
		return core.ErrEmptyMessage
	}
	if len(body) > core.MaxMessageLen {
		return fmt.Errorf("%w: body longer than %d", xerrors.ErrInvalidInput, core.MaxMessageLen)
	}
	if voiceNoteURL != "" && !strings.HasPrefix(voiceNoteURL, "https://") && !strings.HasPrefix(voiceNoteURL, "http://") {
		return fmt.Errorf("%w: voice_note_url must be an http(s) url", xerrors.ErrInvalidInput)
	}
	return nil
}

// Open creates a ticket with its first message on behalf of the caller.
func (ts *TicketService) Open(ctx context.Context, id httpx.Identity, req dto.TicketRequest) (dto.Ticket, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return dto.Ticket{}, fmt.Errorf("subject: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(subject) > core.MaxSubjectLen {
		return dto.Ticket{}, fmt.Errorf("%w: subject longer than %d", xerrors.ErrInvalidInput, core.MaxSubjectLen)
	}
	body := strings.TrimSpace(req.Body)
	if err := validateMessage(body, ""); err != nil {
		return dto.Ticket{}, err
	}

	t := dto.Ticket{
		UserID:       id.UserID,
		UserRole:     id.Role,
		RestaurantID: id.RestaurantID,
		Subject:      subject,
		OrderNumber:  strings.TrimSpace(req.OrderNumber),
		Status:       dto.TicketOpen,
	}
	created, err := ts.repo.Create(ctx, t, dto.TicketMessage{AuthorID: id.UserID, AuthorRole: id.Role, Body: body})
	if err != nil {
		return dto.Ticket{}, err
	}
	ts.mylog.Action("ticket_opened").Info("support ticket opened", "ticket_id", created.ID, "user_id", id.UserID)
	return created, nil
}

// List shows the caller's own tickets; admins see all of them.
func (ts *TicketService) List(ctx context.Context, id httpx.Identity, f dto.TicketFilter) ([]dto.Ticket, error) {
	if !id.IsAdmin() {
		f.UserID = id.UserID
	}
	switch f.Status {
	case "", dto.TicketOpen, dto.TicketPending, dto.TicketResolved, dto.TicketClosed:
	default:
		return nil, core.ErrUnknownStatus
	}
	return ts.repo.List(ctx, f)
}

// Get returns a ticket with its messages. Other users' tickets read as not found.
func (ts *TicketService) Get(ctx context.Context, id httpx.Identity, ticketID string) (dto.Ticket, error) {
	t, err := ts.repo.Get(ctx, ticketID)
	if err != nil {
		return dto.Ticket{}, err
	}
	if !id.IsAdmin() && t.UserID != id.UserID {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	return t, nil
}

// Reply adds a message from the ticket owner or an admin.
func (ts *TicketService) Reply(ctx context.Context, id httpx.Identity, ticketID string, req dto.MessageRequest) (dto.TicketMessage, error) {
	body, voice := strings.TrimSpace(req.Body), strings.TrimSpace(req.VoiceNoteURL)
	if err := validateMessage(body, voice); err != nil {
		return dto.TicketMessage{}, err
	}
	t, err := ts.Get(ctx, id, ticketID)
	if err != nil {
		return dto.TicketMessage{}, err
	}
	if t.Status == dto.TicketClosed {
		return dto.TicketMessage{}, core.ErrTicketClosed
	}

	m, err := ts.repo.AddMessage(ctx, dto.TicketMessage{
		TicketID:           t.ID,
		AuthorID:           id.UserID,
		AuthorRole:         id.Role,
		Body:               body,
		VoiceNoteURL:       voice,
		TicketUserID:       t.UserID,
		TicketUserRole:     t.UserRole,
		TicketRestaurantID: t.RestaurantID,
	})
	if err != nil {
		return dto.TicketMessage{}, err
	}
	return m, nil
}

// SetStatus is the admin workflow: open, pending, resolved or closed.
func (ts *TicketService) SetStatus(ctx context.Context, ticketID, status string) (dto.Ticket, error) {
	switch status {
	case dto.TicketOpen, dto.TicketPending, dto.TicketResolved, dto.TicketClosed:
	default:
		return dto.Ticket{}, core.ErrUnknownStatus
	}
	t, err := ts.repo.SetStatus(ctx, ticketID, status)
	if err != nil {
		return dto.Ticket{}, err
	}
	ts.mylog.Action("ticket_status_changed").Info("support ticket status changed", "ticket_id", ticketID, "status", status)
	return t, nil
}

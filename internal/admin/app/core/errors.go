package core

import (
	"fmt"

	xerrors "deliveryhub/internal/xpkg/errors"
)

var (
	ErrSlugTaken     = fmt.Errorf("%w: slug is already used by another article", xerrors.ErrConflict)
	ErrTicketClosed  = fmt.Errorf("%w: ticket is closed", xerrors.ErrConflict)
	ErrDriverExists  = fmt.Errorf("%w: driver profile already exists", xerrors.ErrConflict)
	ErrPromoExists   = fmt.Errorf("%w: promo code already exists", xerrors.ErrConflict)
	ErrUnknownStatus = fmt.Errorf("%w: unknown status", xerrors.ErrInvalidInput)
	ErrFrequency     = fmt.Errorf("%w: payout_frequency must be daily, weekly, biweekly or monthly", xerrors.ErrInvalidInput)
	ErrEmptyMessage  = fmt.Errorf("%w: body or voice_note_url is required", xerrors.ErrFieldIsEmpty)
)

package core

import (
	"fmt"

	xerrors "deliveryhub/internal/xpkg/errors"
)

var (
	ErrRestaurantClosed = fmt.Errorf("%w: restaurant is not accepting orders", xerrors.ErrConflict)
	ErrItemUnavailable  = fmt.Errorf("%w: menu item is unavailable", xerrors.ErrInvalidInput)
	ErrConcurrentUpdate = fmt.Errorf("%w: order was changed by someone else, reload and retry", xerrors.ErrConflict)
)

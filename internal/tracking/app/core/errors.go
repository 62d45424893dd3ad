package core

import (
	"fmt"

	xerrors "deliveryhub/internal/xpkg/errors"
)

var (
	ErrDriverBusy    = fmt.Errorf("%w: driver has an active delivery", xerrors.ErrConflict)
	ErrDriverOffline = fmt.Errorf("%w: driver is offline, go online first", xerrors.ErrConflict)
	ErrNoDriver      = fmt.Errorf("%w: no driver profile for this account", xerrors.ErrNotFound)
)

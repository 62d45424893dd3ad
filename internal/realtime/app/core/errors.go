package core

import (
	"errors"
	"fmt"

	xerrors "deliveryhub/internal/xpkg/errors"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrBadFilter      = errors.New(`filter must look like "column=eq.value"`)
	ErrFilterRequired = fmt.Errorf("%w: a filter on your own id is required for this topic", xerrors.ErrForbidden)
	ErrFilterValue    = fmt.Errorf("%w: filter value must be your user or restaurant id", xerrors.ErrForbidden)
	ErrFilterColumn   = fmt.Errorf("%w: this column cannot be used to filter the topic", xerrors.ErrForbidden)
	ErrTooManySubs    = errors.New("too many subscriptions")
	ErrTooManyClients = errors.New("gateway is full, try again later")
	ErrFeedClosed     = errors.New("broker feed closed")
)

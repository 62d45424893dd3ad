package core

import "errors"

var (
	ErrBadPayload = errors.New("undecodable row change")
	ErrPush       = errors.New("push webhook failed")
)

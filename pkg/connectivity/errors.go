package connectivity

import "errors"

var (
	ErrOffline            = errors.New("network is offline")
	ErrBackendUnreachable = errors.New("backend is unreachable")
)

package model

import "errors"

var (
	// ErrGeometry: contours could not be welded into a closed loop.
	ErrGeometry = errors.New("geometry error")
	// ErrPlacement: no collision-free position under any rotation or sheet.
	ErrPlacement = errors.New("placement failure")
	// ErrConfiguration: the run configuration cannot be honoured.
	ErrConfiguration = errors.New("configuration error")
	// ErrProtocol: a request could not be understood.
	ErrProtocol = errors.New("protocol error")
	// ErrBusy: a run is already active.
	ErrBusy = errors.New("nesting run already active")
)

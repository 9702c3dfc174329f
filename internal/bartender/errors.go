package bartender

import "errors"

var (
	ErrBusy               = errors.New("a pour is already in progress")
	ErrUnknownRecipe      = errors.New("unknown recipe")
	ErrInsufficientVolume = errors.New("insufficient volume")
	ErrAlreadyRefilling   = errors.New("reservoir is already refilling")
	ErrTimeout            = errors.New("timed out")
	ErrHardwareFault      = errors.New("hardware fault")
	ErrUnknownReservoir   = errors.New("unknown reservoir")
	ErrStopped            = errors.New("stopped before completion")
	ErrClosed             = errors.New("bartender is shutting down")
)

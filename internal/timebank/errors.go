package timebank

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInvalidInput          = errors.New("invalid input")
	ErrListingUnavailable    = errors.New("listing unavailable")
	ErrListingFull           = errors.New("listing full")
	ErrSelfProposal          = errors.New("cannot propose on your own listing")
	ErrDuplicateProposal     = errors.New("a live proposal already exists for this listing")
	ErrHandshakeNotFound     = errors.New("handshake not found")
	ErrUnauthorized          = errors.New("actor is not a party to this handshake")
	ErrAlreadyTerminal       = errors.New("handshake already declined or completed")
	ErrAlreadyAccepted       = errors.New("handshake already accepted; it can only be completed")
	ErrNotAccepted           = errors.New("handshake has not been accepted")
	ErrHoursImmutable        = errors.New("hours are fixed once a handshake is accepted")
	ErrHoursOverrideDisabled = errors.New("owner may not override the listing hours")
	ErrAlreadyRated          = errors.New("rating already submitted")
	ErrCannotRate            = errors.New("confirm completion before rating")
)

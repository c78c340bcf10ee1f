package messages

const (
	// ErrUserErrorProcessing is shown when a command or button fails for an unknown reason.
	ErrUserErrorProcessing = "Something went wrong while processing that. Please try again later."

	// ErrUserNotStaff is shown when a non-staff member uses a staff-only action.
	ErrUserNotStaff = "You do not have permission to use this. This action is reserved for staff."

	// ErrUserNotOpener is shown when someone other than the ticket opener uses an opener-only action.
	ErrUserNotOpener = "Only the person who opened this ticket can use this button."

	// ErrTicketNotConfigured is shown when the destination for a ticket category is not configured.
	ErrTicketNotConfigured = "The destination for this ticket category has not been configured. Please contact the administration."

	// ErrTicketCreationFailed is shown when opening a ticket fails.
	ErrTicketCreationFailed = "There was an error opening your ticket. Please try again later."

	// ErrRatingInvalid is shown when a rating button carries a malformed token.
	ErrRatingInvalid = "This rating button is invalid. Please contact the administration."

	// ErrRatingNotYours is shown when a user tries to answer someone else's rating request.
	ErrRatingNotYours = "You cannot rate this ticket. Only the original opener can."
)

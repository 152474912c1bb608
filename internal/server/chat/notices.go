package chat

// User-facing texts sent by the server.
const (
	promptUsername    = "Username: "
	promptPassword    = "Password: "
	promptNewPassword = "This is a new user. Enter a password: "

	msgUserActive        = "This user is currently active. Please login with another user"
	msgInvalidUsername   = "Error. Usernames cannot be empty or contain spaces"
	msgInvalidNewPass    = "Error. Passwords cannot be empty or contain spaces"
	msgInvalidPassword   = "Invalid Password. Please try again"
	msgAccountBlocked    = "Invalid Password. Your account has been blocked. Please try again later"
	msgLoginBlocked      = "Your account is blocked due to multiple login failures. Please try again later"
	msgWelcome           = "Welcome to the greatest messaging application ever!"
	msgTimedOut          = "You have been timed out due to inactivity for a long period of time. Please re-login later"
	msgShutdown          = "The server is shutting down. Please re-login later"
	msgUnavailable       = "Error. Service unavailable. Please try again later"
	msgInvalidCommand    = "Error. Invalid command"
	msgRateLimited       = "Error. Too many commands. Please slow down"
	msgInvalidUser       = "Error. Invalid user"
	msgSelfMessage       = "Error. Cannot send message to your self"
	msgRecipientBlocked  = "Your message could not be delivered as the recipient has blocked you"
	msgPartialBroadcast  = "Your message could not be delivered to some recipients"
	msgWhoelsesinceUsage = "Error. Usage: whoelsesince <seconds>"
	msgSelfBlock         = "Error. Cannot block self"
	msgSelfUnblock       = "Error. Cannot unblock self"
	msgSelfPrivate       = "Error. Cannot privately message self"
	msgUserOffline       = "Error. User is not online"

	fmtLoggedIn       = "%s logged in"
	fmtLoggedOut      = "%s logged out"
	fmtMessage        = "%s: %s"
	fmtBlocked        = "%s is blocked"
	fmtAlreadyBlocked = "Error. %s has already been blocked"
	fmtUnblocked      = "%s is unblocked"
	fmtNotBlocked     = "Error. %s was not blocked"
	fmtPrivateBlocked = "Error. You can not privately message %s as the recipient has blocked you"
	fmtPrivateStart   = "Start private messaging with %s"
)

package session

// Lines the server sends during the handshake.  Clients match on these
// verbatim, so they must not change.
const (
	PromptChoice = "Do you want to (1) Login or (2) Sign up?"

	PromptLoginUsername = "Enter your username: "
	PromptLoginPassword = "Enter your password: "
	LoginOK             = "Login successful! Welcome to the chat."
	LoginFailed         = "Invalid credentials. Please try again."

	PromptSignupUsername = "Choose a username: "
	PromptSignupPassword = "Choose a password: "
	SignupOK             = "Signup successful! You are now logged in."
	SignupFailed         = "Username already exists. Please try another username."
)

// Choices accepted at PromptChoice.
const (
	ChoiceLogin  = "1"
	ChoiceSignup = "2"
)

// State is where a session is in its lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateLogin
	StateSignup
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLogin:
		return "authenticating(login)"
	case StateSignup:
		return "authenticating(signup)"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

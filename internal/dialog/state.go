package dialog

// State identifies the dialog's current interaction phase.
type State int

const (
	// StateClosed means the dialog is not visible. All events except Open
	// are ignored.
	StateClosed State = iota

	// StateIdle shows the greeting or the last reply; input is enabled.
	StateIdle

	// StateListening means a capture is active; input is disabled.
	StateListening

	// StateAwaitingPassword means the last response demanded a credential
	// before a sensitive action executes. Only submit or cancel are valid.
	StateAwaitingPassword

	// StateError shows a failure message. Behaves like StateIdle for input
	// so the user can immediately retry.
	StateError
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Snapshot is an immutable view of the dialog handed to the presentation
// layer after every state change.
type Snapshot struct {
	// State is the current interaction phase.
	State State

	// Display is the text shown in the dialog body: greeting, reply, apology,
	// or error message.
	Display string

	// Busy reports that an assistant request is in flight; the presentation
	// should disable capture and quick phrases.
	Busy bool
}

// Interactive reports whether new captures and quick phrases are accepted in
// the snapshot's state.
func (s Snapshot) Interactive() bool {
	return (s.State == StateIdle || s.State == StateError) && !s.Busy
}

// Display texts fixed by the interaction protocol.
const (
	// DefaultGreeting is shown every time the dialog opens.
	DefaultGreeting = "Hi! How can I help you today?"

	// apologyText is shown when a capture ends without an utterance.
	apologyText = "Sorry, I didn't catch that. Please try again."

	// networkErrorText is shown on transport failures. Retry is manual.
	networkErrorText = "Connection error. Please try again."

	// cancelledText is shown when the user backs out of a password challenge.
	cancelledText = "Transaction cancelled."
)

// statementsPage is the one navigation target that keeps the dialog open:
// the user presumably wants to read the statements the assistant opened.
const statementsPage = "statements"

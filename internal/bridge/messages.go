package bridge

// Client intent types. One per dialog event the presentation can raise.
const (
	msgOpen           = "open"
	msgClose          = "close"
	msgStartCapture   = "start_capture"
	msgQuickPhrase    = "quick_phrase"
	msgSubmitPassword = "submit_password"
	msgCancelPassword = "cancel_password"
	msgUtterance      = "utterance"
	msgNoSpeech       = "no_speech"
)

// Server event types pushed to the client.
const (
	evState        = "state"
	evSpeak        = "speak"
	evNavigate     = "navigate"
	evClosed       = "closed"
	evCaptureStart = "capture_start"
	evCaptureStop  = "capture_stop"
	evQuickPhrases = "quick_phrases"
)

// clientMessage is one JSON text frame from the client.
type clientMessage struct {
	Type string `json:"type"`

	// Text carries the quick phrase or recognized utterance.
	Text string `json:"text,omitempty"`

	// Confidence accompanies an utterance from browser recognition.
	Confidence float64 `json:"confidence,omitempty"`

	// Password accompanies submit_password.
	Password string `json:"password,omitempty"`
}

// serverMessage is one JSON text frame to the client.
type serverMessage struct {
	Type string `json:"type"`

	// State, Display, Busy mirror a dialog snapshot.
	State   string `json:"state,omitempty"`
	Display string `json:"display,omitempty"`
	Busy    bool   `json:"busy,omitempty"`

	// Text is the speech payload for speak events.
	Text string `json:"text,omitempty"`

	// Page is the navigation target for navigate events.
	Page string `json:"page,omitempty"`

	// Phrases is the shortcut list for quick_phrases events.
	Phrases []string `json:"phrases,omitempty"`
}

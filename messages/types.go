package messages

// MessageType defines the type of message being sent
type MessageType string

const (
	// Server -> Client
	MessageTypeServer    MessageType = "server"
	MessageTypeLoggedIn  MessageType = "logged-in"
	MessageTypeSet       MessageType = "set"
	MessageTypeHear      MessageType = "hear"
	MessageTypeLoggedOut MessageType = "logged-out"

	// Client -> Server
	MessageTypeLogin  MessageType = "login"
	MessageTypeCmd    MessageType = "cmd"
	MessageTypeLogout MessageType = "logout"
)

// Protocol version carried in the server hello.
const Version = "1.0"

// Command types carried in a cmd message.
const (
	CmdClick = "click"
	CmdSay   = "say"
	CmdPress = "press"
)

// Server status values carried in the server hello.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
	StatusBusy   = "busy"
)

// BaseMessage is the minimal structure used to route incoming frames by type.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// Attrs is the subset of object attributes carried by a set message.
// Nil fields are omitted from the wire; a full object definition sets
// every field, including zero values.
type Attrs struct {
	Name    *string `json:"name,omitempty"`
	Text    *string `json:"text,omitempty"`
	Energy  *int    `json:"energy,omitempty"`
	BgColor *string `json:"bgcolor,omitempty"`
	FgColor *string `json:"fgcolor,omitempty"`
	X       *int    `json:"x,omitempty"`
	Y       *int    `json:"y,omitempty"`
	Image   *string `json:"image,omitempty"`
}

// String returns a pointer suitable for an Attrs field.
func String(s string) *string { return &s }

// Int returns a pointer suitable for an Attrs field.
func Int(i int) *int { return &i }

// ServerHelloMessage is sent immediately after a connection is accepted.
type ServerHelloMessage struct {
	Type    MessageType `json:"type"`
	Version string      `json:"version"`
	Group   string      `json:"group"`
	Name    string      `json:"name"`
	Status  string      `json:"status"`
}

// LoggedInMessage is the login response. ObjID is present only on success.
type LoggedInMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	ObjID   string      `json:"objid,omitempty"`
}

// SetMessage carries an attribute delta (or a full definition) for one object.
type SetMessage struct {
	Type  MessageType `json:"type"`
	ObjID string      `json:"objid"`
	Attrs
}

// HearMessage carries chat/speech to a client.
type HearMessage struct {
	Type    MessageType `json:"type"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Message string      `json:"message"`
}

// LoggedOutMessage informs a client its session is ending.
type LoggedOutMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// LoginMessage is a client login request.
type LoginMessage struct {
	Type     MessageType `json:"type"`
	User     string      `json:"user"`
	Password string      `json:"password"`
}

// CmdMessage is a client command: click, say, or press.
type CmdMessage struct {
	Type    MessageType `json:"type"`
	CmdType string      `json:"cmd_type"`
	ObjID   string      `json:"objid"`
	Text    string      `json:"text,omitempty"`
}

// LogoutMessage is a client logout request.
type LogoutMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message,omitempty"`
}

// MakeServerHello builds the hello frame sent on connect.
func MakeServerHello(group, name, status string) ServerHelloMessage {
	return ServerHelloMessage{
		Type:    MessageTypeServer,
		Version: Version,
		Group:   group,
		Name:    name,
		Status:  status,
	}
}

// MakeLoggedIn builds a login response. Pass an empty objid for failure.
func MakeLoggedIn(message, objid string) LoggedInMessage {
	return LoggedInMessage{Type: MessageTypeLoggedIn, Message: message, ObjID: objid}
}

// MakeSet builds an attribute delta for one object.
func MakeSet(objid string, attrs Attrs) SetMessage {
	return SetMessage{Type: MessageTypeSet, ObjID: objid, Attrs: attrs}
}

// MakeHear builds a chat message.
func MakeHear(from, to, message string) HearMessage {
	return HearMessage{Type: MessageTypeHear, From: from, To: to, Message: message}
}

// MakeLoggedOut builds the session-ending notice.
func MakeLoggedOut(message string) LoggedOutMessage {
	return LoggedOutMessage{Type: MessageTypeLoggedOut, Message: message}
}

package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AccountID       uint64 `json:"account_id"`
	CharacterID     uint64 `json:"character_id"`
	Name            string `json:"name,omitempty"`
	Locale          string `json:"locale,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	// OwnerMode is "account" when storage is shared by every character on the account.
	OwnerMode     string `json:"owner_mode"`
	PageSize      int    `json:"page_size"`
	Resumed       bool   `json:"resumed,omitempty"`
	CatalogDigest string `json:"catalog_digest,omitempty"`
	ItemCount     int    `json:"item_count,omitempty"`
}

// SELECT (client -> server): the player picked a menu option.
type SelectMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Action          string `json:"action"`
	Param           uint32 `json:"param,omitempty"`
}

type MenuOption struct {
	Label   string `json:"label"`
	Action  string `json:"action"`
	Param   uint32 `json:"param,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// MENU (server -> client) replaces whatever menu the client shows.
type MenuMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Options         []MenuOption `json:"options"`
}

// MESSAGE (server -> client): one line of chat-style feedback.
type MessageMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Text            string `json:"text"`
}

type CloseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewMenu(opts []MenuOption) MenuMsg {
	if opts == nil {
		opts = []MenuOption{}
	}
	return MenuMsg{Type: TypeMenu, ProtocolVersion: Version, Options: opts}
}

func NewMessage(text string) MessageMsg {
	return MessageMsg{Type: TypeMessage, ProtocolVersion: Version, Text: text}
}

func NewClose() CloseMsg {
	return CloseMsg{Type: TypeClose, ProtocolVersion: Version}
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}

package domain

// Session is the current authenticated identity and its bearer token.
type Session struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Valid requires both a token and a user id. Anything less is unauthenticated.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.ID != ""
}

// Filter narrows a directory fetch. Both fields are evaluated by the server.
type Filter struct {
	OnlineOnly bool
	Search     string
}

// Page selects a window of the conversation history, newest first.
type Page struct {
	Number int
	Limit  int
}

var DefaultPage = Page{Number: 1, Limit: 50}

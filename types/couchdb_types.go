package types

type OK struct {
	IsOK bool `json:"ok"`
}

type CouchDBError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// BaseDocument carries the CouchDB identity and revision fields
type BaseDocument struct {
	UnderscoreRev string `json:"_rev,omitempty"`
	Rev           string `json:"rev,omitempty"`
	ID            string `json:"id,omitempty"`
	UnderscoreID  string `json:"_id,omitempty"`
	OK            bool   `json:"ok,omitempty"`
}

// FindResponse is the envelope of a _find query
type FindResponse[T any] struct {
	Docs     []T    `json:"docs"`
	Bookmark string `json:"bookmark,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia action link, rendered as an
// RFC 8288 Link header with method and title extension parameters:
//
//	</api/v1/editor/fields/location_1/delete>; rel="delete"; method="POST"; title="Delete shape"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies whose available actions depend on
// resource state.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	return b.String()
}

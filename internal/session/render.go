package session

const (
	// AttrAuth marks an element visible only in one auth state.
	AttrAuth = "data-auth"
	// AttrUserName marks an element whose text is the signed-in user's name.
	AttrUserName = "data-user-name"

	StateAuthenticated   = "authenticated"
	StateUnauthenticated = "unauthenticated"

	// FallbackUserName is shown when the user has neither display name nor email.
	FallbackUserName = "User"
)

// Element is a node of a bound document
type Element interface {
	Attr(name string) (string, bool)
	SetVisible(visible bool)
	SetText(text string)
}

// Document is queried live on every render; elements are never cached.
type Document interface {
	QueryAll(attr string) []Element
}

// render applies st to doc. It is idempotent.
func render(doc Document, st state) {
	for _, el := range doc.QueryAll(AttrAuth) {
		want, _ := el.Attr(AttrAuth)
		switch {
		case want == StateAuthenticated && st.authenticated():
			el.SetVisible(true)
		case want == StateUnauthenticated && !st.authenticated():
			el.SetVisible(true)
		default:
			el.SetVisible(false)
		}
	}

	if !st.authenticated() {
		return
	}

	name := userLabel(st)
	for _, el := range doc.QueryAll(AttrUserName) {
		el.SetText(name)
	}
}

func userLabel(st state) string {
	if name := st.user.DisplayName(); name != "" {
		return name
	}
	if st.user.Email != "" {
		return st.user.Email
	}
	return FallbackUserName
}

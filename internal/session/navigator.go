package session

// DefaultLoginPath is where RequireAuth sends unauthenticated visitors.
const DefaultLoginPath = "login.html"

// Navigator moves the visitor to another page
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

package apipaths

// API surface paths. Used by routes and by tests.

const (
	Health        = "/api/health"
	SessionUser   = "/api/session/user"
	SignUp        = "/api/session/signup"
	SignIn        = "/api/session/signin"
	SignOut       = "/api/session/signout"
	ResetPassword = "/api/session/reset-password"
	Recover       = "/api/session/recover"
	Password      = "/api/session/password"
	SessionEvents = "/api/session/events"
	Profile       = "/api/profile"
	Save          = "/save"
	AuthMount     = "/auth"
	PagesMount    = "/pages"
)

func SignInWithProvider(provider string) string { return SignIn + "/" + provider }
func Page(name string) string                   { return PagesMount + "/" + name }

// Package pages holds the portal's gomponents pages.
package pages

import (
	cmp "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	g "maragu.dev/gomponents/html"

	"github.com/ffland/portal/internal/view/dto/auth"
)

// Login renders the login card.
func Login(data auth.LoginData) cmp.Node {
	return g.Main(
		g.Class("login-card"),
		g.H1(cmp.Text("Log in to FF Land")),
		messages("notice", data.Notices),
		messages("error", data.Errors),
		g.Form(
			g.ID("login-form"),
			g.Method("post"),
			g.Action("/portal/login"),
			g.Input(g.Type("hidden"), g.Name("_csrf"), g.Value(data.CSRF)),
			g.Label(g.For("email"), cmp.Text("Email")),
			g.Input(g.Type("email"), g.ID("email"), g.Name("email"), g.Value(data.Email),
				g.Required(), g.AutoComplete("email")),
			g.Label(g.For("password"), cmp.Text("Password")),
			g.Input(g.Type("password"), g.ID("password"), g.Name("password"),
				g.Required(), g.AutoComplete("current-password")),
			g.Label(
				g.Class("stay-logged-in"),
				g.Input(g.Type("checkbox"), g.Name("stay_logged_in"), g.Value("true")),
				cmp.Text("Stay logged in for this device"),
			),
			g.Button(g.Type("submit"), cmp.Text("Log in")),
			cmp.If(data.GoogleEnabled,
				// Full navigation: the handler redirects off-site to Google.
				g.Button(
					g.Type("submit"),
					g.Class("google"),
					cmp.Attr("formaction", "/portal/login/google"),
					cmp.Attr("formmethod", "post"),
					cmp.Attr("formnovalidate"),
					hx.Boost("false"),
					cmp.Text("Log in with Google"),
				),
			),
		),
		g.P(
			g.A(g.Href("/portal/signup"), cmp.Text("Don't have an account? Join FF-Land")),
		),
	)
}

// Signup is the landing page users are sent to when they must register first.
func Signup(data auth.SignupData) cmp.Node {
	return g.Main(
		g.Class("signup-card"),
		g.H1(cmp.Text("Join FF Land")),
		messages("error", data.Errors),
		g.P(cmp.Text("Create your FF Land account to start planning.")),
		g.P(g.A(g.Href("/portal/login"), cmp.Text("Already have an account? Log in"))),
	)
}

func messages(kind string, list []string) cmp.Node {
	if len(list) == 0 {
		return nil
	}
	return g.Ul(
		g.Class("flash flash-"+kind),
		g.Role("alert"),
		cmp.Map(list, func(m string) cmp.Node { return g.Li(cmp.Text(m)) }),
	)
}

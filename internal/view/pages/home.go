package pages

import (
	cmp "maragu.dev/gomponents"
	g "maragu.dev/gomponents/html"

	"github.com/ffland/portal/internal/domain"
)

func logoutForm(csrf string) cmp.Node {
	return g.Form(
		g.Method("post"),
		g.Action("/portal/logout"),
		g.Input(g.Type("hidden"), g.Name("_csrf"), g.Value(csrf)),
		g.Button(g.Type("submit"), cmp.Text("Log out")),
	)
}

// Home greets a user whose profile is complete.
func Home(user domain.SessionRecord, csrf string) cmp.Node {
	return g.Main(
		g.H1(cmp.Text("Welcome back")),
		g.P(cmp.Textf("Signed in as %s.", user.Email)),
		logoutForm(csrf),
	)
}

// Calculator is where users finish filling in their profile. firstMissing,
// when set, names the first field still empty.
func Calculator(user domain.SessionRecord, firstMissing, csrf string) cmp.Node {
	return g.Main(
		g.H1(cmp.Text("Finish your plan")),
		g.P(cmp.Textf("Signed in as %s.", user.Email)),
		cmp.If(firstMissing != "",
			g.P(g.Class("hint"), cmp.Textf("Next up: %s", firstMissing)),
		),
		logoutForm(csrf),
	)
}

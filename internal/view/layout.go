package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"maragu.dev/gomponents"
)

const htmxSrc = "https://unpkg.com/htmx.org@2.0.4"

// Layout wraps body in the portal's HTML document.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+` | FF Land</title>`+
			`<script src="`+htmxSrc+`"></script></head><body hx-boost="true">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Page renders a gomponents body inside Layout.
func Page(title string, body gomponents.Node) templ.Component {
	return Layout(title, nodeComponent{body})
}

// nodeComponent renders a gomponents node as a templ.Component.
type nodeComponent struct {
	node gomponents.Node
}

func (n nodeComponent) Render(_ context.Context, w io.Writer) error {
	return n.node.Render(w)
}

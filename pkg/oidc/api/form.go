package api

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

var loginFormTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<form method="post" action="/login">
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<input type="hidden" name="code" value="{{.Code}}">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<input type="hidden" name="state" value="{{.State}}">
<label>Email or phone <input type="text" name="identifier" value="{{.Identifier}}" autocomplete="username" required></label>
<label>Password <input type="password" name="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginFormData struct {
	Code        string
	RedirectURI string
	State       string
	Identifier  string
	Error       string
}

func renderLoginForm(w http.ResponseWriter, r *http.Request, status int, data loginFormData) {
	var buf bytes.Buffer
	if err := loginFormTemplate.Execute(&buf, data); err != nil {
		slog.Error("Failed to render login form", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal server error")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, status)
	render.HTML(w, r, buf.String())
}

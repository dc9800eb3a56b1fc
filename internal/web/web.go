// Package web はサーバー描画ページのテンプレートと静的ファイルを提供する。
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/localgov/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページ名
const (
	PageHome           = "home"
	PageAbout          = "about"
	PagePrivacy        = "privacy"
	PageTerms          = "terms"
	PageSignIn         = "signin"
	PageForgotPassword = "forgot_password"
	PageResetPassword  = "reset_password"
	PageDashboard      = "dashboard"
	PageSettings       = "settings"
	PageError          = "error"
)

var pageNames = []string{
	PageHome, PageAbout, PagePrivacy, PageTerms, PageSignIn,
	PageForgotPassword, PageResetPassword, PageDashboard, PageSettings, PageError,
}

// Page はレイアウトに渡す共通データ。Dataはページ固有のデータ。
type Page struct {
	Title        string
	Principal    *session.Principal
	CSRFToken    string
	Flash        string
	Error        string
	WatchSession bool
	Data         any
}

// Renderer はページテンプレートを保持する。起動時に1回だけパースする。
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006 15:04")
	},
}

// NewRenderer は埋め込みテンプレートをパースしてRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render はページを描画する。テンプレートの実行はバッファに対して行い、
// 失敗した場合は部分的なHTMLを返さずに500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	tmpl, ok := r.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticHandler は /static/ 配下の埋め込みファイルを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"inkwell/internal/comment"
	"inkwell/internal/config"
	"inkwell/internal/content"
	"inkwell/internal/feed"
	"inkwell/internal/token"
)

const (
	feedItemLimit = 20
	excerptLimit  = 140
)

// Server 负责注册 HTTP 路由并处理请求。
type Server struct {
	cfg       config.Config
	store     *content.Store
	comments  *comment.Store
	renderer  *content.Renderer
	signer    *token.Signer
	mux       *http.ServeMux
	templates *template.Template
	sessions  *sessionStore
}

type entryListItem struct {
	Slug        string
	Title       string
	Kind        content.Kind
	Format      content.Format
	Description string
	PublishedAt string
	UpdatedAt   string
	WasUpdated  bool
	Reads       int
}

type homeSection struct {
	Heading string
	Entries []entryListItem
}

type commentView struct {
	Author      string
	Body        template.HTML
	SubmittedAt string
}

type adminTemplateData struct {
	Title        string
	Action       string
	Content      string
	Kind         content.Kind
	Format       content.Format
	EntryTitle   string
	Lang         string
	Description  string
	PublishedAt  string
	UpdatedAt    string
	SelectedSlug string
}

type libraryTemplateData struct {
	Title         string
	Entries       []entryListItem
	SearchTerm    string
	TotalEntries  int
	FilteredCount int
	HasFilter     bool
}

// New 创建一个 Server 并加载模板。
func New(cfg config.Config, store *content.Store, comments *comment.Store, tplDir string) (*Server, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if comments == nil {
		return nil, errors.New("comment store is required")
	}

	tpls, err := template.ParseGlob(filepath.Join(tplDir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		comments:  comments,
		renderer:  content.NewRenderer(cfg.ImageBaseURL),
		signer:    token.NewSigner(cfg.TokenSecret),
		templates: tpls,
		mux:       http.NewServeMux(),
		sessions:  newSessionStore(),
	}
	s.registerRoutes()
	return s, nil
}

// ServeHTTP 实现 http.Handler。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.showHome)
	s.mux.HandleFunc("GET /healthz", s.health)
	s.mux.HandleFunc("GET /feed.xml", s.showFeed)
	s.mux.HandleFunc("GET /sitemap.xml", s.showSitemap)

	s.mux.HandleFunc("GET /login", s.showLogin)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.requireAuth(s.handleLogout))

	s.mux.HandleFunc("GET /admin/library", s.requireAuth(s.showLibrary))
	s.mux.HandleFunc("GET /admin", s.requireAuth(s.showEditor))
	s.mux.HandleFunc("POST /admin", s.requireAuth(s.createEntry))
	s.mux.HandleFunc("POST /admin/preview", s.requireAuth(s.previewEntry))

	s.mux.HandleFunc("POST /{slug}/comments", s.addComment)
	s.mux.HandleFunc("GET /unsubscribe", s.unsubscribe)
	s.mux.HandleFunc("POST /api/reads/{slug}", s.incrementReads)

	s.mux.HandleFunc("GET /{slug}/edit", s.requireAuth(s.showEdit))
	s.mux.HandleFunc("POST /{slug}/edit", s.requireAuth(s.updateEntry))
	s.mux.HandleFunc("POST /{slug}/delete", s.requireAuth(s.deleteEntry))

	s.mux.HandleFunc("GET /{slug}", s.showEntry)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.authenticated(r); !ok {
			nextURL := url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, "/login?next="+nextURL, http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Server) authenticated(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	if !s.sessions.Validate(cookie.Value) {
		return "", false
	}
	return cookie.Value, true
}

func (s *Server) setSession(w http.ResponseWriter) {
	token, expires := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
	})
}

func (s *Server) clearSession(w http.ResponseWriter, token string) {
	s.sessions.Remove(token)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticated(r); ok {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}

	next := r.URL.Query().Get("next")
	s.renderTemplate(w, "login.tmpl", map[string]any{
		"Title": "Login",
		"Next":  next,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderTemplate(w, "login.tmpl", map[string]any{
			"Title": "Login",
			"Error": "Invalid form data",
			"Next":  r.FormValue("next"),
		})
		return
	}

	password := r.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) != 1 {
		slog.Warn("failed login attempt", "remote", r.RemoteAddr)
		s.renderTemplate(w, "login.tmpl", map[string]any{
			"Title": "Login",
			"Error": "Incorrect password",
			"Next":  r.FormValue("next"),
		})
		return
	}

	s.setSession(w)
	next := r.FormValue("next")
	if next == "" {
		next = "/admin"
	} else if !strings.HasPrefix(next, "/") {
		next = "/admin"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := s.authenticated(r)
	if ok {
		s.clearSession(w, token)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) showHome(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		slog.Error("list entries", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to load entries")
		return
	}

	// 栏目顺序固定,栏目内保持 List 的时间倒序。
	order := []content.Kind{content.KindArticle, content.KindThought, content.KindAlbum, content.KindReading}
	grouped := make(map[content.Kind][]entryListItem, len(order))
	for _, entry := range entries {
		grouped[entry.Kind] = append(grouped[entry.Kind], s.listItem(entry))
	}
	sections := make([]homeSection, 0, len(order))
	for _, kind := range order {
		if len(grouped[kind]) == 0 {
			continue
		}
		sections = append(sections, homeSection{Heading: kindHeading(kind), Entries: grouped[kind]})
	}

	s.renderTemplate(w, "home.tmpl", map[string]any{
		"Title":       s.cfg.SiteTitle,
		"Description": s.cfg.SiteDescription,
		"Sections":    sections,
	})
}

func (s *Server) showEditor(w http.ResponseWriter, r *http.Request) {
	data := s.buildEditorData(nil)
	s.renderTemplate(w, "admin.tmpl", data)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	entry, err := s.store.Create(draftFromForm(r))
	if err != nil {
		slog.Error("create entry", "error", err)
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.renderSaved(w, "Entry Saved", entry)
}

func (s *Server) previewEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	format := content.Format(r.FormValue("format"))
	if format != content.FormatRichdoc && format != content.FormatMarkdown {
		s.renderError(w, http.StatusBadRequest, "Invalid format")
		return
	}

	// 预览不落盘,坏的结构化文档走占位输出。
	html, err := s.renderer.RenderHTML(content.Entry{
		Format: format,
		Raw:    r.FormValue("content"),
	})
	if err != nil {
		slog.Error("render preview", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Render Failed")
		return
	}

	s.renderTemplate(w, "preview.tmpl", map[string]any{
		"Title":       "Preview",
		"HTML":        html,
		"GeneratedAt": formatTime(time.Now()),
	})
}

func (s *Server) showEntry(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	entry, err := s.store.Get(slug)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Not Found")
		return
	}

	html, err := s.renderer.RenderHTML(entry)
	if err != nil {
		slog.Error("render entry", "slug", slug, "error", err)
		s.renderError(w, http.StatusInternalServerError, "Render Failed")
		return
	}

	comments, err := s.comments.ListForEntry(slug)
	if err != nil {
		slog.Error("list comments", "slug", slug, "error", err)
		comments = nil
	}
	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		body, err := s.renderer.RenderCommentHTML(c.Body)
		if err != nil {
			slog.Error("render comment", "comment", c.ID, "error", err)
			continue
		}
		views = append(views, commentView{
			Author:      c.Author,
			Body:        body,
			SubmittedAt: formatTime(c.CreatedAt),
		})
	}

	s.renderTemplate(w, "view.tmpl", map[string]any{
		"Title":       entryTitle(entry),
		"Slug":        entry.Slug,
		"Lang":        entry.Lang,
		"HTML":        html,
		"Reads":       entry.Reads,
		"PublishedAt": formatTime(entry.CreatedAt),
		"UpdatedAt":   formatTime(entry.UpdatedAt),
		"WasUpdated":  !entry.UpdatedAt.IsZero() && !entry.UpdatedAt.Equal(entry.CreatedAt),
		"Comments":    views,
	})
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if _, err := s.store.Get(slug); err != nil {
		s.renderError(w, http.StatusNotFound, "Not Found")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	// 蜜罐字段:表单里隐藏,被填上的是机器人,装作成功。
	if r.FormValue("website") != "" {
		http.Redirect(w, r, "/"+slug+"#comments", http.StatusFound)
		return
	}

	notify := r.FormValue("notify") == "on"
	c, err := s.comments.Add(slug, r.FormValue("author"), r.FormValue("email"), r.FormValue("body"), notify)
	if err != nil {
		if errors.Is(err, comment.ErrInvalidComment) {
			s.renderError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("add comment", "slug", slug, "error", err)
		s.renderError(w, http.StatusInternalServerError, "Comment Failed")
		return
	}

	if c.Notify {
		// 还没接邮件通道,先把退订链接记进日志备查。
		slog.Info("comment subscribed", "slug", slug, "comment", c.ID,
			"unsubscribe", s.unsubscribeURL(c))
	}
	http.Redirect(w, r, "/"+slug+"#comments", http.StatusFound)
}

func (s *Server) unsubscribeURL(c comment.Comment) string {
	tok := s.signer.Sign(c.EntrySlug + "|" + c.ID)
	return strings.TrimRight(s.cfg.SiteURL, "/") + "/unsubscribe?token=" + tok
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	payload, err := s.signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid unsubscribe link")
		return
	}
	slug, commentID, ok := strings.Cut(payload, "|")
	if !ok {
		s.renderError(w, http.StatusBadRequest, "Invalid unsubscribe link")
		return
	}

	if err := s.comments.Unsubscribe(slug, commentID); err != nil {
		if errors.Is(err, comment.ErrCommentNotFound) {
			s.renderError(w, http.StatusNotFound, "Not Found")
			return
		}
		slog.Error("unsubscribe", "slug", slug, "comment", commentID, "error", err)
		s.renderError(w, http.StatusInternalServerError, "Unsubscribe Failed")
		return
	}

	s.renderTemplate(w, "unsubscribed.tmpl", map[string]any{
		"Title": "Unsubscribed",
	})
}

func (s *Server) incrementReads(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	w.Header().Set("Content-Type", "application/json")

	reads, err := s.store.IncrementReads(slug)
	if err != nil {
		status, msg := http.StatusInternalServerError, "internal error"
		if errors.Is(err, content.ErrEntryNotFound) {
			status, msg = http.StatusNotFound, "not found"
		} else {
			slog.Error("increment reads", "slug", slug, "error", err)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]int{"reads": reads})
}

func (s *Server) showFeed(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		slog.Error("list entries", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to build feed")
		return
	}
	if len(entries) > feedItemLimit {
		entries = entries[:feedItemLimit]
	}

	items := make([]feed.Item, 0, len(entries))
	for _, entry := range entries {
		html, err := s.renderer.RenderFeedHTML(entry)
		if err != nil {
			slog.Error("render feed item", "slug", entry.Slug, "error", err)
			continue
		}
		items = append(items, feed.Item{
			Title:     entryTitle(entry),
			Path:      "/" + entry.Slug,
			HTML:      html,
			Summary:   s.renderer.Excerpt(entry, excerptLimit),
			Published: entry.CreatedAt,
			Updated:   entry.UpdatedAt,
		})
	}

	out, err := feed.RSS(s.site(), items)
	if err != nil {
		slog.Error("marshal feed", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to build feed")
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write(out)
}

func (s *Server) showSitemap(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		slog.Error("list entries", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to build sitemap")
		return
	}

	items := make([]feed.Item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, feed.Item{
			Path:      "/" + entry.Slug,
			Published: entry.CreatedAt,
			Updated:   entry.UpdatedAt,
		})
	}

	out, err := feed.Sitemap(s.site(), items)
	if err != nil {
		slog.Error("marshal sitemap", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to build sitemap")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(out)
}

func (s *Server) site() feed.Site {
	return feed.Site{
		Title:       s.cfg.SiteTitle,
		URL:         s.cfg.SiteURL,
		Description: s.cfg.SiteDescription,
		Lang:        s.cfg.SiteLang,
	}
}

func (s *Server) showEdit(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	entry, err := s.store.Get(slug)
	if err != nil {
		s.renderError(w, http.StatusNotFound, "Not Found")
		return
	}

	data := s.buildEditorData(&entry)
	s.renderTemplate(w, "admin.tmpl", data)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	entry, err := s.store.Update(slug, draftFromForm(r))
	if err != nil {
		slog.Error("update entry", "slug", slug, "error", err)
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.renderSaved(w, "Entry Updated", entry)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		s.renderError(w, http.StatusBadRequest, "Invalid slug")
		return
	}

	if err := s.store.Delete(slug); err != nil {
		if errors.Is(err, content.ErrEntryNotFound) {
			s.renderError(w, http.StatusNotFound, "Not Found")
			return
		}
		slog.Error("delete entry", "slug", slug, "error", err)
		s.renderError(w, http.StatusInternalServerError, "Delete Failed")
		return
	}
	if err := s.comments.DeleteForEntry(slug); err != nil {
		slog.Error("delete comments", "slug", slug, "error", err)
	}

	http.Redirect(w, r, "/admin/library", http.StatusFound)
}

func (s *Server) showLibrary(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	items, total, err := s.buildEntryList(search)
	if err != nil {
		slog.Error("list entries", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Failed to load entries")
		return
	}

	s.renderTemplate(w, "library.tmpl", libraryTemplateData{
		Title:         "Content Library",
		Entries:       items,
		SearchTerm:    search,
		TotalEntries:  total,
		FilteredCount: len(items),
		HasFilter:     search != "",
	})
}

func (s *Server) buildEditorData(entry *content.Entry) adminTemplateData {
	data := adminTemplateData{
		Title:  "Create New Entry",
		Action: "/admin",
		Kind:   content.KindArticle,
		Format: content.FormatMarkdown,
		Lang:   s.cfg.SiteLang,
	}

	if entry == nil {
		return data
	}

	data.Title = fmt.Sprintf("Edit %s", entry.Slug)
	data.Action = fmt.Sprintf("/%s/edit", entry.Slug)
	data.Content = entry.Raw
	data.Kind = entry.Kind
	data.Format = entry.Format
	data.EntryTitle = entry.Title
	data.Lang = entry.Lang
	data.Description = entry.Description
	data.PublishedAt = formatTime(entry.CreatedAt)
	data.UpdatedAt = formatTime(entry.UpdatedAt)
	data.SelectedSlug = entry.Slug
	return data
}

func (s *Server) buildEntryList(searchTerm string) ([]entryListItem, int, error) {
	entries, err := s.store.List()
	if err != nil {
		return nil, 0, err
	}

	total := len(entries)
	search := strings.ToLower(strings.TrimSpace(searchTerm))
	items := make([]entryListItem, 0, total)
	for _, entry := range entries {
		if search != "" {
			if !strings.Contains(strings.ToLower(entry.Slug), search) &&
				!strings.Contains(strings.ToLower(entry.Title), search) &&
				!strings.Contains(strings.ToLower(entry.Raw), search) &&
				!strings.Contains(strings.ToLower(entry.Description), search) {
				continue
			}
		}
		items = append(items, s.listItem(entry))
	}

	return items, total, nil
}

func (s *Server) listItem(entry content.Entry) entryListItem {
	description := strings.TrimSpace(entry.Description)
	if description == "" {
		description = s.renderer.Excerpt(entry, excerptLimit)
	}
	return entryListItem{
		Slug:        entry.Slug,
		Title:       entryTitle(entry),
		Kind:        entry.Kind,
		Format:      entry.Format,
		Description: description,
		PublishedAt: formatTime(entry.CreatedAt),
		UpdatedAt:   formatTime(entry.UpdatedAt),
		WasUpdated:  !entry.UpdatedAt.IsZero() && !entry.UpdatedAt.Equal(entry.CreatedAt),
		Reads:       entry.Reads,
	}
}

func (s *Server) renderSaved(w http.ResponseWriter, title string, entry content.Entry) {
	s.renderTemplate(w, "saved.tmpl", map[string]any{
		"Title":       title,
		"ViewURL":     fmt.Sprintf("/%s", entry.Slug),
		"EditURL":     fmt.Sprintf("/%s/edit", entry.Slug),
		"PublishedAt": formatTime(entry.CreatedAt),
		"UpdatedAt":   formatTime(entry.UpdatedAt),
		"WasUpdated":  !entry.UpdatedAt.IsZero() && !entry.UpdatedAt.Equal(entry.CreatedAt),
	})
}

func draftFromForm(r *http.Request) content.Draft {
	return content.Draft{
		Slug:        r.FormValue("slug"),
		Kind:        content.Kind(r.FormValue("kind")),
		Format:      content.Format(r.FormValue("format")),
		Title:       r.FormValue("title"),
		Lang:        r.FormValue("lang"),
		Raw:         r.FormValue("content"),
		Description: r.FormValue("description"),
	}
}

func entryTitle(entry content.Entry) string {
	if entry.Title != "" {
		return entry.Title
	}
	return entry.Slug
}

func kindHeading(kind content.Kind) string {
	switch kind {
	case content.KindArticle:
		return "Articles"
	case content.KindAlbum:
		return "Albums"
	case content.KindThought:
		return "Thoughts"
	case content.KindReading:
		return "Readings"
	default:
		return "Entries"
	}
}

func (s *Server) renderTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render template", "name", name, "error", err)
		http.Error(w, "Template Error", http.StatusInternalServerError)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// Package notiontest provides an in-memory workspace API server for tests.
package notiontest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Token is the credential the fake server accepts.
const Token = "secret-test-token"

// CreatedPage is a page written through POST /pages.
type CreatedPage struct {
	ID         string
	DatabaseID string
	// Properties holds the request's property values as sent.
	Properties map[string]json.RawMessage
}

type object struct {
	id     string
	kind   string
	title  string
	parent string
	// properties is the database schema or the page property values.
	properties json.RawMessage
	hideSchema bool
}

type failure struct {
	status     int
	retryAfter string
	remaining  int
}

// Server is a fake workspace.
type Server struct {
	*httptest.Server

	// PageSize caps list responses; defaults to 100.
	PageSize int
	// BlankReadBack makes GET /pages return created pages without a title.
	BlankReadBack bool

	mu        sync.Mutex
	readTitle string
	objects   map[string]*object
	order     []string
	children  map[string][]string
	created   []CreatedPage
	calls     map[string]int
	failures  map[string]*failure
}

// NewServer starts a fake workspace. Close it when done.
func NewServer() *Server {
	s := &Server{
		PageSize: 100,
		objects:  map[string]*object{},
		children: map[string][]string{},
		calls:    map[string]int{},
		failures: map[string]*failure{},
	}

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/users/me", s.instrument("users.me", s.handleMe))
		r.Get("/blocks/{id}/children", s.instrument("blocks.children.list", s.handleChildren))
		r.Get("/databases/{id}", s.instrument("databases.retrieve", s.handleRetrieveDatabase))
		r.Post("/databases/{id}/query", s.instrument("databases.query", s.handleQuery))
		r.Post("/pages", s.instrument("pages.create", s.handleCreatePage))
		r.Get("/pages/{id}", s.instrument("pages.retrieve", s.handleRetrievePage))
		r.Post("/search", s.instrument("search", s.handleSearch))
	})
	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/v1"
}

// AddPage adds a page. An empty parentID places it at the workspace root.
func (s *Server) AddPage(id, title, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := fmt.Sprintf(`{"title":{"id":"title","type":"title","title":[{"type":"text","plain_text":%q}]}}`, title)
	s.add(&object{id: id, kind: "page", title: title, parent: parentID, properties: json.RawMessage(props)})
}

// AddDatabase adds a database embedded in parentID (or at the root when
// empty). properties is the schema's JSON object, in enumeration order.
func (s *Server) AddDatabase(id, title, parentID, properties string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(&object{id: id, kind: "database", title: title, parent: parentID, properties: json.RawMessage(properties)})
}

// HideSchema makes the database endpoint return an empty property set, as
// happens when the integration lacks read access to the schema.
func (s *Server) HideSchema(databaseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[databaseID].hideSchema = true
}

// AddRow adds a page inside a database. properties maps property name to
// a full page property object.
func (s *Server) AddRow(databaseID, pageID, properties string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(&object{id: pageID, kind: "page", parent: databaseID, properties: json.RawMessage(properties)})
}

// Fail makes the next times calls of operation fail with status.
func (s *Server) Fail(operation string, status, times int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation] = &failure{status: status, retryAfter: retryAfter, remaining: times}
}

// Calls returns how many requests reached operation, failures included.
func (s *Server) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

// Created returns the pages written so far, in order.
func (s *Server) Created() []CreatedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CreatedPage, len(s.created))
	copy(out, s.created)
	return out
}

func (s *Server) add(o *object) {
	if _, exists := s.objects[o.id]; !exists {
		s.order = append(s.order, o.id)
	}
	s.objects[o.id] = o
	if o.parent != "" {
		if parent, ok := s.objects[o.parent]; !ok || parent.kind == "page" {
			s.children[o.parent] = append(s.children[o.parent], o.id)
		}
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header is required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(operation string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[operation]++
		f := s.failures[operation]
		inject := f != nil && f.remaining > 0
		if inject {
			f.remaining--
		}
		s.mu.Unlock()

		if inject {
			if f.retryAfter != "" {
				w.Header().Set("Retry-After", f.retryAfter)
			}
			writeError(w, f.status, "injected_failure", "injected failure for "+operation)
			return
		}
		h(w, r)
	}
}

func (*Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"object": "user",
		"id":     "bot-user",
		"name":   "loresync",
		"type":   "bot",
		"bot":    map[string]any{"workspace_name": "Test Workspace"},
	})
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.objects[id]; !ok {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find block with ID: "+id)
		return
	}

	var blocks []map[string]any
	for _, childID := range s.children[id] {
		child := s.objects[childID]
		switch child.kind {
		case "database":
			blocks = append(blocks, map[string]any{
				"object": "block", "id": child.id, "type": "child_database",
				"child_database": map[string]any{"title": child.title},
			})
		case "page":
			blocks = append(blocks, map[string]any{
				"object": "block", "id": child.id, "type": "child_page", "has_children": len(s.children[child.id]) > 0,
				"child_page": map[string]any{"title": child.title},
			})
		}
	}
	writeList(w, blocks, r.URL.Query().Get("start_cursor"), s.PageSize)
}

func (s *Server) handleRetrieveDatabase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.objects[chi.URLParam(r, "id")]
	if !ok || db.kind != "database" {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}
	writeJSON(w, s.render(db))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartCursor string `json:"start_cursor"`
		PageSize    int    `json:"page_size"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	dbID := chi.URLParam(r, "id")
	if db, ok := s.objects[dbID]; !ok || db.kind != "database" {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}
	var rows []map[string]any
	for _, id := range s.order {
		if o := s.objects[id]; o.kind == "page" && o.parent == dbID {
			rows = append(rows, s.render(o))
		}
	}
	size := s.PageSize
	if req.PageSize > 0 && req.PageSize < size {
		size = req.PageSize
	}
	writeList(w, rows, req.StartCursor, size)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	doc := gjson.ParseBytes(body)
	dbID := doc.Get("parent.database_id").String()

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.objects[dbID]
	if !ok || db.kind != "database" {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find database.")
		return
	}

	schema := gjson.ParseBytes(db.properties)
	sent := map[string]json.RawMessage{}
	stored := map[string]any{}
	var invalid string
	doc.Get("properties").ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		sent[name] = json.RawMessage(value.Raw)
		typ, prop := s.schemaProperty(schema, name)
		if typ == "" {
			invalid = name + " is not a property that exists."
			return false
		}
		if !value.Get(typ).Exists() {
			invalid = name + " is expected to be " + typ + "."
			return false
		}
		if msg := checkOptions(typ, prop, value.Get(typ)); msg != "" {
			invalid = name + ": " + msg
			return false
		}
		stored[name] = readBack(typ, value.Get(typ))
		return true
	})
	if invalid != "" {
		writeError(w, http.StatusBadRequest, "validation_error", invalid)
		return
	}
	if len(sent) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "body.properties should be defined.")
		return
	}

	id := uuid.NewString()
	props, _ := json.Marshal(stored)
	page := &object{id: id, kind: "page", parent: dbID, properties: props}
	s.add(page)
	s.created = append(s.created, CreatedPage{ID: id, DatabaseID: dbID, Properties: sent})
	writeJSON(w, s.render(page))
}

func (s *Server) handleRetrievePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.objects[chi.URLParam(r, "id")]
	if !ok || page.kind != "page" {
		writeError(w, http.StatusNotFound, "object_not_found", "Could not find page.")
		return
	}
	out := s.render(page)
	if s.BlankReadBack {
		out["properties"] = map[string]any{}
	}
	if s.readTitle != "" {
		out["properties"] = retitle(page.properties, s.readTitle)
	}
	writeJSON(w, out)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		Filter *struct {
			Value string `json:"value"`
		} `json:"filter"`
		StartCursor string `json:"start_cursor"`
		PageSize    int    `json:"page_size"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	query := strings.ToLower(req.Query)
	var results []map[string]any
	for _, id := range s.order {
		o := s.objects[id]
		if req.Filter != nil && req.Filter.Value != o.kind {
			continue
		}
		// Rows inside databases carry no title here and never match a query.
		if o.kind == "page" && o.title == "" {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(o.title), query) {
			continue
		}
		results = append(results, s.render(o))
	}
	size := s.PageSize
	if req.PageSize > 0 && req.PageSize < size {
		size = req.PageSize
	}
	writeList(w, results, req.StartCursor, size)
}

func (s *Server) render(o *object) map[string]any {
	parent := map[string]any{"type": "workspace", "workspace": true}
	if o.parent != "" {
		if p, ok := s.objects[o.parent]; ok && p.kind == "database" {
			parent = map[string]any{"type": "database_id", "database_id": o.parent}
		} else {
			parent = map[string]any{"type": "page_id", "page_id": o.parent}
		}
	}

	out := map[string]any{"object": o.kind, "id": o.id, "parent": parent}
	props := o.properties
	if o.kind == "database" {
		out["title"] = []map[string]any{{"type": "text", "plain_text": o.title}}
		if o.hideSchema {
			props = json.RawMessage(`{}`)
		}
	}
	out["properties"] = props
	return out
}

// schemaProperty finds a property by name or, failing that, by id.
func (*Server) schemaProperty(schema gjson.Result, key string) (string, gjson.Result) {
	prop := schema.Get(gjson.Escape(key))
	if !prop.Exists() {
		schema.ForEach(func(_, p gjson.Result) bool {
			if p.Get("id").String() == key {
				prop = p
				return false
			}
			return true
		})
	}
	return prop.Get("type").String(), prop
}

func checkOptions(typ string, prop, value gjson.Result) string {
	var names []string
	switch typ {
	case "select":
		if value.Type == gjson.Null {
			return ""
		}
		names = []string{value.Get("name").String()}
	case "multi_select":
		for _, v := range value.Array() {
			names = append(names, v.Get("name").String())
		}
	default:
		return ""
	}
	allowed := map[string]bool{}
	for _, o := range prop.Get(typ + ".options").Array() {
		allowed[o.Get("name").String()] = true
	}
	for _, n := range names {
		if !allowed[n] {
			return "option " + strconv.Quote(n) + " does not exist"
		}
	}
	return ""
}

// readBack renders a written value the way the API returns it.
// SetTitleReadBack makes GET /pages report title instead of the stored one.
// An empty title restores the stored one.
func (s *Server) SetTitleReadBack(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTitle = title
}

func retitle(raw json.RawMessage, title string) map[string]any {
	props := map[string]any{}
	_ = json.Unmarshal(raw, &props)
	for name, prop := range props {
		if m, ok := prop.(map[string]any); ok && m["type"] == "title" {
			props[name] = map[string]any{
				"type":  "title",
				"title": []map[string]any{{"type": "text", "plain_text": title}},
			}
		}
	}
	return props
}

func readBack(typ string, value gjson.Result) map[string]any {
	var decoded any
	_ = json.Unmarshal([]byte(value.Raw), &decoded)
	if typ == "title" || typ == "rich_text" {
		if segs, ok := decoded.([]any); ok {
			for _, seg := range segs {
				if m, ok := seg.(map[string]any); ok {
					if text, ok := m["text"].(map[string]any); ok {
						m["plain_text"] = text["content"]
					}
				}
			}
		}
	}
	return map[string]any{"type": typ, typ: decoded}
}

func writeList[T any](w http.ResponseWriter, items []T, cursor string, size int) {
	start, _ := strconv.Atoi(cursor)
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if size <= 0 || end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	if page == nil {
		page = []T{}
	}
	out := map[string]any{"object": "list", "results": page, "has_more": end < len(items), "next_cursor": nil}
	if end < len(items) {
		out["next_cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object":  "error",
		"status":  status,
		"code":    code,
		"message": message,
	})
}

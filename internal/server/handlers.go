package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strconv"

	"article-companion-backend/internal/dialogue"
	"article-companion-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// TODO limit reading from body

// store is the persistence surface the handlers need. *storage.Store
// satisfies it; tests substitute a stub.
type store interface {
	Articles(ctx context.Context) ([]storage.Article, error)
	ArticleByID(ctx context.Context, id int64) (storage.Article, error)
	CreateArticle(ctx context.Context, name string, userID int64, related []storage.Related) (int64, error)
	DeleteArticle(ctx context.Context, id int64) error
	UserByID(ctx context.Context, id int64) (storage.UserProfile, error)
	UpdateUser(ctx context.Context, id int64, upd storage.UserUpdate) error
	CreateUser(ctx context.Context, username, name string) (int64, error)
	Authenticate(ctx context.Context, username, token string) (storage.User, error)
}

// assistant is the dialogue proxy surface. *dialogue.Client satisfies
// it.
type assistant interface {
	StartSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, handle, text string) (string, error)
}

type parsers struct {
	createArticlePool fastjson.ParserPool
	createUserPool    fastjson.ParserPool
	updateUserPool    fastjson.ParserPool
	loginPool         fastjson.ParserPool
	sendMessagePool   fastjson.ParserPool
}

type handler struct {
	logger    *zap.SugaredLogger
	store     store
	assistant assistant
	parsers   parsers
}

type relatedResponse struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type articleResponse struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	UserID  int64             `json:"userId"`
	Related []relatedResponse `json:"related"`
}

type articleRefResponse struct {
	ArticleID int64  `json:"articleId"`
	Name      string `json:"name"`
}

type userProfileResponse struct {
	UserID     int64                `json:"userId"`
	Username   string               `json:"username"`
	UsernameID string               `json:"usernameId"`
	Articles   []articleRefResponse `json:"articles"`
}

func newArticleResponse(a storage.Article) articleResponse {
	related := make([]relatedResponse, 0, len(a.Related))
	for _, r := range a.Related {
		related = append(related, relatedResponse{
			Type: r.Type,
			URL:  r.URL,
			// description has always echoed the article name on the
			// wire; there is no per-item description column. Existing
			// clients read it, so it stays.
			Description: a.Name,
			Content:     r.Content,
		})
	}

	return articleResponse{
		ID:      strconv.FormatInt(a.ID, 10),
		Name:    a.Name,
		UserID:  a.UserID,
		Related: related,
	}
}

func newUserProfileResponse(p storage.UserProfile) userProfileResponse {
	articles := make([]articleRefResponse, 0, len(p.Articles))
	for _, a := range p.Articles {
		articles = append(articles, articleRefResponse{
			ArticleID: a.ID,
			Name:      a.Name,
		})
	}

	return userProfileResponse{
		UserID:     p.ID,
		Username:   p.Username,
		UsernameID: p.Name,
		Articles:   articles,
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

func (h *handler) respond(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, status, payload)
}

func (h *handler) message(w http.ResponseWriter, status int, text string) {
	h.writeJSON(w, status, []byte(`{"message":"`+text+`"}`))
}

// idParam parses the {id} URL parameter. Malformed ids are a
// validation failure reported before the store is ever touched.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "URL parameter \"id\" must be a valid 64-bit integer id grater than zero", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// listArticles handles HTTP requests on "GET /article"
func (h *handler) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.store.Articles(r.Context())
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		response = append(response, newArticleResponse(a))
	}

	h.respond(w, http.StatusOK, response)
}

// getArticle handles HTTP requests on "GET /article/{id}"
func (h *handler) getArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	article, err := h.store.ArticleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrArticleNotExist) {
			http.Error(w, "Article with provided id does not exist", http.StatusNotFound)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, newArticleResponse(article))
}

// createArticle handles HTTP requests on "POST /article"
func (h *handler) createArticle(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.createArticlePool.Get()
	defer h.parsers.createArticlePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	// retrieving article name
	if !v.Exists("name") {
		http.Error(w, "Missing Field \"name\"", http.StatusBadRequest)
		return
	}

	nameBytes, err := v.Get("name").StringBytes()
	if err != nil {
		http.Error(w, "Field \"name\" must be a string", http.StatusBadRequest)
		return
	}

	name := string(nameBytes)
	if len(name) == 0 {
		http.Error(w, "Field \"name\" must have non-zero length", http.StatusBadRequest)
		return
	}

	// retrieving owner id
	if !v.Exists("userId") {
		http.Error(w, "Missing Field \"userId\"", http.StatusBadRequest)
		return
	}

	userID, err := v.Get("userId").Int64()
	if err != nil {
		http.Error(w, "Field \"userId\" must be a 64-bit integer value", http.StatusBadRequest)
		return
	}

	if userID < 1 {
		http.Error(w, "Field \"userId\" must be a valid user id grater than zero", http.StatusBadRequest)
		return
	}

	// retrieving related items; an absent field means no items
	var related []storage.Related
	if v.Exists("related") {
		items, err := v.Get("related").Array()
		if err != nil {
			http.Error(w, "Field \"related\" must be an array", http.StatusBadRequest)
			return
		}

		related = make([]storage.Related, 0, len(items))
		for _, item := range items {
			if item.Type() != fastjson.TypeObject {
				http.Error(w, "Each item in \"related\" array field must be an object", http.StatusBadRequest)
				return
			}

			entry := storage.Related{}
			fields := []struct {
				key string
				dst *string
			}{
				{"type", &entry.Type},
				{"url", &entry.URL},
				{"content", &entry.Content},
			}
			for _, f := range fields {
				if !item.Exists(f.key) {
					continue
				}
				b, err := item.Get(f.key).StringBytes()
				if err != nil {
					http.Error(w, "Field \""+f.key+"\" of a related item must be a string", http.StatusBadRequest)
					return
				}
				*f.dst = string(b)
			}

			related = append(related, entry)
		}
	}

	// creating article with its related items in one unit of work
	id, err := h.store.CreateArticle(r.Context(), name, userID, related)
	if err != nil {
		if errors.Is(err, storage.ErrArticleBadUser) {
			http.Error(w, "Field \"userId\" does not reference an existing user", http.StatusBadRequest)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusCreated, newArticleResponse(storage.Article{
		ID:      id,
		Name:    name,
		UserID:  userID,
		Related: related,
	}))
}

// deleteArticle handles HTTP requests on "DELETE /article/{id}"
func (h *handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	err := h.store.DeleteArticle(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrArticleNotExist) {
			http.Error(w, "Article with provided id does not exist", http.StatusNotFound)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.message(w, http.StatusOK, "article deleted")
}

// getUser handles HTTP requests on "GET /user/{id}"
func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	profile, err := h.store.UserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User with provided id does not exist", http.StatusNotFound)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, newUserProfileResponse(profile))
}

// updateUser handles HTTP requests on "PUT /user/{id}"
func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.updateUserPool.Get()
	defer h.parsers.updateUserPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	// a field participates in the update iff it is present in the
	// request; empty strings are real values
	upd := storage.UserUpdate{}
	fields := []struct {
		key string
		dst **string
	}{
		{"username", &upd.Username},
		{"name", &upd.Name},
		{"token", &upd.Token},
	}
	for _, f := range fields {
		if !v.Exists(f.key) {
			continue
		}
		b, err := v.Get(f.key).StringBytes()
		if err != nil {
			http.Error(w, "Field \""+f.key+"\" must be a string", http.StatusBadRequest)
			return
		}
		s := string(b)
		*f.dst = &s
	}

	if upd.Empty() {
		http.Error(w, "At least one of \"username\", \"name\", \"token\" fields must be provided", http.StatusBadRequest)
		return
	}

	err := h.store.UpdateUser(r.Context(), id, upd)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserNotExist):
			http.Error(w, "User with provided id does not exist", http.StatusNotFound)
		case errors.Is(err, storage.ErrUsernameTaken):
			http.Error(w, "Username already taken", http.StatusConflict)
		case errors.Is(err, storage.ErrEmptyUpdate):
			http.Error(w, "At least one of \"username\", \"name\", \"token\" fields must be provided", http.StatusBadRequest)
		default:
			h.logger.Error(err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.message(w, http.StatusOK, "user updated")
}

// createUser handles HTTP requests on "POST /user"
func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.createUserPool.Get()
	defer h.parsers.createUserPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	if !v.Exists("username") {
		http.Error(w, "Missing Field \"username\"", http.StatusBadRequest)
		return
	}

	usernameBytes, err := v.Get("username").StringBytes()
	if err != nil || len(usernameBytes) == 0 {
		http.Error(w, "Field \"username\" must be a string and have non-zero length", http.StatusBadRequest)
		return
	}

	var name string
	if v.Exists("name") {
		nameBytes, err := v.Get("name").StringBytes()
		if err != nil {
			http.Error(w, "Field \"name\" must be a string", http.StatusBadRequest)
			return
		}
		name = string(nameBytes)
	}

	id, err := h.store.CreateUser(r.Context(), string(usernameBytes), name)
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			http.Error(w, "Username already taken", http.StatusConflict)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, []byte(`{"id":`+strconv.FormatInt(id, 10)+`}`))
}

// login handles HTTP requests on "POST /login"
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.loginPool.Get()
	defer h.parsers.loginPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	if !v.Exists("username") {
		http.Error(w, "Missing Field \"username\"", http.StatusBadRequest)
		return
	}
	usernameBytes, err := v.Get("username").StringBytes()
	if err != nil {
		http.Error(w, "Field \"username\" must be a string", http.StatusBadRequest)
		return
	}

	if !v.Exists("token") {
		http.Error(w, "Missing Field \"token\"", http.StatusBadRequest)
		return
	}
	tokenBytes, err := v.Get("token").StringBytes()
	if err != nil {
		http.Error(w, "Field \"token\" must be a string", http.StatusBadRequest)
		return
	}

	user, err := h.store.Authenticate(r.Context(), string(usernameBytes), string(tokenBytes))
	if err != nil {
		if errors.Is(err, storage.ErrAuthFailed) {
			// a wrong token and an unknown username answer identically
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, struct {
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
	}{
		UserID:   user.ID,
		Username: user.Username,
	})
}

// startSession handles HTTP requests on "POST /session"
func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	handle, err := h.assistant.StartSession(r.Context())
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.respond(w, http.StatusCreated, struct {
		SessionID string `json:"sessionId"`
	}{
		SessionID: handle,
	})
}

// sendMessage handles HTTP requests on "POST /message"
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.sendMessagePool.Get()
	defer h.parsers.sendMessagePool.Put(parser)
	v, _ := parser.ParseBytes(body)

	if !v.Exists("sessionId") {
		http.Error(w, "Missing Field \"sessionId\"", http.StatusBadRequest)
		return
	}
	sessionBytes, err := v.Get("sessionId").StringBytes()
	if err != nil || len(sessionBytes) == 0 {
		http.Error(w, "Field \"sessionId\" must be a string and have non-zero length", http.StatusBadRequest)
		return
	}

	if !v.Exists("message") {
		http.Error(w, "Missing Field \"message\"", http.StatusBadRequest)
		return
	}
	messageBytes, err := v.Get("message").StringBytes()
	if err != nil || len(messageBytes) == 0 {
		http.Error(w, "Field \"message\" must be a string and have non-zero length", http.StatusBadRequest)
		return
	}

	reply, err := h.assistant.SendMessage(r.Context(), string(sessionBytes), string(messageBytes))
	if err != nil {
		if errors.Is(err, dialogue.ErrSessionNotExist) {
			http.Error(w, "Session with provided id does not exist", http.StatusNotFound)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.respond(w, http.StatusOK, struct {
		Reply string `json:"reply"`
	}{
		Reply: reply,
	})
}

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/service"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/ct-protocol-manual/internal/view"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Cookie session keys
const (
	sessionUserKey   = "user_id"
	sessionCursorKey = "cursor"
	userIDKey        = "user_id"
)

// User-facing messages
const (
	MessageInvalidCredentials = "メールアドレスまたはパスワードが正しくありません"
	MessageTooManyAttempts    = "ログイン試行回数が多すぎます。しばらくしてから再度お試しください"
	MessageLoginRequired      = "ログインしてください"
	MessageAdminRequired      = "管理者権限が必要です"
	MessageProtectedUser      = "このユーザーは削除できません"
	MessageDuplicateEmail     = "このメールアドレスは既に登録されています"
	MessageInvalidRequest     = "リクエストが正しくありません"
)

var savedMessages = map[navigation.EntityKind][2]string{
	navigation.KindDisease:  {"疾患データを作成しました", "疾患データを更新しました"},
	navigation.KindNotice:   {"お知らせを作成しました", "お知らせを更新しました"},
	navigation.KindProtocol: {"CTプロトコルを作成しました", "CTプロトコルを更新しました"},
}

const messageUserCreated = "ユーザーを作成しました"

// requestState is the browser session loaded for one request
type requestState struct {
	sess *navigation.Session
	user *models.UserView
}

// AppHandler serves the page-transition endpoints. Every response is a view.Document.
type AppHandler struct {
	services   *service.Services
	controller *navigation.Controller
	renderer   *view.Renderer
	limiter    *fixedWindowLimiter
	cfg        *config.Config
	log        zerolog.Logger
}

// NewAppHandler creates a new AppHandler
func NewAppHandler(services *service.Services, controller *navigation.Controller, renderer *view.Renderer, limiter *fixedWindowLimiter, cfg *config.Config, log zerolog.Logger) *AppHandler {
	return &AppHandler{
		services:   services,
		controller: controller,
		renderer:   renderer,
		limiter:    limiter,
		cfg:        cfg,
		log:        log.With().Str("handler", "app").Logger(),
	}
}

// loadState rebuilds the browser's session from its cookie. A signed-in cookie
// without a cursor is bootstrapped from the session store; a cookie-less browser
// may silently resume the newest stored session when that is enabled.
func (h *AppHandler) loadState(c *gin.Context) (*requestState, error) {
	ctx := c.Request.Context()
	store := sessions.Default(c)

	var cursor *navigation.Cursor
	if raw, ok := store.Get(sessionCursorKey).(string); ok && raw != "" {
		cur, err := navigation.Restore([]byte(raw))
		if err != nil {
			h.log.Warn().Err(err).Msg("Discarding unreadable cursor cookie")
		} else {
			cursor = cur
		}
	}
	userID, _ := store.Get(sessionUserKey).(int64)

	if userID == 0 && cursor == nil && h.cfg.Session.RestoreLatest {
		if restored, ok := h.controller.RestoreLatest(ctx); ok {
			userID, cursor = restored.UserID, restored.Cursor
			h.log.Info().Int64("user_id", userID).Msg("Resumed latest session")
		}
	}

	if userID != 0 {
		user, err := h.services.Auth.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			isAdmin := h.services.Auth.IsAdmin(user)
			v := h.services.Auth.View(user)
			sess := &navigation.Session{UserID: userID, IsAdmin: isAdmin, Cursor: cursor}
			if cursor == nil {
				sess = h.controller.Bootstrap(ctx, userID, isAdmin)
			}
			c.Set(userIDKey, userID)
			return &requestState{sess: sess, user: &v}, nil
		}
		// the account was deleted while signed in
		cursor = nil
	}

	if cursor == nil {
		cursor = navigation.NewCursor()
	}
	if !cursor.Page.Public() {
		cursor.Reset()
	}
	return &requestState{sess: &navigation.Session{Cursor: cursor}}, nil
}

// saveState writes the user id and the full cursor back to the cookie
func (h *AppHandler) saveState(c *gin.Context, st *requestState) {
	store := sessions.Default(c)
	if st.sess.Authenticated() {
		store.Set(sessionUserKey, st.sess.UserID)
	} else {
		store.Delete(sessionUserKey)
	}

	encoded, err := st.sess.Cursor.Encode()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode cursor")
	} else {
		store.Set(sessionCursorKey, string(encoded))
	}

	if err := store.Save(); err != nil {
		h.log.Warn().Err(err).Int64("user_id", st.sess.UserID).Msg("Failed to save cookie session")
	}
}

// withState loads the session and runs fn, answering 503 when the user lookup fails
func (h *AppHandler) withState(fn func(c *gin.Context, st *requestState)) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := h.loadState(c)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load session user")
			c.JSON(http.StatusServiceUnavailable, view.Document{
				Page:  navigation.PageWelcome,
				Error: view.MessageUnavailable,
				Back:  &view.BackLink{Page: navigation.PageHome, URL: "?page=home", Label: "戻る"},
			})
			return
		}
		fn(c, st)
	}
}

// render writes the document for the cursor's current page
func (h *AppHandler) render(c *gin.Context, st *requestState, res navigation.Result) {
	doc, status := h.renderer.Render(c.Request.Context(), st.sess, st.user, res)
	h.saveState(c, st)
	c.JSON(status, doc)
}

// fail re-renders the current page with an error and the given status. The cursor is not moved.
func (h *AppHandler) fail(c *gin.Context, st *requestState, status int, message string, fieldErrors []validation.ValidationError) {
	doc, renderStatus := h.renderer.Render(c.Request.Context(), st.sess, st.user, navigation.Result{Page: st.sess.Cursor.Page})
	if renderStatus == http.StatusServiceUnavailable {
		status = renderStatus
	}
	if message != "" {
		doc.Error = message
	}
	doc.Errors = fieldErrors
	if status == http.StatusServiceUnavailable && doc.Back == nil {
		doc.Back = &view.BackLink{Page: navigation.PageHome, URL: "?page=home", Label: "戻る"}
	}
	h.saveState(c, st)
	c.JSON(status, doc)
}

// failWrite maps a service error onto the failure response
func (h *AppHandler) failWrite(c *gin.Context, st *requestState, err error) {
	var vf *service.ValidationFailure
	switch {
	case errors.As(err, &vf):
		h.fail(c, st, http.StatusUnprocessableEntity, "", vf.Errors)
	case errors.Is(err, service.ErrNotFound):
		doc, status := h.renderer.Render(c.Request.Context(), st.sess, st.user, navigation.Result{NotFound: true})
		h.saveState(c, st)
		c.JSON(status, doc)
	case errors.Is(err, service.ErrDuplicateEmail):
		h.fail(c, st, http.StatusConflict, MessageDuplicateEmail, nil)
	case errors.Is(err, service.ErrProtectedUser):
		h.fail(c, st, http.StatusForbidden, MessageProtectedUser, nil)
	default:
		h.log.Error().Err(err).Int64("user_id", st.sess.UserID).Msg("Write failed")
		h.fail(c, st, http.StatusServiceUnavailable, view.MessageUnavailable, nil)
	}
}

// Show handles GET /app. Query state from a reload or browser back/forward is
// applied to the cursor before rendering.
func (h *AppHandler) Show(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		ctx := c.Request.Context()
		res := h.controller.Reconcile(ctx, st.sess, navigation.ParseURLState(c.Request.URL.Query()))
		h.controller.Touch(ctx, st.sess)
		h.render(c, st, res)
	})(c)
}

// Start handles POST /app/start (welcome to login)
func (h *AppHandler) Start(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		res := h.controller.Navigate(c.Request.Context(), st.sess, navigation.PageLogin, navigation.Options{})
		h.render(c, st, res)
	})(c)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /app/login
func (h *AppHandler) Login(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		ctx := c.Request.Context()

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}

		key := c.ClientIP()
		if ok, retryAfter := h.limiter.Allow(key); !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			h.fail(c, st, http.StatusTooManyRequests, MessageTooManyAttempts, nil)
			return
		}

		user, err := h.services.Auth.Authenticate(ctx, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				h.fail(c, st, http.StatusUnauthorized, MessageInvalidCredentials, nil)
				return
			}
			h.log.Error().Err(err).Msg("Login failed")
			h.fail(c, st, http.StatusServiceUnavailable, view.MessageUnavailable, nil)
			return
		}
		h.limiter.Reset(key)

		v := h.services.Auth.View(user)
		st.sess = h.controller.Login(ctx, user.ID, v.IsAdmin)
		st.user = &v
		c.Set(userIDKey, user.ID)
		h.render(c, st, navigation.Result{Page: st.sess.Cursor.Page})
	})(c)
}

// Logout handles POST /app/logout
func (h *AppHandler) Logout(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		h.controller.Logout(c.Request.Context(), st.sess)
		st.user = nil
		h.render(c, st, navigation.Result{Page: st.sess.Cursor.Page})
	})(c)
}

type refRequest struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

func (r *refRequest) ref() (*navigation.Ref, bool) {
	if r == nil {
		return nil, true
	}
	kind, ok := navigation.ParseKind(r.Kind)
	if !ok || r.ID <= 0 {
		return nil, false
	}
	return &navigation.Ref{Kind: kind, ID: r.ID}, true
}

type navigateRequest struct {
	Page   string      `json:"page"`
	Select *refRequest `json:"select"`
	Edit   *refRequest `json:"edit"`
}

// Navigate handles POST /app/navigate
func (h *AppHandler) Navigate(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		var req navigateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}
		page, ok := navigation.ParsePage(req.Page)
		if !ok {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}
		sel, okSel := req.Select.ref()
		edit, okEdit := req.Edit.ref()
		if !okSel || !okEdit {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}

		res := h.controller.Navigate(c.Request.Context(), st.sess, page, navigation.Options{Select: sel, Edit: edit})
		h.render(c, st, res)
	})(c)
}

// Back handles POST /app/back
func (h *AppHandler) Back(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		res := h.controller.GoBack(c.Request.Context(), st.sess)
		h.render(c, st, res)
	})(c)
}

type searchRequest struct {
	Term string `json:"term"`
}

// Search handles POST /app/search
func (h *AppHandler) Search(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}
		term := strings.TrimSpace(req.Term)
		if errs := h.services.Validator.ValidateSearchTerm(term); len(errs) > 0 {
			h.fail(c, st, http.StatusUnprocessableEntity, "", errs)
			return
		}
		if st.sess.Authenticated() {
			st.sess.Cursor.Search.Term = term
		}
		res := h.controller.Navigate(c.Request.Context(), st.sess, navigation.PageSearch, navigation.Options{})
		h.render(c, st, res)
	})(c)
}

// ToggleShowAll handles POST /app/search/all
func (h *AppHandler) ToggleShowAll(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		if st.sess.Authenticated() {
			st.sess.Cursor.Search.ShowAll = !st.sess.Cursor.Search.ShowAll
		}
		res := h.controller.Navigate(c.Request.Context(), st.sess, navigation.PageSearch, navigation.Options{})
		h.render(c, st, res)
	})(c)
}

// ClearSearch handles POST /app/search/clear
func (h *AppHandler) ClearSearch(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		st.sess.Cursor.Search = navigation.SearchState{}
		res := h.controller.Navigate(c.Request.Context(), st.sess, navigation.PageSearch, navigation.Options{})
		h.render(c, st, res)
	})(c)
}

type filterRequest struct {
	Category string `json:"category"`
}

// FilterProtocols handles POST /app/protocols/filter. An empty category shows all.
func (h *AppHandler) FilterProtocols(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		var req filterRequest
		if err := c.ShouldBindJSON(&req); err != nil || (req.Category != "" && !models.ValidCategories[req.Category]) {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}
		if st.sess.Authenticated() {
			st.sess.Cursor.ProtocolCategory = req.Category
		}
		res := h.controller.Navigate(c.Request.Context(), st.sess, navigation.PageProtocols, navigation.Options{})
		h.render(c, st, res)
	})(c)
}

// saveContent runs a create or update for a signed-in user and, on success,
// moves to the entity's detail page with a confirmation message
func (h *AppHandler) saveContent(c *gin.Context, kind navigation.EntityKind, detail navigation.Page, update bool, save func(ctx context.Context) (int64, error)) {
	h.withState(func(c *gin.Context, st *requestState) {
		if !st.sess.Authenticated() {
			h.fail(c, st, http.StatusUnauthorized, MessageLoginRequired, nil)
			return
		}

		ctx := c.Request.Context()
		id, err := save(ctx)
		if err != nil {
			h.failWrite(c, st, err)
			return
		}

		if update {
			st.sess.Cursor.ClearEditTarget(kind)
		}
		res := h.controller.Navigate(ctx, st.sess, detail, navigation.Options{
			Select: &navigation.Ref{Kind: kind, ID: id},
		})
		msgs := savedMessages[kind]
		if update {
			res.Message = msgs[1]
		} else {
			res.Message = msgs[0]
		}
		h.render(c, st, res)
	})(c)
}

// badRequest answers 400 for a malformed body or path id
func (h *AppHandler) badRequest(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
	})(c)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// CreateDisease handles POST /app/diseases
func (h *AppHandler) CreateDisease(c *gin.Context) {
	var d models.Disease
	if err := c.ShouldBindJSON(&d); err != nil {
		h.badRequest(c)
		return
	}
	d.ID = 0
	h.saveContent(c, navigation.KindDisease, navigation.PageDetail, false, func(ctx context.Context) (int64, error) {
		err := h.services.Disease.Create(ctx, &d)
		return d.ID, err
	})
}

// UpdateDisease handles PUT /app/diseases/:id
func (h *AppHandler) UpdateDisease(c *gin.Context) {
	id, ok := pathID(c)
	var d models.Disease
	if !ok || c.ShouldBindJSON(&d) != nil {
		h.badRequest(c)
		return
	}
	d.ID = id
	h.saveContent(c, navigation.KindDisease, navigation.PageDetail, true, func(ctx context.Context) (int64, error) {
		return id, h.services.Disease.Update(ctx, &d)
	})
}

// CreateNotice handles POST /app/notices
func (h *AppHandler) CreateNotice(c *gin.Context) {
	var n models.Notice
	if err := c.ShouldBindJSON(&n); err != nil {
		h.badRequest(c)
		return
	}
	n.ID = 0
	h.saveContent(c, navigation.KindNotice, navigation.PageNoticeDetail, false, func(ctx context.Context) (int64, error) {
		err := h.services.Notice.Create(ctx, &n)
		return n.ID, err
	})
}

// UpdateNotice handles PUT /app/notices/:id
func (h *AppHandler) UpdateNotice(c *gin.Context) {
	id, ok := pathID(c)
	var n models.Notice
	if !ok || c.ShouldBindJSON(&n) != nil {
		h.badRequest(c)
		return
	}
	n.ID = id
	h.saveContent(c, navigation.KindNotice, navigation.PageNoticeDetail, true, func(ctx context.Context) (int64, error) {
		return id, h.services.Notice.Update(ctx, &n)
	})
}

// CreateProtocol handles POST /app/protocols
func (h *AppHandler) CreateProtocol(c *gin.Context) {
	var p models.Protocol
	if err := c.ShouldBindJSON(&p); err != nil {
		h.badRequest(c)
		return
	}
	p.ID = 0
	h.saveContent(c, navigation.KindProtocol, navigation.PageProtocolDetail, false, func(ctx context.Context) (int64, error) {
		err := h.services.Protocol.Create(ctx, &p)
		return p.ID, err
	})
}

// UpdateProtocol handles PUT /app/protocols/:id
func (h *AppHandler) UpdateProtocol(c *gin.Context) {
	id, ok := pathID(c)
	var p models.Protocol
	if !ok || c.ShouldBindJSON(&p) != nil {
		h.badRequest(c)
		return
	}
	p.ID = id
	h.saveContent(c, navigation.KindProtocol, navigation.PageProtocolDetail, true, func(ctx context.Context) (int64, error) {
		return id, h.services.Protocol.Update(ctx, &p)
	})
}

// Delete handles POST /app/delete. The first press arms the token and returns
// a warning; the second press deletes and moves to the list page.
func (h *AppHandler) Delete(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		var req refRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}
		kind, ok := navigation.ParseKind(req.Kind)
		if !ok {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}

		res, err := h.controller.Delete(c.Request.Context(), st.sess, navigation.DeleteToken{Kind: kind, ID: req.ID})
		switch {
		case err == nil:
			h.render(c, st, res)
		case errors.Is(err, navigation.ErrUnauthenticated):
			h.fail(c, st, http.StatusUnauthorized, MessageLoginRequired, nil)
		case errors.Is(err, navigation.ErrNotAllowed):
			h.fail(c, st, http.StatusForbidden, MessageAdminRequired, nil)
		default:
			h.failWrite(c, st, err)
		}
	})(c)
}

// CreateUser handles POST /app/admin/users
func (h *AppHandler) CreateUser(c *gin.Context) {
	h.withState(func(c *gin.Context, st *requestState) {
		if !st.sess.Authenticated() {
			h.fail(c, st, http.StatusUnauthorized, MessageLoginRequired, nil)
			return
		}
		if !st.sess.IsAdmin {
			h.fail(c, st, http.StatusForbidden, MessageAdminRequired, nil)
			return
		}

		var in models.NewUserInput
		if err := c.ShouldBindJSON(&in); err != nil {
			h.fail(c, st, http.StatusBadRequest, MessageInvalidRequest, nil)
			return
		}

		ctx := c.Request.Context()
		if _, err := h.services.Admin.CreateUser(ctx, &in); err != nil {
			h.failWrite(c, st, err)
			return
		}

		res := h.controller.Navigate(ctx, st.sess, navigation.PageAdmin, navigation.Options{})
		res.Message = messageUserCreated
		h.render(c, st, res)
	})(c)
}

// RequireAdmin aborts unless the browser belongs to a signed-in admin
func (h *AppHandler) RequireAdmin(c *gin.Context) {
	st, err := h.loadState(c)
	switch {
	case err != nil:
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": view.MessageUnavailable})
	case !st.sess.Authenticated():
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MessageLoginRequired})
	case !st.sess.IsAdmin:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": MessageAdminRequired})
	default:
		c.Next()
	}
}

package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnauthenticated is returned for actions that need a signed-in user
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotAllowed is returned when the signed-in user may not perform the action
	ErrNotAllowed = errors.New("not allowed")
)

// User-facing messages
const (
	WarningConfirmDelete = "削除ボタンをもう一度押すと削除されます"
)

var deletedMessages = map[EntityKind]string{
	KindDisease:  "疾患データを削除しました",
	KindNotice:   "お知らせを削除しました",
	KindProtocol: "CTプロトコルを削除しました",
	KindUser:     "ユーザーを削除しました",
}

// Session is one browser's state for the duration of a request
type Session struct {
	UserID  int64
	IsAdmin bool
	Cursor  *Cursor
}

// Authenticated reports whether a user is signed in
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// Ref points at one entity
type Ref struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

// Options modify a single navigation
type Options struct {
	Select      *Ref
	Edit        *Ref
	SkipHistory bool
}

// Result tells the view what to render after a transition
type Result struct {
	Page     Page
	Warning  string
	Message  string
	NotFound bool
}

// SessionStore persists cursors per user. Save and Delete are best-effort.
type SessionStore interface {
	Save(ctx context.Context, userID int64, cursor *Cursor)
	LoadForUser(ctx context.Context, userID int64, window time.Duration) (*Cursor, bool)
	LoadLatestWithin(ctx context.Context, window time.Duration) (int64, *Cursor, bool)
	Delete(ctx context.Context, userID int64)
}

// Deleter removes content on behalf of the two-step delete.
// Both methods report whether the entity exists; a missing entity is not an error.
type Deleter interface {
	CheckDelete(ctx context.Context, actorID int64, token DeleteToken) (bool, error)
	Delete(ctx context.Context, actorID int64, token DeleteToken) (bool, error)
}

// Controller is the only place that moves a cursor between pages and the only
// caller of the session store.
type Controller struct {
	store         SessionStore
	deleter       Deleter
	restoreWindow time.Duration
	log           zerolog.Logger
}

// NewController creates a navigation controller
func NewController(store SessionStore, deleter Deleter, restoreWindow time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		store:         store,
		deleter:       deleter,
		restoreWindow: restoreWindow,
		log:           log.With().Str("component", "navigation").Logger(),
	}
}

// Navigate moves the session's cursor to target. It never fails: missing or stale
// selections are left for the view to report.
func (c *Controller) Navigate(ctx context.Context, sess *Session, target Page, opts Options) Result {
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
	}
	cur := sess.Cursor
	target = resolveTarget(sess, target)

	if opts.Select != nil {
		cur.Select(opts.Select.Kind, opts.Select.ID)
	}
	if opts.Edit != nil {
		cur.SetEditTarget(opts.Edit.Kind, opts.Edit.ID)
	}

	leaving := cur.Page
	if leaving != target && !opts.SkipHistory {
		cur.PushHistory(leaving)
	}

	if cur.Armed != nil && (leaving != target || !shows(cur, target, *cur.Armed)) {
		cur.DisarmAll()
	}
	for _, kind := range pageSpecs[target].clears {
		cur.ClearSelection(kind)
		cur.ClearEditTarget(kind)
		if kind == KindDisease {
			cur.Search.ResultIDs = nil
		}
	}

	cur.SetPage(target)

	c.persist(ctx, sess)

	c.log.Debug().
		Int64("user_id", sess.UserID).
		Str("from", string(leaving)).
		Str("to", string(target)).
		Int("history", len(cur.History)).
		Msg("Navigated")

	return Result{Page: target}
}

// GoBack returns to the previous page, or home when there is none.
// The page being left is not pushed, so repeated back presses walk the history down.
func (c *Controller) GoBack(ctx context.Context, sess *Session) Result {
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
	}
	for {
		prev, ok := sess.Cursor.PopHistory()
		if !ok {
			break
		}
		if prev != sess.Cursor.Page {
			return c.Navigate(ctx, sess, prev, Options{SkipHistory: true})
		}
	}
	return c.Navigate(ctx, sess, PageHome, Options{SkipHistory: true})
}

// Delete runs the two-step delete. The first press for a token arms it and returns
// a warning. The second press deletes, clears pointers to the entity and moves to
// the kind's list page. A token for an entity the current page does not show is
// treated as not found. When the deleter fails the cursor is left as it was.
func (c *Controller) Delete(ctx context.Context, sess *Session, token DeleteToken) (Result, error) {
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
	}
	cur := sess.Cursor

	if !sess.Authenticated() {
		return Result{Page: cur.Page}, ErrUnauthenticated
	}
	if !entityKinds[token.Kind] || token.ID <= 0 {
		return Result{Page: cur.Page, NotFound: true}, nil
	}
	if token.Kind == KindUser && !sess.IsAdmin {
		return Result{Page: cur.Page}, ErrNotAllowed
	}
	if !shows(cur, cur.Page, token) {
		cur.DisarmAll()
		return Result{Page: cur.Page, NotFound: true}, nil
	}

	if !cur.IsArmed(token) {
		exists, err := c.deleter.CheckDelete(ctx, sess.UserID, token)
		if err != nil {
			return Result{Page: cur.Page}, err
		}
		if !exists {
			cur.DisarmAll()
			return Result{Page: cur.Page, NotFound: true}, nil
		}
		cur.ArmDelete(token)
		c.log.Debug().
			Int64("user_id", sess.UserID).
			Str("kind", string(token.Kind)).
			Int64("id", token.ID).
			Msg("Delete armed")
		return Result{Page: cur.Page, Warning: WarningConfirmDelete}, nil
	}

	if _, err := c.deleter.Delete(ctx, sess.UserID, token); err != nil {
		return Result{Page: cur.Page}, err
	}

	cur.Disarm(token)
	if id, ok := cur.Selection(token.Kind); ok && id == token.ID {
		cur.ClearSelection(token.Kind)
	}
	if id, ok := cur.EditTarget(token.Kind); ok && id == token.ID {
		cur.ClearEditTarget(token.Kind)
	}

	c.log.Info().
		Int64("user_id", sess.UserID).
		Str("kind", string(token.Kind)).
		Int64("id", token.ID).
		Msg("Entity deleted")

	res := c.Navigate(ctx, sess, ListPage(token.Kind), Options{})
	res.Message = deletedMessages[token.Kind]
	return res, nil
}

// Login starts a fresh cursor on home for the user
func (c *Controller) Login(ctx context.Context, userID int64, isAdmin bool) *Session {
	sess := &Session{UserID: userID, IsAdmin: isAdmin, Cursor: NewCursor()}
	sess.Cursor.SetPage(PageHome)
	c.persist(ctx, sess)
	return sess
}

// Logout resets the cursor to the anonymous state and forgets the stored record
func (c *Controller) Logout(ctx context.Context, sess *Session) {
	if sess.Authenticated() && c.store != nil {
		c.store.Delete(ctx, sess.UserID)
	}
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
	}
	sess.Cursor.Reset()
	sess.UserID = 0
	sess.IsAdmin = false
}

// Bootstrap rebuilds the session of a signed-in user whose browser lost its cursor,
// from the stored snapshot when it is fresh enough, otherwise on home.
func (c *Controller) Bootstrap(ctx context.Context, userID int64, isAdmin bool) *Session {
	sess := &Session{UserID: userID, IsAdmin: isAdmin}
	if c.store != nil {
		if cur, ok := c.store.LoadForUser(ctx, userID, c.restoreWindow); ok {
			sess.Cursor = cur
		}
	}
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
		sess.Cursor.SetPage(PageHome)
	}
	if target := resolveTarget(sess, sess.Cursor.Page); target != sess.Cursor.Page {
		sess.Cursor.SetPage(target)
	}
	return sess
}

// RestoreLatest returns the newest stored session within the restore window.
// The caller decides IsAdmin for the returned user.
func (c *Controller) RestoreLatest(ctx context.Context) (*Session, bool) {
	if c.store == nil {
		return nil, false
	}
	userID, cur, ok := c.store.LoadLatestWithin(ctx, c.restoreWindow)
	if !ok {
		return nil, false
	}
	sess := &Session{UserID: userID, Cursor: cur}
	if !sess.Cursor.Page.Valid() || sess.Cursor.Page.Public() {
		sess.Cursor.SetPage(PageHome)
	}
	return sess, true
}

// Touch persists the cursor as it is about to be rendered
func (c *Controller) Touch(ctx context.Context, sess *Session) {
	c.persist(ctx, sess)
}

// Reconcile applies address-bar state (reload, browser back/forward) to the cursor.
// Nothing happens when the URL already matches.
func (c *Controller) Reconcile(ctx context.Context, sess *Session, st URLState) Result {
	if sess.Cursor == nil {
		sess.Cursor = NewCursor()
	}
	cur := sess.Cursor
	if st.Page == "" {
		return Result{Page: cur.Page}
	}

	if st.Page == PageSearch && st.HasTerm {
		cur.Search.Term = st.Term
	}
	if st.Page == PageProtocols {
		cur.ProtocolCategory = st.Category
	}

	opts := Options{}
	changed := st.Page != cur.Page
	kind := st.Page.Kind()
	if id, ok := st.IDs[kind]; ok {
		switch {
		case st.Page.NeedsSelection():
			opts.Select = &Ref{Kind: kind, ID: id}
			if current, ok := cur.Selection(kind); !ok || current != id {
				changed = true
			}
		case st.Page.NeedsEditTarget():
			opts.Edit = &Ref{Kind: kind, ID: id}
			if current, ok := cur.EditTarget(kind); !ok || current != id {
				changed = true
			}
		}
	}

	if !changed {
		return Result{Page: cur.Page}
	}
	return c.Navigate(ctx, sess, st.Page, opts)
}

func (c *Controller) persist(ctx context.Context, sess *Session) {
	if c.store == nil || !sess.Authenticated() {
		return
	}
	c.store.Save(ctx, sess.UserID, sess.Cursor)
}

// shows reports whether page p, with the cursor's pointers, displays the entity
// named by token. Users are only deleted from the admin console.
func shows(cur *Cursor, p Page, token DeleteToken) bool {
	if token.Kind == KindUser {
		return p == PageAdmin
	}
	if p.Kind() != token.Kind {
		return false
	}
	var (
		id int64
		ok bool
	)
	switch {
	case p.NeedsSelection():
		id, ok = cur.Selection(token.Kind)
	case p.NeedsEditTarget():
		id, ok = cur.EditTarget(token.Kind)
	}
	return ok && id == token.ID
}

// resolveTarget applies access rules: anonymous visitors stay on public pages,
// signed-in users skip them, and only admins reach admin pages.
func resolveTarget(sess *Session, target Page) Page {
	if !target.Valid() {
		target = PageHome
	}
	if !sess.Authenticated() {
		if target.Public() {
			return target
		}
		return PageWelcome
	}
	if target.Public() {
		return PageHome
	}
	if target.AdminOnly() && !sess.IsAdmin {
		return PageHome
	}
	return target
}

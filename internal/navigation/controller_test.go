package navigation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	saved   map[int64][]byte
	saves   int
	deleted []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[int64][]byte)}
}

func (s *fakeStore) Save(ctx context.Context, userID int64, c *navigation.Cursor) {
	data, _ := c.Snapshot()
	s.saved[userID] = data
	s.saves++
}

func (s *fakeStore) LoadForUser(ctx context.Context, userID int64, window time.Duration) (*navigation.Cursor, bool) {
	data, ok := s.saved[userID]
	if !ok {
		return nil, false
	}
	c, err := navigation.Restore(data)
	return c, err == nil
}

func (s *fakeStore) LoadLatestWithin(ctx context.Context, window time.Duration) (int64, *navigation.Cursor, bool) {
	for id := range s.saved {
		c, ok := s.LoadForUser(ctx, id, window)
		return id, c, ok
	}
	return 0, nil, false
}

func (s *fakeStore) Delete(ctx context.Context, userID int64) {
	delete(s.saved, userID)
	s.deleted = append(s.deleted, userID)
}

type fakeDeleter struct {
	existing  map[navigation.DeleteToken]bool
	deleted   []navigation.DeleteToken
	deleteErr error
	checkErr  error
}

func newFakeDeleter(tokens ...navigation.DeleteToken) *fakeDeleter {
	d := &fakeDeleter{existing: make(map[navigation.DeleteToken]bool)}
	for _, t := range tokens {
		d.existing[t] = true
	}
	return d
}

func (d *fakeDeleter) CheckDelete(ctx context.Context, actorID int64, token navigation.DeleteToken) (bool, error) {
	if d.checkErr != nil {
		return false, d.checkErr
	}
	return d.existing[token], nil
}

func (d *fakeDeleter) Delete(ctx context.Context, actorID int64, token navigation.DeleteToken) (bool, error) {
	if d.deleteErr != nil {
		return false, d.deleteErr
	}
	existed := d.existing[token]
	delete(d.existing, token)
	d.deleted = append(d.deleted, token)
	return existed, nil
}

func newTestController(store *fakeStore, deleter *fakeDeleter) *navigation.Controller {
	return navigation.NewController(store, deleter, 24*time.Hour, zerolog.Nop())
}

func signedIn(ctrl *navigation.Controller, admin bool) *navigation.Session {
	return ctrl.Login(context.Background(), 1, admin)
}

func TestNavigate_NoOpDoesNotGrowHistory(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageSearch, navigation.Options{})
	before := len(sess.Cursor.History)
	ctrl.Navigate(ctx, sess, navigation.PageSearch, navigation.Options{})
	ctrl.Navigate(ctx, sess, navigation.PageSearch, navigation.Options{})

	if len(sess.Cursor.History) != before {
		t.Errorf("Expected history length %d, got %d (%v)", before, len(sess.Cursor.History), sess.Cursor.History)
	}
}

func TestNavigate_HistoryBoundUnderNavigation(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, true)
	ctx := context.Background()

	cycle := []navigation.Page{
		navigation.PageSearch, navigation.PageNotices, navigation.PageProtocols,
		navigation.PageAdmin, navigation.PageCreateDisease, navigation.PageCreateNotice,
		navigation.PageCreateProtocol, navigation.PageHome,
	}
	for i := 0; i < 40; i++ {
		ctrl.Navigate(ctx, sess, cycle[i%len(cycle)], navigation.Options{})
		if len(sess.Cursor.History) > navigation.MaxHistory {
			t.Fatalf("step %d: history too long: %v", i, sess.Cursor.History)
		}
	}
	if len(sess.Cursor.History) != navigation.MaxHistory {
		t.Errorf("Expected full history of %d, got %d", navigation.MaxHistory, len(sess.Cursor.History))
	}
}

func TestNavigate_MissingSelectionStillTransitions(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, false)

	res := ctrl.Navigate(context.Background(), sess, navigation.PageDetail, navigation.Options{})
	if res.Page != navigation.PageDetail {
		t.Errorf("Expected detail, got %s", res.Page)
	}
	if _, ok := sess.Cursor.Selection(navigation.KindDisease); ok {
		t.Error("Expected no disease selected")
	}
}

func TestNavigate_ClearingTable(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		target        navigation.Page
		wantSelection bool
	}{
		{"detail to search clears", navigation.PageSearch, false},
		{"detail to home keeps", navigation.PageHome, true},
		{"detail to notices keeps disease", navigation.PageNotices, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newTestController(newFakeStore(), newFakeDeleter())
			sess := signedIn(ctrl, false)
			sess.Cursor.Search.Term = "pneumonia"
			sess.Cursor.Search.ResultIDs = []int64{7}

			ctrl.Navigate(ctx, sess, navigation.PageDetail, navigation.Options{
				Select: &navigation.Ref{Kind: navigation.KindDisease, ID: 7},
			})
			sess.Cursor.SetEditTarget(navigation.KindDisease, 7)

			ctrl.Navigate(ctx, sess, tt.target, navigation.Options{})

			_, selected := sess.Cursor.Selection(navigation.KindDisease)
			_, editing := sess.Cursor.EditTarget(navigation.KindDisease)
			if selected != tt.wantSelection || editing != tt.wantSelection {
				t.Errorf("Expected selection/edit present=%v, got %v/%v", tt.wantSelection, selected, editing)
			}
			if sess.Cursor.Search.Term != "pneumonia" {
				t.Errorf("Search term should survive navigation, got %q", sess.Cursor.Search.Term)
			}
			if tt.target == navigation.PageSearch && sess.Cursor.Search.ResultIDs != nil {
				t.Error("Expected cached search results to be cleared on entering search")
			}
		})
	}
}

func TestNavigate_NoticeAndProtocolClearing(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	sess.Cursor.Select(navigation.KindNotice, 2)
	sess.Cursor.Select(navigation.KindProtocol, 3)
	sess.Cursor.SetEditTarget(navigation.KindProtocol, 3)

	ctrl.Navigate(ctx, sess, navigation.PageNotices, navigation.Options{})
	if _, ok := sess.Cursor.Selection(navigation.KindNotice); ok {
		t.Error("Entering notices should clear the notice selection")
	}
	if _, ok := sess.Cursor.Selection(navigation.KindProtocol); !ok {
		t.Error("Entering notices should not clear the protocol selection")
	}

	ctrl.Navigate(ctx, sess, navigation.PageProtocols, navigation.Options{})
	if _, ok := sess.Cursor.Selection(navigation.KindProtocol); ok {
		t.Error("Entering protocols should clear the protocol selection")
	}
	if _, ok := sess.Cursor.EditTarget(navigation.KindProtocol); ok {
		t.Error("Entering protocols should clear the protocol edit target")
	}
}

func TestNavigate_AccessRules(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	ctx := context.Background()

	anon := &navigation.Session{Cursor: navigation.NewCursor()}
	if res := ctrl.Navigate(ctx, anon, navigation.PageSearch, navigation.Options{}); res.Page != navigation.PageWelcome {
		t.Errorf("Anonymous visitor should be sent to welcome, got %s", res.Page)
	}
	if res := ctrl.Navigate(ctx, anon, navigation.PageLogin, navigation.Options{}); res.Page != navigation.PageLogin {
		t.Errorf("Anonymous visitor should reach login, got %s", res.Page)
	}

	user := signedIn(ctrl, false)
	if res := ctrl.Navigate(ctx, user, navigation.PageAdmin, navigation.Options{}); res.Page != navigation.PageHome {
		t.Errorf("Non-admin should be sent home from admin, got %s", res.Page)
	}
	if res := ctrl.Navigate(ctx, user, navigation.PageLogin, navigation.Options{}); res.Page != navigation.PageHome {
		t.Errorf("Signed-in user should be sent home from login, got %s", res.Page)
	}

	admin := signedIn(ctrl, true)
	if res := ctrl.Navigate(ctx, admin, navigation.PageAdmin, navigation.Options{}); res.Page != navigation.PageAdmin {
		t.Errorf("Admin should reach admin, got %s", res.Page)
	}
}

func TestNavigate_PersistsOnlyWhenSignedIn(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, newFakeDeleter())
	ctx := context.Background()

	anon := &navigation.Session{Cursor: navigation.NewCursor()}
	ctrl.Navigate(ctx, anon, navigation.PageLogin, navigation.Options{})
	if store.saves != 0 {
		t.Errorf("Anonymous navigation should not be persisted, got %d saves", store.saves)
	}

	sess := signedIn(ctrl, false)
	ctrl.Navigate(ctx, sess, navigation.PageNotices, navigation.Options{})

	restored, ok := store.LoadForUser(ctx, 1, time.Hour)
	if !ok || restored.Page != navigation.PageNotices {
		t.Errorf("Expected stored page notices, got %+v", restored)
	}
}

func TestGoBack(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageSearch, navigation.Options{})
	ctrl.Navigate(ctx, sess, navigation.PageDetail, navigation.Options{
		Select: &navigation.Ref{Kind: navigation.KindDisease, ID: 7},
	})

	res := ctrl.GoBack(ctx, sess)
	if res.Page != navigation.PageSearch {
		t.Fatalf("Expected back to search, got %s", res.Page)
	}
	if _, ok := sess.Cursor.Selection(navigation.KindDisease); ok {
		t.Error("Back to search should clear the disease selection")
	}

	// Only home is left in history: falls back to home
	res = ctrl.GoBack(ctx, sess)
	if res.Page != navigation.PageHome {
		t.Errorf("Expected fallback to home, got %s", res.Page)
	}
}

func TestDelete_TwoStep(t *testing.T) {
	token := navigation.DeleteToken{Kind: navigation.KindProtocol, ID: 3}
	deleter := newFakeDeleter(token, navigation.DeleteToken{Kind: navigation.KindProtocol, ID: 4})
	ctrl := newTestController(newFakeStore(), deleter)
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageProtocols, navigation.Options{})
	ctrl.Navigate(ctx, sess, navigation.PageProtocolDetail, navigation.Options{
		Select: &navigation.Ref{Kind: navigation.KindProtocol, ID: 3},
	})

	// First press arms only
	res, err := ctrl.Delete(ctx, sess, token)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.Warning != navigation.WarningConfirmDelete {
		t.Errorf("Expected confirmation warning, got %q", res.Warning)
	}
	if len(deleter.deleted) != 0 {
		t.Fatal("First press must not delete")
	}
	if !sess.Cursor.IsArmed(token) {
		t.Fatal("Expected token to be armed")
	}

	// Second press deletes and lands on the list page
	res, err = ctrl.Delete(ctx, sess, token)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(deleter.deleted) != 1 || deleter.deleted[0] != token {
		t.Errorf("Expected exactly one delete of %v, got %v", token, deleter.deleted)
	}
	if res.Page != navigation.PageProtocols {
		t.Errorf("Expected protocols list, got %s", res.Page)
	}
	if res.Message == "" {
		t.Error("Expected a success message")
	}
	if sess.Cursor.Armed != nil {
		t.Error("Expected token to be disarmed")
	}
	if _, ok := sess.Cursor.Selection(navigation.KindProtocol); ok {
		t.Error("Expected dangling selection to be cleared")
	}
}

func TestDelete_ArmingDoesNotCarryOver(t *testing.T) {
	a := navigation.DeleteToken{Kind: navigation.KindDisease, ID: 1}
	b := navigation.DeleteToken{Kind: navigation.KindDisease, ID: 2}
	deleter := newFakeDeleter(a, b)
	ctrl := newTestController(newFakeStore(), deleter)
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageDetail, navigation.Options{Select: &navigation.Ref{Kind: navigation.KindDisease, ID: 1}})
	if _, err := ctrl.Delete(ctx, sess, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// A token for an entity the page does not show is refused and disarms
	res, err := ctrl.Delete(ctx, sess, b)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !res.NotFound || res.Warning != "" || len(deleter.deleted) != 0 {
		t.Errorf("Expected b to be refused, got %+v deleted=%v", res, deleter.deleted)
	}
	if sess.Cursor.Armed != nil {
		t.Error("a must no longer be armed")
	}

	// On b's own page the press arms b instead of deleting
	ctrl.Navigate(ctx, sess, navigation.PageDetail, navigation.Options{Select: &navigation.Ref{Kind: navigation.KindDisease, ID: 2}})
	res, err = ctrl.Delete(ctx, sess, b)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.Warning == "" || len(deleter.deleted) != 0 {
		t.Errorf("Expected b to be armed without deleting, warning=%q deleted=%v", res.Warning, deleter.deleted)
	}
}

func TestDelete_SwitchingEntityOnSamePageDisarms(t *testing.T) {
	token := navigation.DeleteToken{Kind: navigation.KindDisease, ID: 3}
	other := &navigation.Ref{Kind: navigation.KindDisease, ID: 7}
	own := &navigation.Ref{Kind: navigation.KindDisease, ID: 3}

	tests := []struct {
		name   string
		moveTo func(ctrl *navigation.Controller, sess *navigation.Session, ref *navigation.Ref)
	}{
		{"navigate", func(ctrl *navigation.Controller, sess *navigation.Session, ref *navigation.Ref) {
			ctrl.Navigate(context.Background(), sess, navigation.PageDetail, navigation.Options{Select: ref})
		}},
		{"url reconcile", func(ctrl *navigation.Controller, sess *navigation.Session, ref *navigation.Ref) {
			ctrl.Reconcile(context.Background(), sess, navigation.URLState{
				Page: navigation.PageDetail,
				IDs:  map[navigation.EntityKind]int64{ref.Kind: ref.ID},
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleter := newFakeDeleter(token, navigation.DeleteToken{Kind: navigation.KindDisease, ID: 7})
			ctrl := newTestController(newFakeStore(), deleter)
			sess := signedIn(ctrl, false)
			ctx := context.Background()

			tt.moveTo(ctrl, sess, own)
			if _, err := ctrl.Delete(ctx, sess, token); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}

			tt.moveTo(ctrl, sess, other)
			if sess.Cursor.Armed != nil {
				t.Errorf("Expected disarm after switching to disease 7, got %+v", sess.Cursor.Armed)
			}

			tt.moveTo(ctrl, sess, own)
			res, err := ctrl.Delete(ctx, sess, token)
			if err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if res.Warning != navigation.WarningConfirmDelete || len(deleter.deleted) != 0 {
				t.Errorf("Expected a single press after returning to only arm, got %+v deleted=%v", res, deleter.deleted)
			}
		})
	}
}

func TestDelete_ReselectingSameEntityKeepsArm(t *testing.T) {
	token := navigation.DeleteToken{Kind: navigation.KindProtocol, ID: 3}
	deleter := newFakeDeleter(token)
	ctrl := newTestController(newFakeStore(), deleter)
	sess := signedIn(ctrl, false)
	ctx := context.Background()
	sel := navigation.Options{Select: &navigation.Ref{Kind: navigation.KindProtocol, ID: 3}}

	ctrl.Navigate(ctx, sess, navigation.PageProtocolDetail, sel)
	ctrl.Delete(ctx, sess, token)
	ctrl.Navigate(ctx, sess, navigation.PageProtocolDetail, sel)

	if !sess.Cursor.IsArmed(token) {
		t.Error("Re-rendering the same entity should keep the confirmation armed")
	}
}

func TestDelete_TokenMustMatchShownEntity(t *testing.T) {
	disease := navigation.DeleteToken{Kind: navigation.KindDisease, ID: 3}
	notice := navigation.DeleteToken{Kind: navigation.KindNotice, ID: 5}
	user := navigation.DeleteToken{Kind: navigation.KindUser, ID: 9}

	tests := []struct {
		name  string
		admin bool
		page  navigation.Page
		ref   *navigation.Ref
		token navigation.DeleteToken
		arms  bool
	}{
		{"disease from home", false, navigation.PageHome, nil, disease, false},
		{"disease from search", false, navigation.PageSearch, nil, disease, false},
		{"disease from its detail", false, navigation.PageDetail, &navigation.Ref{Kind: navigation.KindDisease, ID: 3}, disease, true},
		{"notice from a disease detail", false, navigation.PageDetail, &navigation.Ref{Kind: navigation.KindDisease, ID: 3}, notice, false},
		{"notice from its edit page", false, navigation.PageEditNotice, nil, notice, true},
		{"user from home", true, navigation.PageHome, nil, user, false},
		{"user from admin console", true, navigation.PageAdmin, nil, user, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleter := newFakeDeleter(disease, notice, user)
			ctrl := newTestController(newFakeStore(), deleter)
			sess := signedIn(ctrl, tt.admin)
			ctx := context.Background()

			opts := navigation.Options{Select: tt.ref}
			if tt.page == navigation.PageEditNotice {
				opts = navigation.Options{Edit: &navigation.Ref{Kind: navigation.KindNotice, ID: 5}}
			}
			ctrl.Navigate(ctx, sess, tt.page, opts)

			for press := 0; press < 2; press++ {
				res, err := ctrl.Delete(ctx, sess, tt.token)
				if err != nil {
					t.Fatalf("Delete failed: %v", err)
				}
				if press == 0 && (res.Warning != "") != tt.arms {
					t.Errorf("Expected arms=%v, got %+v", tt.arms, res)
				}
				if !tt.arms && !res.NotFound {
					t.Errorf("Expected not found for a token the page does not show, got %+v", res)
				}
			}
			if deleted := len(deleter.deleted) == 1; deleted != tt.arms {
				t.Errorf("Expected deleted=%v, got %v", tt.arms, deleter.deleted)
			}
		})
	}
}

func TestDelete_NavigatingAwayDisarms(t *testing.T) {
	token := navigation.DeleteToken{Kind: navigation.KindNotice, ID: 5}
	deleter := newFakeDeleter(token)
	ctrl := newTestController(newFakeStore(), deleter)
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageNoticeDetail, navigation.Options{Select: &navigation.Ref{Kind: navigation.KindNotice, ID: 5}})
	if _, err := ctrl.Delete(ctx, sess, token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	ctrl.Navigate(ctx, sess, navigation.PageHome, navigation.Options{})
	ctrl.Navigate(ctx, sess, navigation.PageNoticeDetail, navigation.Options{Select: &navigation.Ref{Kind: navigation.KindNotice, ID: 5}})

	res, err := ctrl.Delete(ctx, sess, token)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if res.Warning == "" || len(deleter.deleted) != 0 {
		t.Error("After leaving the page the next press must only arm again")
	}
}

func TestDelete_FailureLeavesCursorUnchanged(t *testing.T) {
	token := navigation.DeleteToken{Kind: navigation.KindProtocol, ID: 3}
	deleter := newFakeDeleter(token)
	ctrl := newTestController(newFakeStore(), deleter)
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	ctrl.Navigate(ctx, sess, navigation.PageProtocolDetail, navigation.Options{Select: &navigation.Ref{Kind: navigation.KindProtocol, ID: 3}})
	if _, err := ctrl.Delete(ctx, sess, token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	before := sess.Cursor.Clone()
	deleter.deleteErr = errors.New("connection refused")

	res, err := ctrl.Delete(ctx, sess, token)
	if err == nil {
		t.Fatal("Expected repository error")
	}
	if res.Page != navigation.PageProtocolDetail {
		t.Errorf("Expected to stay on protocol_detail, got %s", res.Page)
	}
	if sess.Cursor.Page != before.Page || !sess.Cursor.IsArmed(token) {
		t.Error("Cursor must be unchanged after a failed delete")
	}
	if id, _ := sess.Cursor.Selection(navigation.KindProtocol); id != 3 {
		t.Errorf("Expected selection to be kept, got %d", id)
	}
}

func TestDelete_Rules(t *testing.T) {
	ctx := context.Background()
	userToken := navigation.DeleteToken{Kind: navigation.KindUser, ID: 9}
	ctrl := newTestController(newFakeStore(), newFakeDeleter(userToken))

	anon := &navigation.Session{Cursor: navigation.NewCursor()}
	if _, err := ctrl.Delete(ctx, anon, userToken); !errors.Is(err, navigation.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}

	user := signedIn(ctrl, false)
	if _, err := ctrl.Delete(ctx, user, userToken); !errors.Is(err, navigation.ErrNotAllowed) {
		t.Errorf("Expected ErrNotAllowed for non-admin user delete, got %v", err)
	}

	res, err := ctrl.Delete(ctx, user, navigation.DeleteToken{Kind: navigation.KindDisease, ID: 404})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !res.NotFound {
		t.Error("Expected not found for missing entity")
	}
}

func TestLogoutAndBootstrap(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, newFakeDeleter())
	ctx := context.Background()

	sess := signedIn(ctrl, false)
	ctrl.Navigate(ctx, sess, navigation.PageProtocols, navigation.Options{})

	restored := ctrl.Bootstrap(ctx, 1, false)
	if restored.Cursor.Page != navigation.PageProtocols {
		t.Errorf("Expected bootstrap to restore protocols, got %s", restored.Cursor.Page)
	}

	ctrl.Logout(ctx, sess)
	if sess.Authenticated() || sess.Cursor.Page != navigation.PageWelcome {
		t.Errorf("Expected anonymous welcome after logout, got user=%d page=%s", sess.UserID, sess.Cursor.Page)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 1 {
		t.Errorf("Expected store record of user 1 deleted, got %v", store.deleted)
	}

	fresh := ctrl.Bootstrap(ctx, 1, false)
	if fresh.Cursor.Page != navigation.PageHome {
		t.Errorf("Expected fresh home cursor, got %s", fresh.Cursor.Page)
	}
}

func TestReconcile(t *testing.T) {
	ctrl := newTestController(newFakeStore(), newFakeDeleter())
	sess := signedIn(ctrl, false)
	ctx := context.Background()

	res := ctrl.Reconcile(ctx, sess, navigation.URLState{
		Page: navigation.PageDetail,
		IDs:  map[navigation.EntityKind]int64{navigation.KindDisease: 7},
	})
	if res.Page != navigation.PageDetail {
		t.Fatalf("Expected detail, got %s", res.Page)
	}
	if id, _ := sess.Cursor.Selection(navigation.KindDisease); id != 7 {
		t.Errorf("Expected disease 7 selected, got %d", id)
	}
	historyLen := len(sess.Cursor.History)

	// Reload with the same URL changes nothing
	ctrl.Reconcile(ctx, sess, navigation.URLState{
		Page: navigation.PageDetail,
		IDs:  map[navigation.EntityKind]int64{navigation.KindDisease: 7},
	})
	if len(sess.Cursor.History) != historyLen {
		t.Errorf("Reload should not grow history: %v", sess.Cursor.History)
	}

	// Browser back to a search URL
	ctrl.Reconcile(ctx, sess, navigation.URLState{Page: navigation.PageSearch, Term: "肺炎", HasTerm: true})
	if sess.Cursor.Page != navigation.PageSearch || sess.Cursor.Search.Term != "肺炎" {
		t.Errorf("Expected search for 肺炎, got %s / %q", sess.Cursor.Page, sess.Cursor.Search.Term)
	}
}

func TestRestoreLatest(t *testing.T) {
	store := newFakeStore()
	ctrl := newTestController(store, newFakeDeleter())
	ctx := context.Background()

	if _, ok := ctrl.RestoreLatest(ctx); ok {
		t.Error("Expected nothing to restore from an empty store")
	}

	sess := signedIn(ctrl, false)
	ctrl.Navigate(ctx, sess, navigation.PageNotices, navigation.Options{})

	restored, ok := ctrl.RestoreLatest(ctx)
	if !ok {
		t.Fatal("Expected a session to restore")
	}
	if restored.UserID != 1 || restored.Cursor.Page != navigation.PageNotices {
		t.Errorf("Unexpected restored session %+v", restored)
	}
}

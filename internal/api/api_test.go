package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ct-protocol-manual/internal/api"
	"github.com/ct-protocol-manual/internal/auth"
	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/mocks"
	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/service"
	"github.com/ct-protocol-manual/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type testApp struct {
	router   *api.Router
	repos    *repository.Repositories
	services *service.Services
}

func setupTestApp(t *testing.T, configure func(*config.Config)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Defaults()
	cfg.Session.Secret = "test-secret"
	if configure != nil {
		configure(cfg)
	}

	repos := mocks.NewRepositories()
	ctx := context.Background()
	for _, u := range []struct{ name, email, password string }{
		{"管理者", "admin@hospital.jp", "admin123"},
		{"技師", "tech@hospital.jp", "tech123"},
	} {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			t.Fatalf("HashPassword failed: %v", err)
		}
		repos.User.Create(ctx, &models.User{Name: u.name, Email: u.email, PasswordHash: hash})
	}
	repos.Disease.Create(ctx, &models.Disease{ID: 3, Name: "脳梗塞", Description: "脳血管が詰まる疾患", Keywords: "脳梗塞,stroke"})
	repos.Disease.Create(ctx, &models.Disease{ID: 7, Name: "肺炎", Description: "肺の感染症", Keywords: "肺炎,pneumonia"})
	repos.Notice.Create(ctx, &models.Notice{Title: "システム運用開始", Body: "CT医療システムの運用を開始しました。"})
	repos.Protocol.Create(ctx, &models.Protocol{ID: 1, Category: models.CategoryHead, Title: "頭部単純CT", Content: "5mm"})
	repos.Protocol.Create(ctx, &models.Protocol{ID: 3, Category: models.CategoryChest, Title: "胸部造影CT", Content: "1mm"})

	log := zerolog.Nop()
	services := service.NewServices(repos, cfg, log)
	controller := navigation.NewController(services.Sessions, services.Deleter, cfg.Session.RestoreWindow, log)
	router := api.NewRouter(services, controller, cfg, log)
	t.Cleanup(router.Close)

	return &testApp{router: router, repos: repos, services: services}
}

// browser keeps its own cookie jar
type browser struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	return &browser{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

// document is view.Document with the payload left raw
type document struct {
	view.Document
	Data json.RawMessage `json:"data"`
}

func (b *browser) do(method, path string, body interface{}) (*httptest.ResponseRecorder, document) {
	b.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	b.app.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}

	var doc document
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		json.Unmarshal(w.Body.Bytes(), &doc)
	}
	return w, doc
}

func (b *browser) login(email, password string) document {
	b.t.Helper()
	b.do("POST", "/app/start", nil)
	w, doc := b.do("POST", "/app/login", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		b.t.Fatalf("Expected login to succeed, got %d: %s", w.Code, w.Body.String())
	}
	return doc
}

func (b *browser) navigate(page navigation.Page, kind navigation.EntityKind, id int64) (*httptest.ResponseRecorder, document) {
	body := map[string]interface{}{"page": page}
	if id != 0 {
		body["select"] = map[string]interface{}{"kind": kind, "id": id}
	}
	return b.do("POST", "/app/navigate", body)
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "ct-protocol-manual" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated request id")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := setupTestApp(t, nil)
	mockExport := mocks.NewMockExportService()
	mockExport.Counts[service.ResourceDiseases] = 120
	mockExport.Counts[service.ResourceUsers] = 8
	app.services.Export = mockExport

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Database map[string]int `json:"database"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response.Database["diseases"] != 120 {
		t.Errorf("Expected 120 diseases, got %d", response.Database["diseases"])
	}
	if response.Database["users"] != 8 {
		t.Errorf("Expected 8 users, got %d", response.Database["users"])
	}
}

func TestCORSHeaders(t *testing.T) {
	app := setupTestApp(t, nil)

	req := httptest.NewRequest("OPTIONS", "/app", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS allow origin header")
	}
}

func TestAnonymousBrowserStaysOnPublicPages(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   navigation.Page
	}{
		{"deep link", "GET", "/app?page=detail&disease=7", nil, navigation.PageWelcome},
		{"navigate", "POST", "/app/navigate", map[string]string{"page": "search"}, navigation.PageWelcome},
		{"start", "POST", "/app/start", nil, navigation.PageLogin},
		{"reload login", "GET", "/app", nil, navigation.PageLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, doc := b.do(tt.method, tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if doc.Page != tt.want {
				t.Errorf("Expected page %s, got %s", tt.want, doc.Page)
			}
			if doc.User != nil {
				t.Error("Expected no user")
			}
		})
	}

	if len(app.repos.Session.(*mocks.MockSessionRepository).Records) != 0 {
		t.Error("Anonymous navigation should not be persisted")
	}
}

func TestLogin(t *testing.T) {
	app := setupTestApp(t, nil)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		page     navigation.Page
		admin    bool
	}{
		{"technician", "tech@hospital.jp", "tech123", http.StatusOK, navigation.PageHome, false},
		{"admin", "admin@hospital.jp", "admin123", http.StatusOK, navigation.PageHome, true},
		{"wrong password", "tech@hospital.jp", "wrong", http.StatusUnauthorized, navigation.PageLogin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := app.newBrowser(t)
			b.do("POST", "/app/start", nil)
			w, doc := b.do("POST", "/app/login", map[string]string{"email": tt.email, "password": tt.password})

			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if doc.Page != tt.page {
				t.Errorf("Expected page %s, got %s", tt.page, doc.Page)
			}
			if tt.status != http.StatusOK {
				if doc.Error != api.MessageInvalidCredentials {
					t.Errorf("Expected credentials error, got %q", doc.Error)
				}
				return
			}
			if doc.User == nil || doc.User.IsAdmin != tt.admin {
				t.Errorf("Expected user with admin=%v, got %+v", tt.admin, doc.User)
			}

			var home view.HomeData
			json.Unmarshal(doc.Data, &home)
			if len(home.Notices) != 1 {
				t.Errorf("Expected 1 notice on home, got %d", len(home.Notices))
			}
		})
	}
}

func TestLogin_RateLimited(t *testing.T) {
	app := setupTestApp(t, func(cfg *config.Config) {
		cfg.Auth.LoginMaxAttempts = 2
	})
	b := app.newBrowser(t)
	b.do("POST", "/app/start", nil)

	for i := 0; i < 2; i++ {
		w, _ := b.do("POST", "/app/login", map[string]string{"email": "tech@hospital.jp", "password": "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Attempt %d: expected status 401, got %d", i+1, w.Code)
		}
	}

	w, doc := b.do("POST", "/app/login", map[string]string{"email": "tech@hospital.jp", "password": "tech123"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if doc.Error != api.MessageTooManyAttempts {
		t.Errorf("Expected rate limit message, got %q", doc.Error)
	}
}

func TestPneumoniaSearchFlow(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")

	_, doc := b.navigate(navigation.PageSearch, "", 0)
	if doc.Page != navigation.PageSearch {
		t.Fatalf("Expected search page, got %s", doc.Page)
	}

	_, doc = b.do("POST", "/app/search", map[string]string{"term": "pneumonia"})
	var search view.SearchData
	json.Unmarshal(doc.Data, &search)
	if len(search.Results) != 1 || search.Results[0].ID != 7 {
		t.Fatalf("Expected disease 7 in results, got %+v", search.Results)
	}

	_, doc = b.navigate(navigation.PageDetail, navigation.KindDisease, 7)
	if doc.Page != navigation.PageDetail {
		t.Fatalf("Expected detail page, got %s", doc.Page)
	}
	if doc.URL != "?disease=7&page=detail" {
		t.Errorf("Expected canonical url, got %s", doc.URL)
	}
	var disease models.Disease
	json.Unmarshal(doc.Data, &disease)
	if disease.Name != "肺炎" {
		t.Errorf("Expected 肺炎, got %s", disease.Name)
	}

	_, doc = b.do("POST", "/app/back", nil)
	if doc.Page != navigation.PageSearch {
		t.Fatalf("Expected back on search, got %s", doc.Page)
	}
	if _, ok := doc.Cursor.Selection(navigation.KindDisease); ok {
		t.Error("Expected disease selection to be cleared")
	}
	search = view.SearchData{}
	json.Unmarshal(doc.Data, &search)
	if search.Term != "pneumonia" || len(search.Results) != 1 {
		t.Errorf("Expected pneumonia results to be shown again, got %+v", search)
	}
}

func TestLargeSearchSurvivesDetailAndBack(t *testing.T) {
	app := setupTestApp(t, nil)
	ctx := context.Background()
	for i := int64(0); i < 800; i++ {
		app.repos.Disease.Create(ctx, &models.Disease{
			ID:          1000 + i,
			Name:        "肺疾患" + jsonInt(i),
			Description: "lung disease",
			Keywords:    "lung",
		})
	}

	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	b.navigate(navigation.PageSearch, "", 0)

	w, doc := b.do("POST", "/app/search", map[string]string{"term": "lung"})
	var search view.SearchData
	json.Unmarshal(doc.Data, &search)
	if len(search.Results) != 800 {
		t.Fatalf("Expected 800 results, got %d", len(search.Results))
	}
	for _, c := range w.Result().Cookies() {
		if len(c.String()) > 4096 {
			t.Errorf("Cookie %s is %d bytes", c.Name, len(c.String()))
		}
	}

	_, doc = b.navigate(navigation.PageDetail, navigation.KindDisease, 1005)
	if doc.Page != navigation.PageDetail || doc.Cursor.Search.Term != "lung" {
		t.Fatalf("Expected detail with term kept, got page %s term %q", doc.Page, doc.Cursor.Search.Term)
	}

	_, doc = b.do("POST", "/app/back", nil)
	search = view.SearchData{}
	json.Unmarshal(doc.Data, &search)
	if doc.Page != navigation.PageSearch || search.Term != "lung" || len(search.Results) != 800 {
		t.Errorf("Expected search for lung with 800 results, got page %s term %q results %d",
			doc.Page, search.Term, len(search.Results))
	}
}

func TestSearch_TermTooLong(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	b.do("POST", "/app/search", map[string]string{"term": "pneumonia"})

	w, doc := b.do("POST", "/app/search", map[string]string{"term": strings.Repeat("肺", navigation.MaxTermLength+1)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}
	if len(doc.Errors) == 0 || doc.Errors[0].Field != "term" {
		t.Errorf("Expected term error, got %+v", doc.Errors)
	}
	if doc.Cursor.Search.Term != "pneumonia" {
		t.Errorf("Expected previous term kept, got %q", doc.Cursor.Search.Term)
	}
}

func TestProtocolTwoStepDelete(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")

	_, doc := b.navigate(navigation.PageProtocols, "", 0)
	var list view.ProtocolsData
	json.Unmarshal(doc.Data, &list)
	if len(list.Protocols) != 2 {
		t.Fatalf("Expected 2 protocols, got %d", len(list.Protocols))
	}

	b.navigate(navigation.PageProtocolDetail, navigation.KindProtocol, 3)
	token := map[string]interface{}{"kind": "protocol", "id": 3}

	w, doc := b.do("POST", "/app/delete", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if doc.Warning != navigation.WarningConfirmDelete {
		t.Errorf("Expected confirm warning, got %q", doc.Warning)
	}
	if doc.Page != navigation.PageProtocolDetail {
		t.Errorf("Expected to stay on detail, got %s", doc.Page)
	}
	if p, _ := app.repos.Protocol.GetByID(context.Background(), 3); p == nil {
		t.Fatal("First press should not delete")
	}

	_, doc = b.do("POST", "/app/delete", token)
	if doc.Page != navigation.PageProtocols {
		t.Errorf("Expected protocols page, got %s", doc.Page)
	}
	if doc.Notice != "CTプロトコルを削除しました" {
		t.Errorf("Expected deleted message, got %q", doc.Notice)
	}
	list = view.ProtocolsData{}
	json.Unmarshal(doc.Data, &list)
	if len(list.Protocols) != 1 {
		t.Errorf("Expected cached list to drop the deleted protocol, got %d", len(list.Protocols))
	}
	if _, ok := doc.Cursor.Selection(navigation.KindProtocol); ok {
		t.Error("Expected protocol selection to be cleared")
	}
}

func TestDelete_NavigatingAwayDisarms(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	token := map[string]interface{}{"kind": "disease", "id": 7}

	b.navigate(navigation.PageDetail, navigation.KindDisease, 7)
	b.do("POST", "/app/delete", token)
	b.navigate(navigation.PageHome, "", 0)
	b.navigate(navigation.PageDetail, navigation.KindDisease, 7)

	_, doc := b.do("POST", "/app/delete", token)
	if doc.Warning != navigation.WarningConfirmDelete {
		t.Errorf("Expected delete to be re-armed, got warning %q", doc.Warning)
	}
	if d, _ := app.repos.Disease.GetByID(context.Background(), 7); d == nil {
		t.Error("Disease should still exist")
	}
}

func TestDelete_SwitchingDiseaseDisarms(t *testing.T) {
	tests := []struct {
		name string
		open func(b *browser, id int64)
	}{
		{"navigate", func(b *browser, id int64) {
			b.navigate(navigation.PageDetail, navigation.KindDisease, id)
		}},
		{"address bar", func(b *browser, id int64) {
			b.do("GET", "/app?page=detail&disease="+jsonInt(id), nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, nil)
			b := app.newBrowser(t)
			b.login("tech@hospital.jp", "tech123")
			token := map[string]interface{}{"kind": "disease", "id": 3}

			tt.open(b, 3)
			b.do("POST", "/app/delete", token)
			tt.open(b, 7)
			tt.open(b, 3)

			_, doc := b.do("POST", "/app/delete", token)
			if doc.Warning != navigation.WarningConfirmDelete {
				t.Errorf("Expected the press to only arm again, got page %s notice %q", doc.Page, doc.Notice)
			}
			if d, _ := app.repos.Disease.GetByID(context.Background(), 3); d == nil {
				t.Error("Disease 3 should still exist")
			}
		})
	}
}

func TestDelete_TokenForAnotherPageIsRefused(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")

	token := map[string]interface{}{"kind": "protocol", "id": 3}
	for i := 0; i < 2; i++ {
		_, doc := b.do("POST", "/app/delete", token)
		if !doc.NotFound {
			t.Errorf("Press %d: expected not_found from home, got %+v", i+1, doc.Document)
		}
	}
	if p, _ := app.repos.Protocol.GetByID(context.Background(), 3); p == nil {
		t.Error("Protocol 3 should not be deleted from home")
	}
}

func TestDelete_FailureLeavesCursor(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	token := map[string]interface{}{"kind": "protocol", "id": 3}

	b.navigate(navigation.PageProtocolDetail, navigation.KindProtocol, 3)
	b.do("POST", "/app/delete", token)

	app.repos.Protocol.(*mocks.MockProtocolRepository).Err = errors.New("connection refused")
	w, doc := b.do("POST", "/app/delete", token)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
	if doc.Back == nil {
		t.Error("Expected a back link")
	}
	if doc.Page != navigation.PageProtocolDetail {
		t.Errorf("Expected cursor to stay on detail, got %s", doc.Page)
	}
	if id, ok := doc.Cursor.Selection(navigation.KindProtocol); !ok || id != 3 {
		t.Errorf("Expected protocol 3 still selected, got %d", id)
	}
}

func TestStaleSelectionRendersNotFound(t *testing.T) {
	app := setupTestApp(t, nil)
	tab := app.newBrowser(t)
	tab.login("tech@hospital.jp", "tech123")
	tab.navigate(navigation.PageDetail, navigation.KindDisease, 3)

	app.repos.Disease.Delete(context.Background(), 3)

	w, doc := tab.do("GET", "/app", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !doc.NotFound {
		t.Error("Expected not_found")
	}
	if doc.Back == nil || doc.Back.Page != navigation.PageSearch {
		t.Errorf("Expected back link to search, got %+v", doc.Back)
	}
}

func TestReloadAppliesURLState(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	b.navigate(navigation.PageNotices, "", 0)

	_, doc := b.do("GET", "/app?page=detail&disease=7", nil)
	if doc.Page != navigation.PageDetail {
		t.Fatalf("Expected detail page, got %s", doc.Page)
	}
	if id, _ := doc.Cursor.Selection(navigation.KindDisease); id != 7 {
		t.Errorf("Expected disease 7 selected, got %d", id)
	}
	if n := len(doc.Cursor.History); n == 0 || doc.Cursor.History[n-1] != navigation.PageNotices {
		t.Errorf("Expected notices in history, got %v", doc.Cursor.History)
	}
}

func TestLastWriterWinsAcrossTabs(t *testing.T) {
	app := setupTestApp(t, nil)
	sessionRepo := app.repos.Session.(*mocks.MockSessionRepository)

	tabA := app.newBrowser(t)
	tabB := app.newBrowser(t)
	tabA.login("tech@hospital.jp", "tech123")
	tabB.login("tech@hospital.jp", "tech123")

	storedPage := func() navigation.Page {
		for _, record := range sessionRepo.Records {
			cur, err := navigation.Restore(record.Snapshot)
			if err != nil {
				t.Fatalf("Restore failed: %v", err)
			}
			return cur.Page
		}
		return ""
	}

	tabA.navigate(navigation.PageNotices, "", 0)
	tabB.navigate(navigation.PageProtocols, "", 0)
	if got := storedPage(); got != navigation.PageProtocols {
		t.Errorf("Expected last writer (protocols), got %s", got)
	}

	tabA.navigate(navigation.PageSearch, "", 0)
	if got := storedPage(); got != navigation.PageSearch {
		t.Errorf("Expected last writer (search), got %s", got)
	}

	_, docA := tabA.do("GET", "/app", nil)
	_, docB := tabB.do("GET", "/app", nil)
	if docA.Page != navigation.PageSearch || docB.Page != navigation.PageProtocols {
		t.Errorf("Expected each tab to keep its own cursor, got %s and %s", docA.Page, docB.Page)
	}
	if len(sessionRepo.Records) != 1 {
		t.Errorf("Expected one stored record per user, got %d", len(sessionRepo.Records))
	}
}

func TestRestoreLatestSession(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    navigation.Page
	}{
		{"enabled", true, navigation.PageNotices},
		{"disabled", false, navigation.PageWelcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, func(cfg *config.Config) {
				cfg.Session.RestoreLatest = tt.enabled
			})
			first := app.newBrowser(t)
			first.login("tech@hospital.jp", "tech123")
			first.navigate(navigation.PageNotices, "", 0)

			fresh := app.newBrowser(t)
			_, doc := fresh.do("GET", "/app", nil)
			if doc.Page != tt.want {
				t.Errorf("Expected page %s, got %s", tt.want, doc.Page)
			}
			if tt.enabled && (doc.User == nil || doc.User.Email != "tech@hospital.jp") {
				t.Errorf("Expected restored user, got %+v", doc.User)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	b.navigate(navigation.PageSearch, "", 0)

	_, doc := b.do("POST", "/app/logout", nil)
	if doc.Page != navigation.PageWelcome {
		t.Errorf("Expected welcome after logout, got %s", doc.Page)
	}
	if doc.User != nil {
		t.Error("Expected no user after logout")
	}
	if len(app.repos.Session.(*mocks.MockSessionRepository).Records) != 0 {
		t.Error("Expected stored session to be deleted")
	}

	_, doc = b.do("GET", "/app?page=search", nil)
	if doc.Page != navigation.PageWelcome {
		t.Errorf("Expected welcome, got %s", doc.Page)
	}
}

func TestCreateAndUpdateDisease(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)
	b.login("tech@hospital.jp", "tech123")
	b.navigate(navigation.PageCreateDisease, "", 0)

	w, doc := b.do("POST", "/app/diseases", map[string]string{"name": "", "description": "x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status 422, got %d", w.Code)
	}
	if doc.Page != navigation.PageCreateDisease {
		t.Errorf("Expected to stay on the form, got %s", doc.Page)
	}
	if len(doc.Errors) == 0 || doc.Errors[0].Field != "name" {
		t.Errorf("Expected name error, got %+v", doc.Errors)
	}

	w, doc = b.do("POST", "/app/diseases", map[string]interface{}{
		"name":        "虫垂炎",
		"description": "<p>appendicitis</p>",
		"keywords":    "虫垂炎,appendicitis",
		"scan":        map[string]string{"label": "腹部CT", "detail": "5mm"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if doc.Page != navigation.PageDetail {
		t.Errorf("Expected detail page, got %s", doc.Page)
	}
	id, ok := doc.Cursor.Selection(navigation.KindDisease)
	if !ok {
		t.Fatal("Expected new disease to be selected")
	}

	_, doc = b.do("POST", "/app/search", map[string]string{"term": "appendicitis"})
	var search view.SearchData
	json.Unmarshal(doc.Data, &search)
	if len(search.Results) != 1 {
		t.Errorf("Expected new disease in search, got %d results", len(search.Results))
	}

	w, doc = b.do("PUT", "/app/diseases/"+jsonInt(id), map[string]string{"name": "急性虫垂炎", "description": "updated"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if doc.Notice != "疾患データを更新しました" {
		t.Errorf("Expected updated message, got %q", doc.Notice)
	}

	w, doc = b.do("PUT", "/app/diseases/999", map[string]string{"name": "x", "description": "y"})
	if !doc.NotFound {
		t.Errorf("Expected not_found for missing disease, got status %d", w.Code)
	}
}

func TestContentWritesRequireLogin(t *testing.T) {
	app := setupTestApp(t, nil)
	b := app.newBrowser(t)

	w, _ := b.do("POST", "/app/notices", map[string]string{"title": "t", "body": "b"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	w, _ = b.do("POST", "/app/delete", map[string]interface{}{"kind": "notice", "id": 1})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAdminAccess(t *testing.T) {
	app := setupTestApp(t, nil)
	tech := app.newBrowser(t)
	tech.login("tech@hospital.jp", "tech123")
	admin := app.newBrowser(t)
	admin.login("admin@hospital.jp", "admin123")

	_, doc := tech.navigate(navigation.PageAdmin, "", 0)
	if doc.Page != navigation.PageHome {
		t.Errorf("Expected technician to be sent home, got %s", doc.Page)
	}

	newUser := map[string]string{
		"name": "山田", "email": "yamada@hospital.com", "password": "abcdef", "password_confirm": "abcdef",
	}
	w, _ := tech.do("POST", "/app/admin/users", newUser)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}
	w, _ = tech.do("GET", "/admin/export?resource=users&format=csv", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", w.Code)
	}

	admin.navigate(navigation.PageAdmin, "", 0)
	w, doc = admin.do("POST", "/app/admin/users", newUser)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var console view.AdminData
	json.Unmarshal(doc.Data, &console)
	if len(console.Users) != 3 || console.Users[0].Email != "yamada@hospital.com" {
		t.Errorf("Expected new user listed first, got %+v", console.Users)
	}

	w, _ = admin.do("POST", "/app/admin/users", newUser)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate, got %d", w.Code)
	}

	w, _ = admin.do("GET", "/admin/export?resource=users&format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("Expected csv, got %s", w.Header().Get("Content-Type"))
	}
}

func TestAdminUserDeleteRules(t *testing.T) {
	app := setupTestApp(t, nil)
	admin := app.newBrowser(t)
	admin.login("admin@hospital.jp", "admin123")
	admin.navigate(navigation.PageAdmin, "", 0)

	w, doc := admin.do("POST", "/app/delete", map[string]interface{}{"kind": "user", "id": 1})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected self-delete to be refused with 403, got %d", w.Code)
	}
	if doc.Error != api.MessageProtectedUser {
		t.Errorf("Expected protected user message, got %q", doc.Error)
	}

	token := map[string]interface{}{"kind": "user", "id": 2}
	_, doc = admin.do("POST", "/app/delete", token)
	if doc.Warning != navigation.WarningConfirmDelete {
		t.Fatalf("Expected confirm warning, got %q", doc.Warning)
	}
	_, doc = admin.do("POST", "/app/delete", token)
	if doc.Notice != "ユーザーを削除しました" {
		t.Errorf("Expected user deleted message, got %q", doc.Notice)
	}
	if u, _ := app.repos.User.GetByID(context.Background(), 2); u != nil {
		t.Error("Expected user 2 to be deleted")
	}
}

func TestExportStream_ValidationErrors(t *testing.T) {
	app := setupTestApp(t, nil)
	admin := app.newBrowser(t)
	admin.login("admin@hospital.jp", "admin123")

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing resource", "", http.StatusBadRequest},
		{"unknown resource", "?resource=articles", http.StatusBadRequest},
		{"bad format", "?resource=diseases&format=xml", http.StatusBadRequest},
		{"csv for diseases", "?resource=diseases&format=csv", http.StatusBadRequest},
		{"diseases ndjson", "?resource=diseases", http.StatusOK},
		{"notices json", "?resource=notices&format=json", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := admin.do("GET", "/admin/export"+tt.query, nil)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func jsonInt(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

package view

import (
	"context"
	"net/http"
	"strings"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/service"
	"github.com/ct-protocol-manual/internal/validation"
	"github.com/rs/zerolog"
)

// HomeNoticeLimit is the number of notices shown on the home page
const HomeNoticeLimit = 7

// User-facing messages
const (
	MessageNotFound    = "選択されたデータが見つかりません"
	MessageUnavailable = "データベースに接続できません。しばらくしてから再度お試しください"
	labelBack          = "戻る"
	labelBackToList    = "一覧に戻る"
)

var titles = map[navigation.Page]string{
	navigation.PageWelcome:        "CTプロトコルマニュアル",
	navigation.PageLogin:          "ログイン",
	navigation.PageHome:           "ホーム",
	navigation.PageSearch:         "疾患検索",
	navigation.PageDetail:         "疾患詳細",
	navigation.PageCreateDisease:  "疾患データ作成",
	navigation.PageEditDisease:    "疾患データ編集",
	navigation.PageNotices:        "お知らせ",
	navigation.PageNoticeDetail:   "お知らせ詳細",
	navigation.PageCreateNotice:   "お知らせ作成",
	navigation.PageEditNotice:     "お知らせ編集",
	navigation.PageProtocols:      "CTプロトコル",
	navigation.PageProtocolDetail: "CTプロトコル詳細",
	navigation.PageCreateProtocol: "CTプロトコル作成",
	navigation.PageEditProtocol:   "CTプロトコル編集",
	navigation.PageAdmin:          "管理者",
}

// Document is the body of every page response
type Document struct {
	Page     navigation.Page              `json:"page"`
	URL      string                       `json:"url"`
	Title    string                       `json:"title"`
	User     *models.UserView             `json:"user,omitempty"`
	Cursor   *navigation.Cursor           `json:"cursor"`
	Data     interface{}                  `json:"data,omitempty"`
	Notice   string                       `json:"notice,omitempty"`
	Warning  string                       `json:"warning,omitempty"`
	Error    string                       `json:"error,omitempty"`
	Errors   []validation.ValidationError `json:"errors,omitempty"`
	NotFound bool                         `json:"not_found"`
	Back     *BackLink                    `json:"back,omitempty"`
}

// BackLink points the user somewhere safe after a failure
type BackLink struct {
	Page  navigation.Page `json:"page"`
	URL   string          `json:"url"`
	Label string          `json:"label"`
}

func newBackLink(p navigation.Page, label string) *BackLink {
	return &BackLink{Page: p, URL: "?page=" + string(p), Label: label}
}

// HomeData is the home page payload
type HomeData struct {
	Notices []*models.Notice `json:"notices"`
}

// SearchData is the disease search payload. Results follow the term; All is
// only filled when the show-all toggle is on.
type SearchData struct {
	Term    string                  `json:"term"`
	ShowAll bool                    `json:"show_all"`
	Results []models.DiseaseSummary `json:"results"`
	All     []models.DiseaseSummary `json:"all,omitempty"`
}

// ProtocolsData is the protocol library payload
type ProtocolsData struct {
	Category   string             `json:"category"`
	Categories []string           `json:"categories"`
	Protocols  []*models.Protocol `json:"protocols"`
}

// FormData is the payload of the create forms
type FormData struct {
	Categories []string `json:"categories,omitempty"`
}

// AdminData is the admin console payload
type AdminData struct {
	Users  []models.UserView `json:"users"`
	Counts map[string]int    `json:"counts"`
}

// pageHandler loads what a page shows. found=false means the page's selection
// or edit target no longer exists.
type pageHandler func(ctx context.Context, r *Renderer, cur *navigation.Cursor) (data interface{}, found bool, err error)

var handlers = map[navigation.Page]pageHandler{
	navigation.PageWelcome:        renderStatic,
	navigation.PageLogin:          renderStatic,
	navigation.PageHome:           renderHome,
	navigation.PageSearch:         renderSearch,
	navigation.PageDetail:         renderDisease,
	navigation.PageCreateDisease:  renderStatic,
	navigation.PageEditDisease:    renderDisease,
	navigation.PageNotices:        renderNotices,
	navigation.PageNoticeDetail:   renderNotice,
	navigation.PageCreateNotice:   renderStatic,
	navigation.PageEditNotice:     renderNotice,
	navigation.PageProtocols:      renderProtocols,
	navigation.PageProtocolDetail: renderProtocol,
	navigation.PageCreateProtocol: renderProtocolForm,
	navigation.PageEditProtocol:   renderProtocol,
	navigation.PageAdmin:          renderAdmin,
}

// Renderer turns a cursor into a render document
type Renderer struct {
	diseases  service.DiseaseService
	notices   service.NoticeService
	protocols service.ProtocolService
	admin     service.AdminService
	log       zerolog.Logger
}

// NewRenderer creates a renderer over the content services
func NewRenderer(services *service.Services, log zerolog.Logger) *Renderer {
	return &Renderer{
		diseases:  services.Disease,
		notices:   services.Notice,
		protocols: services.Protocol,
		admin:     services.Admin,
		log:       log.With().Str("component", "view").Logger(),
	}
}

// Render builds the document for the cursor's current page and the HTTP status
// to send it with. A repository failure yields 503 with a back link; a missing
// selection yields not_found with a link to the kind's list.
func (r *Renderer) Render(ctx context.Context, sess *navigation.Session, user *models.UserView, res navigation.Result) (*Document, int) {
	cur := sess.Cursor
	doc := &Document{
		Page:     cur.Page,
		Title:    titles[cur.Page],
		User:     user,
		Notice:   res.Message,
		Warning:  res.Warning,
		NotFound: res.NotFound,
	}
	status := http.StatusOK

	if handler, ok := handlers[cur.Page]; ok {
		data, found, err := handler(ctx, r, cur)
		switch {
		case err != nil:
			r.log.Error().Err(err).Str("page", string(cur.Page)).Int64("user_id", sess.UserID).Msg("Failed to load page")
			doc.Error = MessageUnavailable
			doc.Back = previousPage(cur)
			status = http.StatusServiceUnavailable
		case !found:
			doc.NotFound = true
			doc.Data = data
		default:
			doc.Data = data
		}
	}

	if doc.NotFound {
		if doc.Error == "" {
			doc.Error = MessageNotFound
		}
		if doc.Back == nil {
			doc.Back = listLink(cur.Page)
		}
	}

	doc.Cursor = cur
	doc.URL = cur.URL()
	return doc, status
}

// previousPage links to the last history entry, or home
func previousPage(cur *navigation.Cursor) *BackLink {
	if n := len(cur.History); n > 0 {
		return newBackLink(cur.History[n-1], labelBack)
	}
	return newBackLink(navigation.PageHome, labelBack)
}

func listLink(p navigation.Page) *BackLink {
	if kind := p.Kind(); kind != "" {
		if list := navigation.ListPage(kind); list != "" && list != p {
			return newBackLink(list, labelBackToList)
		}
	}
	return newBackLink(navigation.PageHome, labelBack)
}

func renderStatic(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	return nil, true, nil
}

func renderHome(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	notices, err := r.notices.Recent(ctx, HomeNoticeLimit)
	if err != nil {
		return nil, false, err
	}
	return HomeData{Notices: notices}, true, nil
}

// renderSearch recomputes results from the term, so returning to search after
// the cached ids were cleared still shows them.
func renderSearch(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	data := SearchData{
		Term:    cur.Search.Term,
		ShowAll: cur.Search.ShowAll,
		Results: []models.DiseaseSummary{},
	}

	if strings.TrimSpace(cur.Search.Term) != "" {
		results, err := r.diseases.Search(ctx, cur.Search.Term)
		if err != nil {
			return nil, false, err
		}
		data.Results = results
	}

	if cur.Search.ShowAll {
		all, err := r.diseases.List(ctx)
		if err != nil {
			return nil, false, err
		}
		data.All = all
	}

	ids := make([]int64, 0, len(data.Results))
	for _, d := range data.Results {
		ids = append(ids, d.ID)
	}
	cur.Search.ResultIDs = ids
	return data, true, nil
}

// targetID reads the pointer the page depends on
func targetID(cur *navigation.Cursor) (int64, bool) {
	kind := cur.Page.Kind()
	if cur.Page.NeedsEditTarget() {
		return cur.EditTarget(kind)
	}
	return cur.Selection(kind)
}

func renderDisease(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	id, ok := targetID(cur)
	if !ok {
		return nil, false, nil
	}
	d, err := r.diseases.Get(ctx, id)
	if err != nil || d == nil {
		return nil, false, err
	}
	return d, true, nil
}

func renderNotices(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	notices, err := r.notices.List(ctx)
	if err != nil {
		return nil, false, err
	}
	return notices, true, nil
}

func renderNotice(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	id, ok := targetID(cur)
	if !ok {
		return nil, false, nil
	}
	n, err := r.notices.Get(ctx, id)
	if err != nil || n == nil {
		return nil, false, err
	}
	return n, true, nil
}

func renderProtocols(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	protocols, err := r.protocols.List(ctx, cur.ProtocolCategory)
	if err != nil {
		return nil, false, err
	}
	category := cur.ProtocolCategory
	if !models.ValidCategories[category] {
		category = ""
	}
	return ProtocolsData{
		Category:   category,
		Categories: models.ProtocolCategories,
		Protocols:  protocols,
	}, true, nil
}

func renderProtocol(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	id, ok := targetID(cur)
	if !ok {
		return nil, false, nil
	}
	p, err := r.protocols.Get(ctx, id)
	if err != nil || p == nil {
		return nil, false, err
	}
	return p, true, nil
}

func renderProtocolForm(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	return FormData{Categories: models.ProtocolCategories}, true, nil
}

func renderAdmin(ctx context.Context, r *Renderer, cur *navigation.Cursor) (interface{}, bool, error) {
	users, err := r.admin.ListUsers(ctx)
	if err != nil {
		return nil, false, err
	}
	counts, err := r.admin.Counts(ctx)
	if err != nil {
		return nil, false, err
	}
	return AdminData{Users: users, Counts: counts}, true, nil
}

package navigation

// Page identifies one screen of the application
type Page string

const (
	PageWelcome        Page = "welcome"
	PageLogin          Page = "login"
	PageHome           Page = "home"
	PageSearch         Page = "search"
	PageDetail         Page = "detail"
	PageCreateDisease  Page = "create_disease"
	PageEditDisease    Page = "edit_disease"
	PageNotices        Page = "notices"
	PageNoticeDetail   Page = "notice_detail"
	PageCreateNotice   Page = "create_notice"
	PageEditNotice     Page = "edit_notice"
	PageProtocols      Page = "protocols"
	PageProtocolDetail Page = "protocol_detail"
	PageCreateProtocol Page = "create_protocol"
	PageEditProtocol   Page = "edit_protocol"
	PageAdmin          Page = "admin"
)

// EntityKind identifies the type of entity a pointer or delete token refers to
type EntityKind string

const (
	KindDisease  EntityKind = "disease"
	KindNotice   EntityKind = "notice"
	KindProtocol EntityKind = "protocol"
	// KindUser only appears in delete tokens issued from the admin console
	KindUser EntityKind = "user"
)

// pointer describes which cursor pointer a page reads
type pointer int

const (
	pointerNone pointer = iota
	pointerSelection
	pointerEdit
)

type pageSpec struct {
	kind    EntityKind
	pointer pointer
	public  bool
	admin   bool
	// pointers of these kinds are cleared when the page is entered
	clears []EntityKind
}

var pageSpecs = map[Page]pageSpec{
	PageWelcome:        {public: true},
	PageLogin:          {public: true},
	PageHome:           {},
	PageSearch:         {kind: KindDisease, clears: []EntityKind{KindDisease}},
	PageDetail:         {kind: KindDisease, pointer: pointerSelection},
	PageCreateDisease:  {kind: KindDisease},
	PageEditDisease:    {kind: KindDisease, pointer: pointerEdit},
	PageNotices:        {kind: KindNotice, clears: []EntityKind{KindNotice}},
	PageNoticeDetail:   {kind: KindNotice, pointer: pointerSelection},
	PageCreateNotice:   {kind: KindNotice},
	PageEditNotice:     {kind: KindNotice, pointer: pointerEdit},
	PageProtocols:      {kind: KindProtocol, clears: []EntityKind{KindProtocol}},
	PageProtocolDetail: {kind: KindProtocol, pointer: pointerSelection},
	PageCreateProtocol: {kind: KindProtocol},
	PageEditProtocol:   {kind: KindProtocol, pointer: pointerEdit},
	PageAdmin:          {kind: KindUser, admin: true},
}

var listPages = map[EntityKind]Page{
	KindDisease:  PageSearch,
	KindNotice:   PageNotices,
	KindProtocol: PageProtocols,
	KindUser:     PageAdmin,
}

var entityKinds = map[EntityKind]bool{
	KindDisease:  true,
	KindNotice:   true,
	KindProtocol: true,
	KindUser:     true,
}

// ParsePage converts a query or form value into a known Page
func ParsePage(s string) (Page, bool) {
	p := Page(s)
	_, ok := pageSpecs[p]
	return p, ok
}

// ParseKind converts a query or form value into a known EntityKind
func ParseKind(s string) (EntityKind, bool) {
	k := EntityKind(s)
	return k, entityKinds[k]
}

// Valid reports whether p is one of the known pages
func (p Page) Valid() bool {
	_, ok := pageSpecs[p]
	return ok
}

// Public reports whether p can be shown to anonymous visitors
func (p Page) Public() bool {
	return pageSpecs[p].public
}

// AdminOnly reports whether p is restricted to administrators
func (p Page) AdminOnly() bool {
	return pageSpecs[p].admin
}

// Kind returns the entity kind the page is about, if any
func (p Page) Kind() EntityKind {
	return pageSpecs[p].kind
}

// NeedsSelection reports whether the page renders the selected entity of its kind
func (p Page) NeedsSelection() bool {
	return pageSpecs[p].pointer == pointerSelection
}

// NeedsEditTarget reports whether the page edits the edit target of its kind
func (p Page) NeedsEditTarget() bool {
	return pageSpecs[p].pointer == pointerEdit
}

// ListPage returns the list page for an entity kind
func ListPage(kind EntityKind) Page {
	if p, ok := listPages[kind]; ok {
		return p
	}
	return PageHome
}

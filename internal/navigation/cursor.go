package navigation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"
)

// MaxHistory bounds the back stack
const MaxHistory = 10

// MaxTermLength bounds the search term, in characters, so the encoded cursor fits in a cookie
const MaxTermLength = 100

// DeleteToken identifies the entity instance a delete confirmation is armed for
type DeleteToken struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

// SearchState is the disease search of the current browser.
// Term and ShowAll behave like query parameters and survive navigation.
// ResultIDs is the result set of the last render; it is never serialized
// and is dropped whenever search is re-entered.
type SearchState struct {
	Term      string  `json:"term,omitempty"`
	ShowAll   bool    `json:"show_all,omitempty"`
	ResultIDs []int64 `json:"-"`
}

// Cursor is the navigation position of one browser: current page, selection
// and edit pointers per entity kind, back history and ephemeral flags.
// It performs no I/O.
type Cursor struct {
	Page             Page                 `json:"page"`
	Selected         map[EntityKind]int64 `json:"selected,omitempty"`
	Editing          map[EntityKind]int64 `json:"editing,omitempty"`
	History          []Page               `json:"history,omitempty"`
	Armed            *DeleteToken         `json:"armed,omitempty"`
	Search           SearchState          `json:"search"`
	ProtocolCategory string               `json:"protocol_category,omitempty"`
}

// NewCursor returns the initial anonymous cursor
func NewCursor() *Cursor {
	return &Cursor{
		Page:     PageWelcome,
		Selected: make(map[EntityKind]int64),
		Editing:  make(map[EntityKind]int64),
	}
}

// SetPage replaces the current page without touching history
func (c *Cursor) SetPage(p Page) {
	c.Page = p
}

// PushHistory appends p unless it equals the last entry, keeping the newest MaxHistory entries
func (c *Cursor) PushHistory(p Page) {
	if n := len(c.History); n > 0 && c.History[n-1] == p {
		return
	}
	c.History = append(c.History, p)
	if len(c.History) > MaxHistory {
		c.History = append([]Page(nil), c.History[len(c.History)-MaxHistory:]...)
	}
}

// PopHistory removes and returns the last entry.
// With one entry or none there is nothing to go back to and the history is left alone.
func (c *Cursor) PopHistory() (Page, bool) {
	n := len(c.History)
	if n <= 1 {
		return "", false
	}
	p := c.History[n-1]
	c.History = c.History[:n-1]
	return p, true
}

// Select sets the viewed entity of a kind
func (c *Cursor) Select(kind EntityKind, id int64) {
	if c.Selected == nil {
		c.Selected = make(map[EntityKind]int64)
	}
	c.Selected[kind] = id
}

// Selection returns the viewed entity of a kind
func (c *Cursor) Selection(kind EntityKind) (int64, bool) {
	id, ok := c.Selected[kind]
	return id, ok
}

// ClearSelection drops the viewed entity of a kind
func (c *Cursor) ClearSelection(kind EntityKind) {
	delete(c.Selected, kind)
}

// SetEditTarget sets the entity being edited for a kind
func (c *Cursor) SetEditTarget(kind EntityKind, id int64) {
	if c.Editing == nil {
		c.Editing = make(map[EntityKind]int64)
	}
	c.Editing[kind] = id
}

// EditTarget returns the entity being edited for a kind
func (c *Cursor) EditTarget(kind EntityKind) (int64, bool) {
	id, ok := c.Editing[kind]
	return id, ok
}

// ClearEditTarget drops the entity being edited for a kind
func (c *Cursor) ClearEditTarget(kind EntityKind) {
	delete(c.Editing, kind)
}

// ArmDelete arms the confirmation for token, replacing any other armed token
func (c *Cursor) ArmDelete(token DeleteToken) {
	t := token
	c.Armed = &t
}

// IsArmed reports whether the confirmation is armed for exactly this token
func (c *Cursor) IsArmed(token DeleteToken) bool {
	return c.Armed != nil && *c.Armed == token
}

// Disarm clears the armed token if it matches
func (c *Cursor) Disarm(token DeleteToken) {
	if c.IsArmed(token) {
		c.Armed = nil
	}
}

// DisarmAll clears whichever token is armed
func (c *Cursor) DisarmAll() {
	c.Armed = nil
}

// Reset returns the cursor to its initial anonymous state
func (c *Cursor) Reset() {
	*c = *NewCursor()
}

// Clone returns a deep copy
func (c *Cursor) Clone() *Cursor {
	out := *c
	out.Selected = make(map[EntityKind]int64, len(c.Selected))
	for k, v := range c.Selected {
		out.Selected[k] = v
	}
	out.Editing = make(map[EntityKind]int64, len(c.Editing))
	for k, v := range c.Editing {
		out.Editing[k] = v
	}
	out.History = append([]Page(nil), c.History...)
	out.Search.ResultIDs = append([]int64(nil), c.Search.ResultIDs...)
	if c.Armed != nil {
		t := *c.Armed
		out.Armed = &t
	}
	return &out
}

// Encode serializes the full per-browser state, armed token included
func (c *Cursor) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Snapshot serializes the durable part of the cursor for the session store.
// An armed delete confirmation never outlives the browser that armed it.
func (c *Cursor) Snapshot() ([]byte, error) {
	durable := c.Clone()
	durable.Armed = nil
	return json.Marshal(durable)
}

// Restore decodes a snapshot or encoded cursor. Unknown pages fall back to home
// and unknown entity kinds are dropped.
func Restore(data []byte) (*Cursor, error) {
	c := NewCursor()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if !c.Page.Valid() {
		c.Page = PageHome
	}
	if c.Selected == nil {
		c.Selected = make(map[EntityKind]int64)
	}
	if c.Editing == nil {
		c.Editing = make(map[EntityKind]int64)
	}
	for k := range c.Selected {
		if !entityKinds[k] {
			delete(c.Selected, k)
		}
	}
	for k := range c.Editing {
		if !entityKinds[k] {
			delete(c.Editing, k)
		}
	}
	history := c.History[:0]
	for _, p := range c.History {
		if p.Valid() {
			history = append(history, p)
		}
	}
	c.History = history
	if len(c.History) > MaxHistory {
		c.History = c.History[len(c.History)-MaxHistory:]
	}
	return c, nil
}

// URLState is the part of the cursor mirrored in the address bar
type URLState struct {
	Page Page
	IDs  map[EntityKind]int64
	Term string
	// HasTerm distinguishes an explicit empty q= from an absent one
	HasTerm  bool
	Category string
}

// URL returns the canonical query string of the cursor, e.g. ?page=detail&disease=7
func (c *Cursor) URL() string {
	v := url.Values{}
	v.Set("page", string(c.Page))
	kind := c.Page.Kind()
	switch {
	case c.Page.NeedsSelection():
		if id, ok := c.Selected[kind]; ok {
			v.Set(string(kind), strconv.FormatInt(id, 10))
		}
	case c.Page.NeedsEditTarget():
		if id, ok := c.Editing[kind]; ok {
			v.Set(string(kind), strconv.FormatInt(id, 10))
		}
	case c.Page == PageSearch && c.Search.Term != "":
		v.Set("q", c.Search.Term)
	case c.Page == PageProtocols && c.ProtocolCategory != "":
		v.Set("category", c.ProtocolCategory)
	}
	return "?" + v.Encode()
}

// ParseURLState reads page, entity ids and search term from query values.
// Malformed ids and over-long terms are ignored.
func ParseURLState(q url.Values) URLState {
	s := URLState{IDs: make(map[EntityKind]int64)}
	if p, ok := ParsePage(q.Get("page")); ok {
		s.Page = p
	}
	for _, kind := range []EntityKind{KindDisease, KindNotice, KindProtocol} {
		raw := q.Get(string(kind))
		if raw == "" {
			continue
		}
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			s.IDs[kind] = id
		}
	}
	if _, ok := q["q"]; ok && utf8.RuneCountInString(q.Get("q")) <= MaxTermLength {
		s.Term = q.Get("q")
		s.HasTerm = true
	}
	s.Category = q.Get("category")
	return s
}

package shop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/shopbot/core/telegram/state"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/settings"
)

const (
	adminID int64 = 1001
	userID  int64 = 2002
)

type harness struct {
	t        *testing.T
	shop     *Shop
	svc      *catalog.Service
	sessions state.Store
	path     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	svc, err := catalog.NewService(context.Background(), catalog.NewJSONStore(path))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	admins := AdminCheckerFunc(func(_ context.Context, id settings.Identifier) bool {
		return id == settings.IDFromInt(adminID)
	})
	sessions := state.NewMemoryStore(0)
	return &harness{t: t, shop: New(svc, admins, sessions, nil), svc: svc, sessions: sessions, path: path}
}

func (h *harness) dispatch(ev Event) Reply {
	h.t.Helper()
	r, err := h.shop.Dispatch(context.Background(), ev)
	if err != nil {
		h.t.Fatalf("dispatch %+v: %v", ev, err)
	}
	return r
}

func (h *harness) state(sender int64) state.State {
	h.t.Helper()
	s, err := h.sessions.Get(context.Background(), sender)
	if err != nil {
		h.t.Fatalf("session: %v", err)
	}
	return s.State
}

func (h *harness) file() []byte {
	h.t.Helper()
	raw, err := os.ReadFile(h.path)
	if err != nil {
		h.t.Fatalf("read catalog: %v", err)
	}
	return raw
}

func callback(sender int64, kind ActionKind, id string) Event {
	return Event{Kind: EventCallback, SenderID: sender, Action: NewAction(kind, id)}
}

func message(sender int64, text string) Event {
	return Event{Kind: EventText, SenderID: sender, Text: text}
}

func command(sender int64, cmd string) Event {
	return Event{Kind: EventCommand, SenderID: sender, Command: cmd}
}

func media(sender int64, t catalog.MediaType, fileID string) Event {
	return Event{Kind: EventMedia, SenderID: sender, Media: &catalog.Media{Type: t, FileID: fileID}}
}

func TestMultiStepProductEntry(t *testing.T) {
	h := newHarness(t)
	before := len(h.svc.Snapshot().Products)

	h.dispatch(callback(adminID, ActionNewProduct, ""))
	if got := h.state(adminID); got != StateAwaitingName {
		t.Fatalf("state = %q, want awaiting_name", got)
	}
	h.dispatch(message(adminID, "Widget"))
	if got := h.state(adminID); got != StateAwaitingPrice {
		t.Fatalf("state = %q, want awaiting_price", got)
	}
	h.dispatch(message(adminID, "9.99"))
	if got := h.state(adminID); got != StateAwaitingCategory {
		t.Fatalf("state = %q, want awaiting_category", got)
	}
	r := h.dispatch(message(adminID, "Tools"))
	if !strings.Contains(r.Text, "Widget") {
		t.Fatalf("reply = %q", r.Text)
	}

	products := h.svc.Snapshot().Products
	if len(products) != before+1 {
		t.Fatalf("products = %d, want %d", len(products), before+1)
	}
	p := products[len(products)-1]
	if p.Name != "Widget" || p.Price != 9.99 || p.Category != "Tools" {
		t.Fatalf("product = %+v", p)
	}
	if got := h.state(adminID); got != state.StateIdle {
		t.Fatalf("cursor not cleared: %q", got)
	}
}

func TestInvalidPriceKeepsStep(t *testing.T) {
	h := newHarness(t)
	h.dispatch(callback(adminID, ActionNewProduct, ""))
	h.dispatch(message(adminID, "Widget"))

	for _, bad := range []string{"abc", "-3", "NaN"} {
		r := h.dispatch(message(adminID, bad))
		if !strings.Contains(r.Text, textInvalidNumber) {
			t.Fatalf("price %q: reply = %q", bad, r.Text)
		}
		if got := h.state(adminID); got != StateAwaitingPrice {
			t.Fatalf("price %q: state = %q", bad, got)
		}
	}
	h.dispatch(message(adminID, "12,50"))
	h.dispatch(message(adminID, "Tools"))
	if p := h.svc.Snapshot().Products[0]; p.Price != 12.5 {
		t.Fatalf("price = %v, want 12.5", p.Price)
	}
}

func TestCategoryPickerCommitsDraft(t *testing.T) {
	h := newHarness(t)
	cat, err := h.svc.AddCategory(context.Background(), "Garden")
	if err != nil {
		t.Fatalf("add category: %v", err)
	}

	h.dispatch(callback(adminID, ActionNewProduct, ""))
	h.dispatch(message(adminID, "Rake"))
	r := h.dispatch(message(adminID, "4"))
	if len(r.Keyboard) != 2 || r.Keyboard[0][0].Action != NewAction(ActionNewProductCategory, cat.ID) {
		t.Fatalf("picker keyboard = %+v", r.Keyboard)
	}
	h.dispatch(callback(adminID, ActionNewProductCategory, cat.ID))

	snap := h.svc.Snapshot()
	if len(snap.Products) != 1 || snap.Products[0].Category != "Garden" {
		t.Fatalf("products = %+v", snap.Products)
	}
	if len(snap.Categories) != 1 {
		t.Fatalf("picker must not create categories: %+v", snap.Categories)
	}
	if got := h.state(adminID); got != state.StateIdle {
		t.Fatalf("state = %q", got)
	}
}

func TestMediaAttachedDuringDraft(t *testing.T) {
	h := newHarness(t)
	h.dispatch(callback(adminID, ActionNewProduct, ""))
	h.dispatch(media(adminID, catalog.MediaPhoto, "photo-1"))
	h.dispatch(message(adminID, "Widget"))
	h.dispatch(media(adminID, catalog.MediaVideo, "video-1"))
	h.dispatch(message(adminID, "1"))
	h.dispatch(message(adminID, "Tools"))

	p := h.svc.Snapshot().Products[0]
	if len(p.Media) != 2 || p.Media[0].FileID != "photo-1" || p.Media[1].Type != catalog.MediaVideo {
		t.Fatalf("media = %+v", p.Media)
	}
}

// slowSessions widens the read-modify-write window of every session update.
type slowSessions struct {
	state.Store
	delay time.Duration
}

func (s slowSessions) Get(ctx context.Context, userID int64) (state.Session, error) {
	sess, err := s.Store.Get(ctx, userID)
	time.Sleep(s.delay)
	return sess, err
}

func TestConcurrentAlbumKeepsEveryItem(t *testing.T) {
	h := newHarness(t)
	h.sessions = slowSessions{Store: h.sessions, delay: 2 * time.Millisecond}
	h.shop = New(h.svc, h.shop.admin.admins, h.sessions, nil)

	h.dispatch(callback(adminID, ActionNewProduct, ""))
	h.dispatch(message(adminID, "Widget"))

	const album = 5
	var wg sync.WaitGroup
	for i := 0; i < album; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := h.shop.Dispatch(context.Background(), media(adminID, catalog.MediaPhoto, fmt.Sprintf("photo-%d", i))); err != nil {
				t.Errorf("media %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	h.dispatch(message(adminID, "1"))
	h.dispatch(message(adminID, "Tools"))

	p := h.svc.Snapshot().Products[0]
	if len(p.Media) != album {
		t.Fatalf("media = %d items, want %d: %+v", len(p.Media), album, p.Media)
	}
	seen := map[string]bool{}
	for _, m := range p.Media {
		seen[m.FileID] = true
	}
	if len(seen) != album {
		t.Fatalf("duplicate media: %+v", p.Media)
	}
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, int64) (func(), error) {
	return nil, errors.New("redis down")
}

func TestLockFailureIsReported(t *testing.T) {
	h := newHarness(t)
	s := New(h.svc, h.shop.admin.admins, h.sessions, failingLocker{})
	r, err := s.Dispatch(context.Background(), callback(adminID, ActionNewProduct, ""))
	if err == nil || r.Text != textInternalError {
		t.Fatalf("reply = %q err = %v", r.Text, err)
	}
	if got := h.state(adminID); got != state.StateIdle {
		t.Fatalf("state = %q, flow started without the lock", got)
	}
}

func TestAdminMediaFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, _ := h.svc.AddProduct(ctx, catalog.ProductDraft{Name: "Widget", Price: 1, Category: "Tools"})

	h.dispatch(callback(adminID, ActionAdminMedia, p.ID))
	if got := h.state(adminID); got != StateAwaitingMedia {
		t.Fatalf("state = %q", got)
	}
	h.dispatch(media(adminID, catalog.MediaPhoto, "cover"))
	if got := h.state(adminID); got != state.StateIdle {
		t.Fatalf("state = %q after media", got)
	}
	got, _ := h.svc.Product(p.ID)
	if len(got.Media) != 1 || got.Media[0].FileID != "cover" {
		t.Fatalf("media = %+v", got.Media)
	}

	// Text while waiting for media cancels the flow.
	h.dispatch(callback(adminID, ActionAdminMedia, p.ID))
	r := h.dispatch(message(adminID, "oops"))
	if !strings.Contains(r.Text, "cancelled") || h.state(adminID) != state.StateIdle {
		t.Fatalf("reply = %q state = %q", r.Text, h.state(adminID))
	}
}

func TestCommandsAndCallbacksCancelOpenFlow(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		ev   Event
	}{
		{name: "start", ev: command(adminID, CommandStart)},
		{name: "admin", ev: command(adminID, CommandAdmin)},
		{name: "cancel", ev: command(adminID, CommandCancel)},
		{name: "admin cancel", ev: callback(adminID, ActionAdminCancel, "")},
		{name: "admin menu", ev: callback(adminID, ActionAdminMenu, "")},
		{name: "browse", ev: callback(adminID, ActionShop, "")},
	}
	for _, tc := range cases {
		h.dispatch(callback(adminID, ActionNewProduct, ""))
		h.dispatch(message(adminID, "Half entered"))
		h.dispatch(tc.ev)
		if got := h.state(adminID); got != state.StateIdle {
			t.Fatalf("%s: state = %q, want idle", tc.name, got)
		}
	}
	if n := len(h.svc.Snapshot().Products); n != 0 {
		t.Fatalf("cancelled drafts were committed: %d", n)
	}
	if r := h.dispatch(command(adminID, CommandCancel)); r.Text != "Nothing to cancel." {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestAdminProductPagingThroughDispatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3*AdminPageSize; i++ {
		p, err := h.svc.AddProduct(ctx, catalog.ProductDraft{Name: fmt.Sprintf("Widget %02d", i), Price: 1, Category: "Tools"})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, p.ID)
	}

	r := h.dispatch(callback(adminID, ActionAdminProducts, "1"))
	if !strings.Contains(r.Text, "2/3") || r.Keyboard[0][0].Action.ID != ids[AdminPageSize] {
		t.Fatalf("page 2 reply = %q first = %+v", r.Text, r.Keyboard[0][0].Action)
	}

	// Deleting from a later page keeps the admin on that page.
	r = h.dispatch(callback(adminID, ActionDeleteProduct, ids[2*AdminPageSize+1]))
	if !strings.Contains(r.Text, "3/3") {
		t.Fatalf("after delete reply = %q", r.Text)
	}

	// A committed product is shown on the page it landed on.
	h.dispatch(callback(adminID, ActionNewProduct, ""))
	h.dispatch(message(adminID, "Gadget"))
	h.dispatch(message(adminID, "2"))
	r = h.dispatch(message(adminID, "Tools"))
	if !strings.Contains(r.Text, "Gadget") || !strings.Contains(r.Text, "3/3") {
		t.Fatalf("after add reply = %q", r.Text)
	}
}

func TestAdminGatingLeavesCatalogUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cat, _ := h.svc.AddCategory(ctx, "Empty")
	p, _ := h.svc.AddProduct(ctx, catalog.ProductDraft{Name: "Widget", Price: 1, Category: "Tools"})
	before := h.file()

	events := []Event{
		command(userID, CommandAdmin),
		callback(userID, ActionAdminMenu, ""),
		callback(userID, ActionAdminCategories, ""),
		callback(userID, ActionAdminNewCategory, ""),
		message(userID, "Hacked"),
		callback(userID, ActionDeleteCategory, cat.ID),
		callback(userID, ActionAdminProducts, ""),
		callback(userID, ActionNewProduct, ""),
		message(userID, "Evil"),
		message(userID, "0"),
		callback(userID, ActionNewProductCategory, cat.ID),
		callback(userID, ActionAdminMedia, p.ID),
		media(userID, catalog.MediaPhoto, "x"),
		callback(userID, ActionDeleteProduct, p.ID),
		callback(userID, ActionAdminCancel, ""),
		{Kind: EventCallback, SenderID: userID, Action: ParseAction("admin_bogus", "")},
	}
	for _, ev := range events {
		r := h.dispatch(ev)
		if ev.Kind == EventCallback || ev.Command == CommandAdmin {
			if r.Text != textPermissionDenied {
				t.Fatalf("event %+v: reply = %q, want permission denied", ev, r.Text)
			}
		}
		if !bytes.Equal(before, h.file()) {
			t.Fatalf("event %+v changed catalog.json", ev)
		}
		if got := h.state(userID); got != state.StateIdle {
			t.Fatalf("event %+v opened a session: %q", ev, got)
		}
	}
}

func TestDeleteCategoryRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, _ := h.svc.AddProduct(ctx, catalog.ProductDraft{Name: "Widget", Price: 1, Category: "Tools"})
	tools, _ := h.svc.Snapshot().CategoryByName("Tools")

	r := h.dispatch(callback(adminID, ActionDeleteCategory, tools.ID))
	if !strings.Contains(r.Text, "still has products") {
		t.Fatalf("reply = %q", r.Text)
	}
	h.dispatch(callback(adminID, ActionDeleteProduct, p.ID))
	h.dispatch(callback(adminID, ActionDeleteCategory, tools.ID))
	if snap := h.svc.Snapshot(); len(snap.Categories) != 0 || len(snap.Products) != 0 {
		t.Fatalf("catalog = %+v", snap)
	}
}

func TestAddCategoryFlow(t *testing.T) {
	h := newHarness(t)
	h.dispatch(callback(adminID, ActionAdminNewCategory, ""))
	h.dispatch(message(adminID, "Tools"))
	if got := h.state(adminID); got != state.StateIdle {
		t.Fatalf("state = %q", got)
	}

	h.dispatch(callback(adminID, ActionAdminNewCategory, ""))
	r := h.dispatch(message(adminID, "tools"))
	if !strings.Contains(r.Text, "already exists") || h.state(adminID) != StateAwaitingCategoryName {
		t.Fatalf("duplicate: reply = %q state = %q", r.Text, h.state(adminID))
	}
	if n := len(h.svc.Categories()); n != 1 {
		t.Fatalf("categories = %d", n)
	}
}

func TestUserBrowse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if r := h.dispatch(command(userID, CommandStart)); !strings.Contains(r.Text, "empty") || len(r.Keyboard) != 0 {
		t.Fatalf("empty shop reply = %+v", r)
	}

	p, _ := h.svc.AddProduct(ctx, catalog.ProductDraft{
		Name: "Widget_2", Price: 9.9, Category: "Tools",
		Media: []catalog.Media{{Type: catalog.MediaPhoto, FileID: "cover"}},
	})
	tools, _ := h.svc.Snapshot().CategoryByName("Tools")

	r := h.dispatch(command(userID, CommandStart))
	if len(r.Keyboard) != 1 || r.Keyboard[0][0].Action != NewAction(ActionCategory, tools.ID) {
		t.Fatalf("categories keyboard = %+v", r.Keyboard)
	}

	r = h.dispatch(callback(userID, ActionCategory, tools.ID))
	if !r.Edit || r.Keyboard[0][0].Action != NewAction(ActionProduct, p.ID) {
		t.Fatalf("category reply = %+v", r)
	}

	r = h.dispatch(callback(userID, ActionProduct, p.ID))
	if !strings.Contains(r.Text, "Widget\\_2") || !strings.Contains(r.Text, "9.90") {
		t.Fatalf("product text = %q", r.Text)
	}
	if r.Media == nil || r.Media.FileID != "cover" || r.Edit {
		t.Fatalf("product media = %+v edit = %v", r.Media, r.Edit)
	}
	if r.Keyboard[0][0].Action != NewAction(ActionCategory, tools.ID) {
		t.Fatalf("back button = %+v", r.Keyboard)
	}

	for _, ev := range []Event{
		callback(userID, ActionProduct, "missing"),
		callback(userID, ActionCategory, "missing"),
		{Kind: EventCallback, SenderID: userID, Action: ParseToken("bogus|1")},
	} {
		if r := h.dispatch(ev); r.Text != textNotUnderstood {
			t.Fatalf("event %+v: reply = %q", ev, r.Text)
		}
	}
}

func TestFreeTextWithoutFlow(t *testing.T) {
	h := newHarness(t)
	if r := h.dispatch(message(userID, "hello")); !strings.HasPrefix(r.Text, textNotUnderstood) {
		t.Fatalf("user reply = %q", r.Text)
	}
	if r := h.dispatch(message(adminID, "hello")); !strings.Contains(r.Text, "/admin") {
		t.Fatalf("admin reply = %q", r.Text)
	}
	if r := h.dispatch(media(userID, catalog.MediaPhoto, "x")); !r.Empty() {
		t.Fatalf("user media should be ignored, got %+v", r)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (catalog.Catalog, error) { return catalog.Empty(), nil }
func (failingStore) Save(context.Context, catalog.Catalog) error   { return errors.New("disk full") }

func TestStorageFailureIsReported(t *testing.T) {
	svc, err := catalog.NewService(context.Background(), failingStore{})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	admins := AdminCheckerFunc(func(context.Context, settings.Identifier) bool { return true })
	s := New(svc, admins, state.NewMemoryStore(0), nil)
	ctx := context.Background()

	if _, err := s.Dispatch(ctx, callback(adminID, ActionAdminNewCategory, "")); err != nil {
		t.Fatalf("start flow: %v", err)
	}
	r, err := s.Dispatch(ctx, message(adminID, "Tools"))
	if err == nil || r.Text != textInternalError {
		t.Fatalf("reply = %q err = %v", r.Text, err)
	}
}

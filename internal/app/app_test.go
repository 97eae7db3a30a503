package app

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopbot/core/bootstrap"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/core/telegram/state"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/shop"

	tele "gopkg.in/telebot.v4"
)

const (
	adminID int64 = 1001
	userID  int64 = 2002
)

type sent struct {
	what any
	opts *tele.SendOptions
	edit bool
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	update    tele.Update
	sender    *tele.User
	store     map[string]any
	sent      []sent
	responded int
}

func newFake(sender int64) *fakeContext {
	return &fakeContext{sender: &tele.User{ID: sender}, store: map[string]any{}}
}

func (f *fakeContext) withText(text string) *fakeContext {
	f.update.Message = &tele.Message{Text: text, Sender: f.sender}
	return f
}

func (f *fakeContext) withCallback(data string) *fakeContext {
	f.update.Callback = &tele.Callback{Data: data, Sender: f.sender, Message: &tele.Message{ID: 5}}
	return f
}

func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Chat() *tele.Chat { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }
func (f *fakeContext) Get(key string) any { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }

func (f *fakeContext) Message() *tele.Message {
	if f.update.Callback != nil {
		return f.update.Callback.Message
	}
	return f.update.Message
}

func (f *fakeContext) Text() string {
	if m := f.update.Message; m != nil {
		return m.Text
	}
	return ""
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, sent{what: what, opts: sendOptions(opts)})
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.sent = append(f.sent, sent{what: what, opts: sendOptions(opts), edit: f.update.Callback != nil})
	return nil
}

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func sendOptions(opts []any) *tele.SendOptions {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so
		}
	}
	return nil
}

func (f *fakeContext) last(t *testing.T) sent {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	doc := `{"admin_ids": [1001], "token": "123:abc"}`
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := &coreconfig.Config{Shop: coreconfig.ShopConfig{
		ConfigFile:  cfgPath,
		CatalogFile: filepath.Join(dir, "catalog.json"),
	}}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	a, err := assemble(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAssembleResolvesTokenFromDocument(t *testing.T) {
	a := newTestApp(t)
	if a.cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", a.cfg.Telegram.Token)
	}
	if _, err := os.Stat(a.cfg.Shop.CatalogFile); err != nil {
		t.Fatalf("catalog document not created: %v", err)
	}
}

func TestAssembleFailsWithoutToken(t *testing.T) {
	dir := t.TempDir()
	cfg := &coreconfig.Config{Shop: coreconfig.ShopConfig{
		ConfigFile:  filepath.Join(dir, "config.json"),
		CatalogFile: filepath.Join(dir, "catalog.json"),
	}}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if _, err := assemble(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected missing token error")
	}
	if _, err := os.Stat(cfg.Shop.ConfigFile); err != nil {
		t.Fatalf("default config document not written: %v", err)
	}
}

func TestStartCommandSendsCategoryKeyboard(t *testing.T) {
	a := newTestApp(t)
	cat, err := a.catalog.AddCategory(context.Background(), "Tools")
	if err != nil {
		t.Fatalf("add category: %v", err)
	}

	c := newFake(userID).withText("/start")
	if err := a.handle(commandEvent(shop.CommandStart))(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	msg := c.last(t)
	if msg.edit {
		t.Fatal("command reply must be a new message")
	}
	if msg.opts == nil || msg.opts.ParseMode != tele.ModeMarkdown {
		t.Fatalf("unexpected options: %+v", msg.opts)
	}
	kb := msg.opts.ReplyMarkup
	if kb == nil || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("unexpected markup: %+v", kb)
	}
	b := kb.InlineKeyboard[0][0]
	if b.Text != "Tools" || b.Unique != "cat" || b.Data != cat.ID {
		t.Fatalf("unexpected button: %+v", b)
	}
}

func TestCallbackEditsAndMediaSendsPhoto(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	cat, err := a.catalog.AddCategory(ctx, "Tools")
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	plain, err := a.catalog.AddProduct(ctx, catalog.ProductDraft{Name: "Saw", Price: 12, Category: "Tools"})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	pic, err := a.catalog.AddProduct(ctx, catalog.ProductDraft{
		Name: "Drill", Price: 99.5, Category: "Tools",
		Media: []catalog.Media{{Type: catalog.MediaPhoto, FileID: "AgAD-photo"}},
	})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}

	c := newFake(userID).withCallback("\fcat|" + cat.ID)
	if err := a.handle(callbackEvent)(c); err != nil {
		t.Fatalf("category: %v", err)
	}
	if msg := c.last(t); !msg.edit || !strings.Contains(msg.what.(string), "Tools") {
		t.Fatalf("expected edited category view, got %+v", msg)
	}

	c = newFake(userID).withCallback("\fprod|" + plain.ID)
	if err := a.handle(callbackEvent)(c); err != nil {
		t.Fatalf("product: %v", err)
	}
	if msg := c.last(t); !msg.edit {
		t.Fatalf("product without media should edit, got %+v", msg)
	}

	c = newFake(userID).withCallback("\fprod|" + pic.ID)
	if err := a.handle(callbackEvent)(c); err != nil {
		t.Fatalf("product: %v", err)
	}
	msg := c.last(t)
	photo, ok := msg.what.(*tele.Photo)
	if !ok {
		t.Fatalf("expected photo, got %T", msg.what)
	}
	if photo.FileID != "AgAD-photo" || !strings.Contains(photo.Caption, "Drill") {
		t.Fatalf("unexpected photo: %+v", photo)
	}
	if msg.edit {
		t.Fatal("media replies are sent, not edited")
	}
}

func TestUnknownCallbackIsNotUnderstood(t *testing.T) {
	a := newTestApp(t)
	c := newFake(userID).withCallback("\fbogus|x")
	if err := a.handle(callbackEvent)(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := c.last(t).what.(string); got != textNotUnderstood {
		t.Fatalf("reply = %q", got)
	}
}

func TestAdminCommandIsGated(t *testing.T) {
	a := newTestApp(t)
	reg, err := a.registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	var admin tele.HandlerFunc
	for _, r := range router.CommandRoutes(reg, router.CommandRouteOptions{IsAdmin: a.isAdmin, OnAdminReject: a.rejectAdmin}) {
		if r.Endpoint == shop.CommandAdmin {
			admin = r.Handler
		}
	}
	if admin == nil {
		t.Fatal("admin route missing")
	}

	c := newFake(userID).withText("/admin")
	if err := admin(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := c.last(t).what; got != textPermissionDenied {
		t.Fatalf("non-admin reply = %q", got)
	}

	c = newFake(adminID).withText("/admin")
	if err := admin(c); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := c.last(t).what.(string); !strings.Contains(got, "Admin") {
		t.Fatalf("admin reply = %q", got)
	}
}

func TestAdminFlowThroughTelegramHandlers(t *testing.T) {
	a := newTestApp(t)
	steps := []struct {
		name string
		c    *fakeContext
		h    eventFunc
	}{
		{name: "new product", c: newFake(adminID).withCallback("\fnew_prod"), h: callbackEvent},
		{name: "name", c: newFake(adminID).withText("Widget"), h: textEvent},
		{name: "price", c: newFake(adminID).withText("9.99"), h: textEvent},
		{name: "category", c: newFake(adminID).withText("Gadgets"), h: textEvent},
	}
	for _, s := range steps {
		if err := a.handle(s.h)(s.c); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if len(s.c.sent) == 0 {
			t.Fatalf("%s: no reply", s.name)
		}
	}

	snap := a.catalog.Snapshot()
	if len(snap.Products) != 1 {
		t.Fatalf("products = %d, want 1", len(snap.Products))
	}
	p := snap.Products[0]
	if p.Name != "Widget" || p.Price != 9.99 || p.Category != "Gadgets" {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestMediaEvent(t *testing.T) {
	c := newFake(adminID)
	c.update.Message = &tele.Message{Video: &tele.Video{File: tele.File{FileID: "BAAD-video"}}}
	ev, ok := mediaEvent(c)
	if !ok || ev.Media == nil || ev.Media.Type != catalog.MediaVideo || ev.Media.FileID != "BAAD-video" {
		t.Fatalf("unexpected event: %+v ok=%v", ev, ok)
	}

	c.update.Message = &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc"}}}
	if _, ok := mediaEvent(c); ok {
		t.Fatal("documents are not media")
	}
}

func TestRegistryWiring(t *testing.T) {
	a := newTestApp(t)
	reg, err := a.registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	menu := reg.MenuCommands()
	if len(menu) != 2 || menu[0].Text != "start" || menu[1].Text != "cancel" {
		t.Fatalf("menu commands = %+v", menu)
	}
	if got := len(reg.CallbackKeys()); got != len(shop.Uniques()) {
		t.Fatalf("callbacks = %d, want %d", got, len(shop.Uniques()))
	}

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/admin", "/cancel", tele.OnCallback, tele.OnText, tele.OnPhoto, tele.OnVideo, tele.OnDocument} {
		if !endpoints[want] {
			t.Fatalf("missing route %v", want)
		}
	}
}

func TestMarkupForEmptyKeyboard(t *testing.T) {
	if markupFor(nil) != nil {
		t.Fatal("expected no markup")
	}
}

type closeCounter struct{ closed int }

func (c *closeCounter) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("no database in tests")
}
func (c *closeCounter) Driver() driver.Driver { return nil }
func (c *closeCounter) Close() error          { c.closed++; return nil }

func TestAssembleFailureClosesOnlyItsOwnConnections(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"admin_ids": [1001], "token": "123:abc"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	catalogPath := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(catalogPath, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cfg := &coreconfig.Config{
		Shop:    coreconfig.ShopConfig{ConfigFile: cfgPath, CatalogFile: catalogPath},
		Session: coreconfig.SessionConfig{Backend: coreconfig.SessionRedis, Redis: coreconfig.RedisConfig{Addr: "redis:6379"}},
	}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	redisCloses := 0
	prev := dialRedis
	dialRedis = func(context.Context, state.RedisOptions) (state.RedisClient, func() error, error) {
		return nil, func() error { redisCloses++; return nil }, nil
	}
	t.Cleanup(func() { dialRedis = prev })

	conn := &closeCounter{}
	infra := &bootstrap.Result{DB: sqlx.NewDb(sql.OpenDB(conn), "postgres")}

	if _, err := assemble(context.Background(), cfg, infra); err == nil {
		t.Fatal("expected malformed catalog error")
	}
	if redisCloses != 1 {
		t.Fatalf("redis closed %d times, want 1", redisCloses)
	}
	if conn.closed != 0 {
		t.Fatalf("assemble closed the database it does not own (%d)", conn.closed)
	}

	// The caller releases infra exactly once.
	if err := infra.Close(); err != nil {
		t.Fatalf("infra close: %v", err)
	}
	if conn.closed != 1 {
		t.Fatalf("database closed %d times, want 1", conn.closed)
	}
}

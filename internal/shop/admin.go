package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"
	"github.com/m3rciful/shopbot/core/telegram/state"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Entry flow steps of the admin session cursor.
const (
	StateAwaitingCategoryName state.State = "awaiting_category_name"
	StateAwaitingName         state.State = "awaiting_name"
	StateAwaitingPrice        state.State = "awaiting_price"
	StateAwaitingCategory     state.State = "awaiting_category"
	StateAwaitingMedia        state.State = "awaiting_media"
)

const (
	keyName    = "name"
	keyPrice   = "price"
	keyMedia   = "media"
	keyProduct = "product"
)

const component = "service.shop"

// AdminRouter gates every catalog mutation and drives the per-admin entry flow.
type AdminRouter struct {
	catalog  *catalog.Service
	admins   AdminChecker
	sessions state.Store
}

// NewAdminRouter wires the admin router.
func NewAdminRouter(cat *catalog.Service, admins AdminChecker, sessions state.Store) *AdminRouter {
	return &AdminRouter{catalog: cat, admins: admins, sessions: sessions}
}

// authorize re-checks the live admin list on every call.
func (a *AdminRouter) authorize(ctx context.Context, ev Event, action string) error {
	if a.admins != nil && a.admins.IsAdmin(ctx, ev.Sender()) {
		return nil
	}
	metrics.IncAdminDenied(action)
	logger.Warn(ctx, component, "admin.denied",
		slog.Int64("user_id", ev.SenderID),
		slog.String("action", action),
		slog.String("kind", ev.Kind.String()),
	)
	return ErrPermissionDenied
}

// AdminMenu renders the admin actions for the /admin command.
func (a *AdminRouter) AdminMenu(ctx context.Context, ev Event) (Reply, error) {
	if err := a.authorize(ctx, ev, "admin_menu"); err != nil {
		return Reply{}, err
	}
	if _, err := a.Cancel(ctx, ev.SenderID, "admin_menu"); err != nil {
		return Reply{}, err
	}
	return RenderAdminMenu(a.catalog.Snapshot()), nil
}

// HandleCallback executes an admin callback. Every callback except picking the
// draft's category closes an open entry flow first.
func (a *AdminRouter) HandleCallback(ctx context.Context, ev Event) (Reply, error) {
	act := ev.Action
	if err := a.authorize(ctx, ev, act.String()); err != nil {
		return Reply{}, err
	}
	if act.Kind == ActionNewProductCategory {
		return a.pickCategory(ctx, ev)
	}
	cancelled, err := a.Cancel(ctx, ev.SenderID, act.String())
	if err != nil {
		return Reply{}, err
	}

	switch act.Kind {
	case ActionAdminMenu:
		return edit(RenderAdminMenu(a.catalog.Snapshot())), nil

	case ActionAdminCancel:
		notice := "Nothing to cancel."
		if cancelled {
			notice = "Cancelled."
		}
		return edit(withNotice(notice, RenderAdminMenu(a.catalog.Snapshot()))), nil

	case ActionAdminCategories:
		return edit(RenderAdminCategories(a.catalog.Snapshot())), nil

	case ActionAdminNewCategory:
		if err := a.sessions.Save(ctx, ev.SenderID, state.Idle().Step(StateAwaitingCategoryName)); err != nil {
			return Reply{}, err
		}
		return prompt("Send the name of the new category."), nil

	case ActionDeleteCategory:
		cat, err := a.catalog.DeleteCategory(ctx, act.ID)
		var notice string
		switch {
		case err == nil:
			notice = fmt.Sprintf("Category %q deleted.", cat.Name)
		case errors.Is(err, catalog.ErrNotFound):
			notice = "Category not found."
		case errors.Is(err, catalog.ErrCategoryNotEmpty):
			notice = "This category still has products. Delete them first."
		default:
			return Reply{}, err
		}
		return edit(withNotice(notice, RenderAdminCategories(a.catalog.Snapshot()))), nil

	case ActionAdminProducts:
		page, _ := strconv.Atoi(act.ID)
		return edit(RenderAdminProducts(a.catalog.Snapshot(), page)), nil

	case ActionNewProduct:
		if err := a.sessions.Save(ctx, ev.SenderID, state.Idle().Step(StateAwaitingName)); err != nil {
			return Reply{}, err
		}
		return prompt("Send the product name. Photos and videos sent during entry are attached to the product."), nil

	case ActionAdminMedia:
		p, err := a.catalog.Product(act.ID)
		if errors.Is(err, catalog.ErrNotFound) {
			return edit(withNotice("Product not found.", RenderAdminProducts(a.catalog.Snapshot(), 0))), nil
		}
		if err != nil {
			return Reply{}, err
		}
		next := state.Idle().Step(StateAwaitingMedia).With(keyProduct, p.ID)
		if err := a.sessions.Save(ctx, ev.SenderID, next); err != nil {
			return Reply{}, err
		}
		return Reply{
			Text:     fmt.Sprintf("Send a photo or video for *%s*.", md(p.Name)),
			Keyboard: CancelKeyboard(),
		}, nil

	case ActionDeleteProduct:
		page := adminPageOf(a.catalog.Snapshot(), act.ID)
		p, err := a.catalog.DeleteProduct(ctx, act.ID)
		var notice string
		switch {
		case err == nil:
			notice = fmt.Sprintf("Product %q deleted.", p.Name)
		case errors.Is(err, catalog.ErrNotFound):
			notice = "Product not found."
		default:
			return Reply{}, err
		}
		return edit(withNotice(notice, RenderAdminProducts(a.catalog.Snapshot(), page))), nil
	}
	return Reply{}, fmt.Errorf("admin callback %q: %w", act, ErrUnknownAction)
}

// HandleMessage interprets free text as the next field of the open entry flow.
func (a *AdminRouter) HandleMessage(ctx context.Context, ev Event) (Reply, error) {
	sess, err := a.sessions.Get(ctx, ev.SenderID)
	if err != nil {
		return Reply{}, err
	}
	if !sess.InProgress() {
		return a.noFlow(ctx, ev), nil
	}
	if err := a.authorize(ctx, ev, string(sess.State)); err != nil {
		_ = a.sessions.Clear(ctx, ev.SenderID)
		return Reply{}, err
	}

	text := strings.TrimSpace(ev.Text)
	switch sess.State {
	case StateAwaitingCategoryName:
		cat, err := a.catalog.AddCategory(ctx, text)
		switch {
		case err == nil:
		case errors.Is(err, catalog.ErrInvalidInput):
			return prompt("The name cannot be empty. Send the category name."), nil
		case errors.Is(err, catalog.ErrDuplicate):
			return prompt(fmt.Sprintf("Category %q already exists. Send another name.", text)), nil
		default:
			return Reply{}, err
		}
		if err := a.sessions.Clear(ctx, ev.SenderID); err != nil {
			return Reply{}, err
		}
		return withNotice(fmt.Sprintf("Category %q added.", cat.Name), RenderAdminCategories(a.catalog.Snapshot())), nil

	case StateAwaitingName:
		if text == "" {
			return prompt("The name cannot be empty. Send the product name."), nil
		}
		next := sess.With(keyName, text).Step(StateAwaitingPrice)
		if err := a.sessions.Save(ctx, ev.SenderID, next); err != nil {
			return Reply{}, err
		}
		return prompt("Send the price, for example 9.99."), nil

	case StateAwaitingPrice:
		price, err := ParsePrice(text)
		if err != nil {
			return prompt(textInvalidNumber), nil
		}
		next := sess.With(keyPrice, strconv.FormatFloat(price, 'f', -1, 64)).Step(StateAwaitingCategory)
		if err := a.sessions.Save(ctx, ev.SenderID, next); err != nil {
			return Reply{}, err
		}
		return Reply{
			Text:     md("Send the category name or pick one below. A new name creates the category."),
			Keyboard: CategoryPickerKeyboard(a.catalog.Categories()),
		}, nil

	case StateAwaitingCategory:
		return a.commit(ctx, ev, sess, text)
	}

	// awaiting_media or a step this version does not know: cancel.
	if _, err := a.Cancel(ctx, ev.SenderID, "unexpected_text"); err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:     md("Expected a photo or video. Entry cancelled."),
		Keyboard: AdminMenuKeyboard(),
	}, nil
}

// HandleMedia attaches a photo or video to the draft or to the product picked via admin_media.
func (a *AdminRouter) HandleMedia(ctx context.Context, ev Event) (Reply, error) {
	if ev.Media == nil {
		return Reply{}, fmt.Errorf("media event without media: %w", ErrUnknownAction)
	}
	sess, err := a.sessions.Get(ctx, ev.SenderID)
	if err != nil {
		return Reply{}, err
	}
	if !sess.InProgress() {
		if a.admins != nil && a.admins.IsAdmin(ctx, ev.Sender()) {
			return plain("No entry in progress. Open /admin and choose a product to attach media to."), nil
		}
		return Reply{}, nil
	}
	if err := a.authorize(ctx, ev, string(sess.State)); err != nil {
		_ = a.sessions.Clear(ctx, ev.SenderID)
		return Reply{}, err
	}

	switch sess.State {
	case StateAwaitingName, StateAwaitingPrice, StateAwaitingCategory:
		media, err := draftMedia(sess)
		if err != nil {
			return Reply{}, err
		}
		media = append(media, *ev.Media)
		raw, err := json.Marshal(media)
		if err != nil {
			return Reply{}, err
		}
		if err := a.sessions.Save(ctx, ev.SenderID, sess.With(keyMedia, string(raw))); err != nil {
			return Reply{}, err
		}
		r := prompt(fmt.Sprintf("Media added (%d). %s", len(media), stepHint(sess.State)))
		if sess.State == StateAwaitingCategory {
			r.Keyboard = CategoryPickerKeyboard(a.catalog.Categories())
		}
		return r, nil

	case StateAwaitingMedia:
		productID, _ := sess.Value(keyProduct)
		if err := a.sessions.Clear(ctx, ev.SenderID); err != nil {
			return Reply{}, err
		}
		p, err := a.catalog.AttachMedia(ctx, productID, *ev.Media)
		if errors.Is(err, catalog.ErrNotFound) {
			return withNotice("Product not found.", RenderAdminProducts(a.catalog.Snapshot(), 0)), nil
		}
		if err != nil {
			return Reply{}, err
		}
		notice := fmt.Sprintf("%s attached to %q.", mediaLabel(ev.Media.Type), p.Name)
		snap := a.catalog.Snapshot()
		return withNotice(notice, RenderAdminProducts(snap, adminPageOf(snap, p.ID))), nil
	}

	if _, err := a.Cancel(ctx, ev.SenderID, "unexpected_media"); err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:     md("Expected a category name. Entry cancelled."),
		Keyboard: AdminMenuKeyboard(),
	}, nil
}

// Cancel closes the sender's open entry flow. It reports whether one was open.
func (a *AdminRouter) Cancel(ctx context.Context, senderID int64, reason string) (bool, error) {
	sess, err := a.sessions.Get(ctx, senderID)
	if err != nil {
		return false, err
	}
	if !sess.InProgress() {
		return false, nil
	}
	if err := a.sessions.Clear(ctx, senderID); err != nil {
		return false, err
	}
	logger.Info(ctx, component, "flow.cancelled",
		slog.Int64("user_id", senderID),
		slog.String("state", string(sess.State)),
		slog.String("reason", reason),
	)
	return true, nil
}

func (a *AdminRouter) pickCategory(ctx context.Context, ev Event) (Reply, error) {
	sess, err := a.sessions.Get(ctx, ev.SenderID)
	if err != nil {
		return Reply{}, err
	}
	if sess.State != StateAwaitingCategory {
		return withNotice("No product entry in progress.", RenderAdminMenu(a.catalog.Snapshot())), nil
	}
	cat, err := a.catalog.Category(ev.Action.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return Reply{
			Text:     md("That category no longer exists. Send a name or pick another one."),
			Keyboard: CategoryPickerKeyboard(a.catalog.Categories()),
		}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	return a.commit(ctx, ev, sess, cat.Name)
}

// commit turns the draft into a product and clears the cursor.
func (a *AdminRouter) commit(ctx context.Context, ev Event, sess state.Session, category string) (Reply, error) {
	name, _ := sess.Value(keyName)
	rawPrice, _ := sess.Value(keyPrice)
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return Reply{}, fmt.Errorf("draft price %q: %w", rawPrice, err)
	}
	media, err := draftMedia(sess)
	if err != nil {
		return Reply{}, err
	}

	p, err := a.catalog.AddProduct(ctx, catalog.ProductDraft{
		Name:     name,
		Price:    price,
		Category: category,
		Media:    media,
	})
	if errors.Is(err, catalog.ErrInvalidInput) {
		return Reply{
			Text:     md("The category name cannot be empty. Send a name or pick one below."),
			Keyboard: CategoryPickerKeyboard(a.catalog.Categories()),
		}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	if err := a.sessions.Clear(ctx, ev.SenderID); err != nil {
		return Reply{}, err
	}
	notice := fmt.Sprintf("Product %q added to %q.", p.Name, p.Category)
	snap := a.catalog.Snapshot()
	return withNotice(notice, RenderAdminProducts(snap, adminPageOf(snap, p.ID))), nil
}

func (a *AdminRouter) noFlow(ctx context.Context, ev Event) Reply {
	if a.admins != nil && a.admins.IsAdmin(ctx, ev.Sender()) {
		return plain("No entry in progress. Use /admin to manage the catalog or /start to browse the shop.")
	}
	return plain(textNotUnderstood + " Use /start to browse the shop.")
}

// ParsePrice accepts a finite, non-negative decimal. A comma works as the decimal separator.
func ParsePrice(text string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if s == "" {
		return 0, errors.New("empty price")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("price %q out of range", text)
	}
	return v, nil
}

func draftMedia(sess state.Session) ([]catalog.Media, error) {
	raw, ok := sess.Value(keyMedia)
	if !ok || raw == "" {
		return nil, nil
	}
	var media []catalog.Media
	if err := json.Unmarshal([]byte(raw), &media); err != nil {
		return nil, fmt.Errorf("draft media: %w", err)
	}
	return media, nil
}

func stepHint(st state.State) string {
	switch st {
	case StateAwaitingName:
		return "Now send the product name."
	case StateAwaitingPrice:
		return "Now send the price."
	default:
		return "Now send or pick the category."
	}
}

func mediaLabel(t catalog.MediaType) string {
	if t == catalog.MediaVideo {
		return "Video"
	}
	return "Photo"
}

func edit(r Reply) Reply {
	r.Edit = true
	return r
}

package shop

import "strings"

// ActionKind enumerates every callback the bot emits.
type ActionKind int

const (
	ActionUnknown ActionKind = iota

	// Browse actions, available to everyone.
	ActionShop
	ActionCategory
	ActionProduct

	// Admin actions.
	ActionAdminMenu
	ActionAdminCategories
	ActionAdminNewCategory
	ActionDeleteCategory
	ActionAdminProducts
	ActionNewProduct
	ActionNewProductCategory
	ActionAdminMedia
	ActionAdminCancel
	ActionDeleteProduct
)

type actionSpec struct {
	unique  string
	needsID bool
	// optionalID accepts a payload without requiring one, e.g. a page number.
	optionalID bool
	adminOnly  bool
}

var actionSpecs = map[ActionKind]actionSpec{
	ActionShop:               {unique: "shop"},
	ActionCategory:           {unique: "cat", needsID: true},
	ActionProduct:            {unique: "prod", needsID: true},
	ActionAdminMenu:          {unique: "admin", adminOnly: true},
	ActionAdminCategories:    {unique: "admin_cats", adminOnly: true},
	ActionAdminNewCategory:   {unique: "admin_new_cat", adminOnly: true},
	ActionDeleteCategory:     {unique: "del_cat", needsID: true, adminOnly: true},
	ActionAdminProducts:      {unique: "admin_prods", optionalID: true, adminOnly: true},
	ActionNewProduct:         {unique: "new_prod", adminOnly: true},
	ActionNewProductCategory: {unique: "new_prod_cat", needsID: true, adminOnly: true},
	ActionAdminMedia:         {unique: "admin_media", needsID: true, adminOnly: true},
	ActionAdminCancel:        {unique: "admin_cancel", adminOnly: true},
	ActionDeleteProduct:      {unique: "del_prod", needsID: true, adminOnly: true},
}

var actionsByUnique = func() map[string]ActionKind {
	m := make(map[string]ActionKind, len(actionSpecs))
	for kind, spec := range actionSpecs {
		m[spec.unique] = kind
	}
	return m
}()

// adminPrefixes claim callback tokens for the admin router, including ones it does not know.
var adminPrefixes = []string{"admin", "del_", "new_prod"}

// Action is a parsed callback token.
type Action struct {
	Kind ActionKind
	ID   string
	// raw keeps the unique part of unrecognised tokens for routing and logs.
	raw string
}

// NewAction builds an action of kind with an optional entity id.
func NewAction(kind ActionKind, id string) Action {
	return Action{Kind: kind, ID: id}
}

// ParseAction converts telebot's (unique, payload) pair. Tokens with an unknown
// unique, or with a missing or unexpected id, yield ActionUnknown.
func ParseAction(unique, payload string) Action {
	unique = strings.TrimSpace(unique)
	payload = strings.TrimSpace(payload)
	kind, ok := actionsByUnique[unique]
	if !ok {
		return Action{Kind: ActionUnknown, raw: unique}
	}
	spec := actionSpecs[kind]
	if payload == "" && spec.needsID || payload != "" && !spec.needsID && !spec.optionalID {
		return Action{Kind: ActionUnknown, raw: unique}
	}
	return Action{Kind: kind, ID: payload}
}

// ParseToken parses the "unique|payload" form returned by Token.
func ParseToken(token string) Action {
	token = strings.TrimPrefix(token, "\f")
	unique, payload, _ := strings.Cut(token, "|")
	return ParseAction(unique, payload)
}

// Unique is the telebot button unique for this action.
func (a Action) Unique() string {
	if spec, ok := actionSpecs[a.Kind]; ok {
		return spec.unique
	}
	return a.raw
}

// Token renders "unique" or "unique|id".
func (a Action) Token() string {
	if a.ID == "" {
		return a.Unique()
	}
	return a.Unique() + "|" + a.ID
}

// AdminOnly reports whether the admin router owns the token.
func (a Action) AdminOnly() bool {
	return IsAdminToken(a.Unique())
}

// String is used in logs and metrics labels.
func (a Action) String() string {
	if u := a.Unique(); u != "" {
		return u
	}
	return "unknown"
}

// IsAdminToken classifies a callback unique by its reserved prefix.
func IsAdminToken(unique string) bool {
	for _, p := range adminPrefixes {
		if strings.HasPrefix(unique, p) {
			return true
		}
	}
	return false
}

// Uniques lists every known callback unique, for route registration.
func Uniques() []string {
	out := make([]string, 0, len(actionSpecs))
	for kind := ActionShop; kind <= ActionDeleteProduct; kind++ {
		out = append(out, actionSpecs[kind].unique)
	}
	return out
}

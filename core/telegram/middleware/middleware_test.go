package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	sender *tele.User
	store  map[string]any
	sent   []any
}

func newFake(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		store:  map[string]any{},
		update: tele.Update{ID: 1, Message: &tele.Message{Text: "hi"}},
	}
}

func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Sender() *tele.User  { return f.sender }
func (f *fakeContext) Chat() *tele.Chat    { return nil }
func (f *fakeContext) Text() string        { return "hi" }
func (f *fakeContext) Get(key string) any  { return f.store[key] }
func (f *fakeContext) Set(key string, v any) {
	f.store[key] = v
}

func (f *fakeContext) Send(what any, _ ...any) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestAdminOnlyMiddleware(t *testing.T) {
	admins := map[int64]bool{1: true}
	checker := func(_ context.Context, id int64) bool { return admins[id] }

	cases := []struct {
		name     string
		user     int64
		checker  AdminChecker
		wantNext bool
	}{
		{name: "admin", user: 1, checker: checker, wantNext: true},
		{name: "stranger", user: 2, checker: checker},
		{name: "no checker", user: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var called, rejected bool
			h := AdminOnlyMiddleware(AdminOptions{
				IsAdmin: tc.checker,
				Action:  "admin",
				OnReject: func(tele.Context) error {
					rejected = true
					return nil
				},
			})(func(tele.Context) error {
				called = true
				return nil
			})
			if err := h(newFake(tc.user)); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if called != tc.wantNext || rejected == tc.wantNext {
				t.Fatalf("called=%v rejected=%v, want next=%v", called, rejected, tc.wantNext)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	var limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		OnLimited: func(tele.Context) error {
			limited++
			return nil
		},
	})
	var calls int
	h := mw(func(tele.Context) error {
		calls++
		return nil
	})

	for i := 0; i < 3; i++ {
		_ = h(newFake(7))
	}
	_ = h(newFake(8))

	if calls != 2 || limited != 2 {
		t.Fatalf("calls=%d limited=%d, want 2 and 2", calls, limited)
	}
}

func TestRateLimitExclusions(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	var calls int
	h := mw(func(tele.Context) error {
		calls++
		return nil
	})
	for i := 0; i < 3; i++ {
		_ = h(newFake(7))
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestMessageMetricsMiddlewareCounts(t *testing.T) {
	c := newFake(1)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("one"); err != nil {
			return err
		}
		return c.Send("two", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = (%d, %v), want (2, true)", msgs, kb)
	}
	if len(c.sent) != 2 {
		t.Fatalf("sent = %d", len(c.sent))
	}
}

func TestRecoverMiddlewareSwallowsPanics(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error {
		panic(errors.New("boom"))
	})
	if err := h(newFake(1)); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

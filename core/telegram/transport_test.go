package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/shopbot/core/config"

	tele "gopkg.in/telebot.v4"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func okResponse() *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"ok":true}`))}
}

func TestRetryTransport(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}

	cases := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "recovers", failures: 2, err: dialErr, wantCalls: 3},
		{name: "gives up", failures: 5, err: dialErr, wantCalls: 3, wantErr: true},
		{name: "permanent", failures: 5, err: errors.New("tls: bad certificate"), wantCalls: 1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			var bodies []string
			rt := &retryTransport{
				attempts: 3,
				backoff:  time.Millisecond,
				base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					calls++
					b, _ := io.ReadAll(r.Body)
					bodies = append(bodies, string(b))
					if calls <= tc.failures {
						return nil, tc.err
					}
					return okResponse(), nil
				}),
			}
			req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("chat_id=1"))
			resp, err := rt.RoundTrip(req)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if resp != nil {
				resp.Body.Close()
			}
			if calls != tc.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tc.wantCalls)
			}
			for i, b := range bodies {
				if b != "chat_id=1" {
					t.Fatalf("attempt %d body = %q", i+1, b)
				}
			}
		})
	}
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.LongPollTimeoutSeconds = 25
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	if !ok || lp.Timeout != 25*time.Second {
		t.Fatalf("long poller = %#v", newPoller(cfg))
	}

	cfg.Telegram.RunMode = "Webhook"
	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	cfg.Webhook.URL = "https://shop.example/hook"
	wh, ok := newPoller(cfg).(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://shop.example/hook" {
		t.Fatalf("webhook = %#v", newPoller(cfg))
	}
}

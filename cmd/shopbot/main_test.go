package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		out  string
	}{
		{name: "clean shutdown", code: 0},
		{name: "startup failure", err: fmt.Errorf("cmd: bootstrap: %w", errors.New("redis ping redis:6379: refused")), code: 1,
			out: "shopbot: cmd: bootstrap: redis ping redis:6379: refused\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := exitCode(&buf, tc.err); got != tc.code {
				t.Fatalf("code = %d, want %d", got, tc.code)
			}
			if buf.String() != tc.out {
				t.Fatalf("stderr = %q, want %q", buf.String(), tc.out)
			}
		})
	}
}

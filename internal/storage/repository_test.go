package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegister_PanicsOnBadInput(t *testing.T) {
	factory := func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil }

	tests := []struct {
		name string
		kind string
		f    Factory
	}{
		{name: "empty kind", kind: "", f: factory},
		{name: "nil factory", kind: "test-nil", f: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("Register(%q) did not panic", tt.kind)
				}
			}()
			Register(tt.kind, tt.f)
		})
	}
}

func TestNew_DispatchesToRegisteredFactory(t *testing.T) {
	wantErr := errors.New("boom")
	var gotDSN string
	Register("test-dispatch", func(ctx context.Context, cfg Config) (Repository, error) {
		gotDSN = cfg.DSN
		return nil, wantErr
	})

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate Register did not panic")
		}
	}()

	if _, err := New(context.Background(), Config{Kind: "test-dispatch", DSN: "x://y"}); !errors.Is(err, wantErr) {
		t.Fatalf("New() err=%v, want %v", err, wantErr)
	}
	if gotDSN != "x://y" {
		t.Fatalf("factory DSN=%q, want x://y", gotDSN)
	}
	Register("test-dispatch", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
}

func TestNew_RejectsUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("New(empty kind) err=nil, want error")
	}
	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("New(nope) err=%v, want unsupported kind error", err)
	}
}

package provider

import (
	"context"
	"errors"
	"testing"
)

func TestFakeProviderNotFoundIsTypedError(t *testing.T) {
	p := NewFakeProvider()
	_, err := p.GetBlockByNumber(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for unseeded block")
	}
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *provider.Error, got %T", err)
	}
	if perr.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", perr.Kind)
	}
	if perr.Retryable() {
		t.Fatal("not-found should not be retryable")
	}
}

func TestErrorRetryable(t *testing.T) {
	cases := []struct {
		kind      Kind
		retryable bool
	}{
		{KindRequest, true},
		{KindRateLimited, true},
		{KindNotFound, false},
		{KindDecode, false},
	}
	for _, c := range cases {
		e := newErr(c.kind, "test_method", nil)
		if e.Retryable() != c.retryable {
			t.Fatalf("kind %v: expected retryable=%v, got %v", c.kind, c.retryable, e.Retryable())
		}
	}
}

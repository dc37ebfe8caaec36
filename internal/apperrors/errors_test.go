package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	if !Is(ErrInsufficientStorage, KindInsufficientStorage) {
		t.Fatal("expected ErrInsufficientStorage to match its own kind")
	}
	if Is(ErrInsufficientStorage, KindUnsupportedArchive) {
		t.Fatal("did not expect ErrInsufficientStorage to match an unrelated kind")
	}
}

func TestIsMatchesThroughWrappedChain(t *testing.T) {
	wrapped := fmt.Errorf("submit failed: %w", Wrap(KindDownloadFailedOrAborted, "downloader reported error", errors.New("upstream 500")))
	if !Is(wrapped, KindDownloadFailedOrAborted) {
		t.Fatal("expected Is to see through fmt.Errorf %w wrapping")
	}
	if !errors.Is(wrapped, ErrDownloadFailedOrAborted) {
		t.Fatal("expected errors.Is(wrapped, sentinel) to match via the Is method")
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(ErrMKVSeekTooEarly)
	if !ok || kind != KindMKVSeekTooEarly {
		t.Fatalf("got kind=%q ok=%v, want %q true", kind, ok, KindMKVSeekTooEarly)
	}

	if _, ok := KindOf(errors.New("plain error")); ok {
		t.Fatal("expected KindOf to report false for a non-apperrors error")
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(KindResolutionFailed, "decode chain exhausted", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestWrapWithNilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(KindValidationRejected, "no reachable hosts", nil)
	if !Is(err, KindValidationRejected) {
		t.Fatal("expected Wrap(nil cause) to still carry its kind")
	}
}

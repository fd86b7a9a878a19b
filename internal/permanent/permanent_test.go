package permanent

import (
	"errors"
	"fmt"
	"testing"
)

func TestMarkAndIs(t *testing.T) {
	t.Parallel()

	root := errors.New("invalid character")
	marked := fmt.Errorf("load session: %w", Errorf("decode record: %w", root))
	if !Is(marked) {
		t.Fatalf("expected permanent marker through wrapping")
	}
	if !errors.Is(marked, root) {
		t.Fatalf("expected root cause to stay reachable")
	}
	if Is(root) || Is(nil) {
		t.Fatalf("unmarked errors must not be permanent")
	}
	if Mark(nil) != nil {
		t.Fatalf("Mark(nil) must return nil")
	}
}

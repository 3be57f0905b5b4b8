package config

import (
	"testing"
	"time"
)

func TestIntFallbackAndParse(t *testing.T) {
	if got, err := Int("SLOTPARK_TEST_INT", 7); err != nil || got != 7 {
		t.Fatalf("expected fallback 7, got %d err %v", got, err)
	}
	t.Setenv("SLOTPARK_TEST_INT", "42")
	if got, err := Int("SLOTPARK_TEST_INT", 7); err != nil || got != 42 {
		t.Fatalf("expected 42, got %d err %v", got, err)
	}
	t.Setenv("SLOTPARK_TEST_INT", "nope")
	if _, err := Int("SLOTPARK_TEST_INT", 7); err == nil {
		t.Fatal("expected error for non-integer value")
	}
}

func TestFloatParse(t *testing.T) {
	t.Setenv("SLOTPARK_TEST_FLOAT", "2.50")
	got, err := Float("SLOTPARK_TEST_FLOAT", 0)
	if err != nil || got != 2.5 {
		t.Fatalf("expected 2.5, got %v err %v", got, err)
	}
}

func TestListSplitsAndTrims(t *testing.T) {
	t.Setenv("SLOTPARK_TEST_LIST", " a, b ,,c ")
	got := List("SLOTPARK_TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected [a b c], got %v", got)
	}
	if got := List("SLOTPARK_TEST_LIST_UNSET", "x,y"); len(got) != 2 || got[0] != "x" {
		t.Fatalf("expected fallback [x y], got %v", got)
	}
	if got := List("SLOTPARK_TEST_LIST_UNSET", ""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestDurationParse(t *testing.T) {
	if got, err := Duration("SLOTPARK_TEST_DUR", time.Minute); err != nil || got != time.Minute {
		t.Fatalf("expected fallback 1m, got %v err %v", got, err)
	}
	t.Setenv("SLOTPARK_TEST_DUR", "90s")
	got, err := Duration("SLOTPARK_TEST_DUR", time.Minute)
	if err != nil || got != 90*time.Second {
		t.Fatalf("expected 90s, got %v err %v", got, err)
	}
	t.Setenv("SLOTPARK_TEST_DUR", "soon")
	if _, err := Duration("SLOTPARK_TEST_DUR", time.Minute); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

package api

import "testing"

func TestStateClone_Independent(t *testing.T) {
	s := NewState()
	s.AddMessage(Message{Role: "user", Content: "analyze 600519"})
	s.SetValue("ticker", "600519")
	s.SetMeta(MetaRunID, "run-1")

	c := s.Clone()
	c.AddMessage(Message{Role: "assistant", Name: "technical", Content: "bullish"})
	c.SetValue("ticker", "000001")
	c.SetValue("signal", "buy")
	c.SetMeta(MetaShowReasoning, true)

	if len(s.Messages) != 1 {
		t.Fatalf("original messages mutated: %d", len(s.Messages))
	}
	if v, _ := s.StringValue("ticker"); v != "600519" {
		t.Fatalf("original data mutated: %v", v)
	}
	if _, ok := s.Value("signal"); ok {
		t.Fatalf("clone write leaked into original")
	}
	if s.MetaBool(MetaShowReasoning) {
		t.Fatalf("clone metadata write leaked into original")
	}
	if c.RunID() != "run-1" {
		t.Fatalf("clone lost run id: %q", c.RunID())
	}
}

func TestStateClone_Nil(t *testing.T) {
	var s *State
	c := s.Clone()
	if c == nil || c.Data == nil || c.Metadata == nil {
		t.Fatalf("nil clone should produce an initialized state")
	}
}

func TestStateSetValue_NilMaps(t *testing.T) {
	var s State
	s.SetValue("k", 1)
	s.SetMeta("m", 2)

	if v, ok := s.Value("k"); !ok || v != 1 {
		t.Fatalf("SetValue on zero state: got %v, %v", v, ok)
	}
	if v, ok := s.Meta("m"); !ok || v != 2 {
		t.Fatalf("SetMeta on zero state: got %v, %v", v, ok)
	}
}

func TestStateStringValue_TypeMismatch(t *testing.T) {
	s := NewState()
	s.SetValue("n", 42)

	if _, ok := s.StringValue("n"); ok {
		t.Fatalf("expected non-string value to report false")
	}
	if _, ok := s.StringValue("missing"); ok {
		t.Fatalf("expected missing key to report false")
	}
}

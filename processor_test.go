package companioncore

import (
	"math"
	"testing"
)

// ══════════════════════════════════════════════
// Response Processor
// ══════════════════════════════════════════════

func TestSplitSegments_Fragmented(t *testing.T) {
	segs := SplitSegments("今天天气不错。我们出去走走吧！你觉得呢？", SplitFragmented)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %v", len(segs), segs)
	}
	if segs[0] != "今天天气不错。" || segs[2] != "你觉得呢？" {
		t.Fatalf("unexpected segments: %v", segs)
	}
}

func TestSplitSegments_SemicolonsSplit(t *testing.T) {
	segs := SplitSegments("想吃火锅；还是烧烤；都行", SplitFragmented)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %v", len(segs), segs)
	}
	if segs[0] != "想吃火锅；" || segs[2] != "都行" {
		t.Fatalf("unexpected segments: %v", segs)
	}

	segs = SplitSegments("maybe; maybe not", SplitFragmented)
	if len(segs) != 2 || segs[0] != "maybe;" {
		t.Fatalf("ASCII semicolon not honored: %v", segs)
	}
}

func TestSplitSegments_LatinTerminators(t *testing.T) {
	segs := SplitSegments("Nice! Really? Sure.", SplitFragmented)
	if len(segs) < 2 {
		t.Fatalf("Latin terminators not honored: %v", segs)
	}
}

func TestSplitSegments_TrailingTextKept(t *testing.T) {
	segs := SplitSegments("第一句。后面没有标点了", SplitFragmented)
	if len(segs) != 2 || segs[1] != "后面没有标点了" {
		t.Fatalf("trailing fragment lost: %v", segs)
	}
}

func TestSplitSegments_NoTerminatorsFallsBackWhole(t *testing.T) {
	draft := "一句没有终止符的话"
	segs := SplitSegments(draft, SplitFragmented)
	if len(segs) != 1 || segs[0] != draft {
		t.Fatalf("expected whole-draft fallback, got %v", segs)
	}
}

func TestSplitSegments_FragmentedNeverEmptyForNonEmptyDraft(t *testing.T) {
	drafts := []string{"。。。", "！", "一句话。", "   x   ", "\n\n好\n\n"}
	for _, d := range drafts {
		segs := SplitSegments(d, SplitFragmented)
		if len(segs) == 0 {
			t.Fatalf("draft %q produced zero segments", d)
		}
	}
}

func TestSplitSegments_NormalIsSingleSegment(t *testing.T) {
	draft := "完整的回复。有两句话！"
	segs := SplitSegments(draft, SplitNormal)
	if len(segs) != 1 || segs[0] != draft {
		t.Fatalf("normal strategy must emit the draft whole, got %v", segs)
	}
}

func TestSplitSegments_EmptyDraft(t *testing.T) {
	if segs := SplitSegments("", SplitFragmented); segs != nil {
		t.Fatalf("empty draft should yield no segments, got %v", segs)
	}
	if segs := SplitSegments("   ", SplitNormal); segs != nil {
		t.Fatalf("blank draft should yield no segments, got %v", segs)
	}
}

func TestSegmentDelay_AlwaysPositiveFinite(t *testing.T) {
	for _, mult := range []float64{1.0, 2.0, 0.5, 0, -1, -100} {
		d := SegmentDelay(mult)
		if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			t.Fatalf("SegmentDelay(%v) = %v, want strictly positive finite", mult, d)
		}
	}
	if SegmentDelay(0) != baseSegmentDelay {
		t.Fatal("zero multiplier must be treated as 1.0")
	}
	if SegmentDelay(2.0) != baseSegmentDelay/2 {
		t.Fatal("multiplier not applied")
	}
}

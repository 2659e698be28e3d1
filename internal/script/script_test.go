package script

import (
	"reflect"
	"testing"

	"github.com/shortreel/api/internal/model"
)

func TestParse_SpeakerLines(t *testing.T) {
	input := "Mia: Did you hear about the launch?\nLeo: I was there.\n\nMia: No way!"

	lines := Parse(input)

	want := []model.ScriptLine{
		{Speaker: "Mia", Text: "Did you hear about the launch?"},
		{Speaker: "Leo", Text: "I was there."},
		{Speaker: "Mia", Text: "No way!"},
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Parse mismatch:\ngot  %+v\nwant %+v", lines, want)
	}
}

func TestParse_NarrationWithoutSpeaker(t *testing.T) {
	lines := Parse("A quiet morning in the city.")

	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Speaker != "" {
		t.Errorf("expected empty speaker, got %q", lines[0].Speaker)
	}
	if lines[0].Text != "A quiet morning in the city." {
		t.Errorf("unexpected text: %q", lines[0].Text)
	}
}

func TestJoinParse_RoundTrip(t *testing.T) {
	original := []model.ScriptLine{
		{Speaker: "Mia", Text: "Three lines walk into a bar."},
		{Speaker: "Leo", Text: "And then?"},
		{Text: "Silence."},
	}

	got := Parse(Join(original))

	if !reflect.DeepEqual(got, original) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, original)
	}
}

func TestSpeakers_DistinctInOrder(t *testing.T) {
	lines := []model.ScriptLine{
		{Speaker: "Mia", Text: "a"},
		{Speaker: "Leo", Text: "b"},
		{Speaker: "Mia", Text: "c"},
	}

	got := Speakers(lines)
	want := []string{"Mia", "Leo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Speakers = %v, want %v", got, want)
	}
}

func TestSegments_Ordered(t *testing.T) {
	lines := Parse("Mia: one\nLeo: two")

	segments := Segments(lines)

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Errorf("segment %d has index %d", i, seg.Index)
		}
	}
	if segments[1].Speaker != "Leo" || segments[1].Text != "two" {
		t.Errorf("unexpected segment: %+v", segments[1])
	}
}

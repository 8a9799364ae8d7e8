package storyboard

import (
	"reflect"
	"testing"
)

func TestBuildBatches(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  []BatchRange
	}{
		{
			name: "45 scenes, batch 20", total: 45, size: 20,
			want: []BatchRange{{1, 20}, {21, 40}, {41, 45}},
		},
		{
			name: "exact multiple", total: 40, size: 20,
			want: []BatchRange{{1, 20}, {21, 40}},
		},
		{
			name: "single partial batch", total: 7, size: 20,
			want: []BatchRange{{1, 7}},
		},
		{
			name: "one scene", total: 1, size: 20,
			want: []BatchRange{{1, 1}},
		},
		{name: "zero total", total: 0, size: 20, want: nil},
		{name: "zero size", total: 10, size: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildBatches(tt.total, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildBatches(%d, %d) = %v, want %v", tt.total, tt.size, got, tt.want)
			}
		})
	}
}

func TestBuildBatchesCoverWithoutGaps(t *testing.T) {
	batches := BuildBatches(103, 20)

	next := 1
	for _, b := range batches {
		if b.Start != next {
			t.Fatalf("gap or overlap: batch starts at %d, expected %d", b.Start, next)
		}
		if b.Size() > 20 {
			t.Fatalf("batch [%d,%d] exceeds size limit", b.Start, b.End)
		}
		next = b.End + 1
	}
	if next != 104 {
		t.Fatalf("batches end at %d, expected 103", next-1)
	}
}

func TestResolveCharacterIDs(t *testing.T) {
	known := []KnownCharacter{
		{ID: 1, Name: "Mina"},
		{ID: 2, Name: "Detective Park"},
		{ID: 3, Name: "Joon"},
	}

	tests := []struct {
		name  string
		input []string
		want  []int64
	}{
		{"exact match", []string{"Mina"}, []int64{1}},
		{"case insensitive", []string{"MINA"}, []int64{1}},
		{"returned name contains known", []string{"young Mina in the rain"}, []int64{1}},
		{"known name contains returned", []string{"Park"}, []int64{2}},
		{"multiple resolved in order", []string{"Joon", "Mina"}, []int64{3, 1}},
		{"unresolvable dropped silently", []string{"Mina", "The Stranger"}, []int64{1}},
		{"duplicate resolution collapsed", []string{"Mina", "mina again"}, []int64{1}},
		{"empty name skipped", []string{"", "  ", "Joon"}, []int64{3}},
		{"nothing resolves", []string{"Ghost"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveCharacterIDs(tt.input, known)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveCharacterIDs(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReindexScenesOverwritesModelNumbering(t *testing.T) {
	// 모델이 번호를 잘못 세도 위치 기준으로 덮어쓴다
	scenes := []SceneDraft{
		{SequenceID: 99, Title: "a"},
		{SequenceID: 1, Title: "b"},
		{SequenceID: 50, Title: "c"},
	}

	got := ReindexScenes(scenes, BatchRange{Start: 21, End: 23})

	for i, want := range []int{21, 22, 23} {
		if got[i].SequenceID != want {
			t.Errorf("scene %d: sequence id = %d, want %d", i, got[i].SequenceID, want)
		}
	}
}

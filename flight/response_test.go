package flight

import (
	"errors"
	"testing"
)

func TestNew_InitialState(t *testing.T) {
	r := New(true)
	if !r.Dev() {
		t.Error("Dev() = false, want true")
	}
	if r.Phase() != PhaseReadID {
		t.Errorf("Phase() = %s, want %s", r.Phase(), PhaseReadID)
	}
	if r.Len() != 0 || len(r.Chunks()) != 0 {
		t.Error("new response has chunks")
	}
	if r.Clock() != 0 || r.Err() != nil || r.Fallbacks() != 0 {
		t.Error("new response has non-zero counters")
	}
	if err := r.Finish(); err != nil {
		t.Errorf("Finish() on empty stream = %v, want nil", err)
	}
}

func TestResponse_Clock(t *testing.T) {
	r := New(false)
	r.SetClock(5)
	feedAll(t, r, "1:\"a\"\n")

	r.SetClock(3) // ignored
	if r.Clock() != 5 {
		t.Errorf("Clock() = %d after lower SetClock, want 5", r.Clock())
	}
	r.Tick()
	feedAll(t, r, "2:\"b\"\n")

	chunks := r.Chunks()
	if chunks[0].Timestamp != 5 {
		t.Errorf("chunk[0].Timestamp = %d, want 5", chunks[0].Timestamp)
	}
	if chunks[1].Timestamp != 6 {
		t.Errorf("chunk[1].Timestamp = %d, want 6", chunks[1].Timestamp)
	}
}

func TestResponse_ClockStampedAtCompletion(t *testing.T) {
	r := New(false)
	feedAll(t, r, "1:Tpart")
	r.SetClock(9)
	feedAll(t, r, "ial\n")
	if got := r.Chunks()[0].Timestamp; got != 9 {
		t.Errorf("Timestamp = %d, want 9", got)
	}
}

func TestResponse_ChunksIsCopy(t *testing.T) {
	r := New(false)
	feedAll(t, r, "1:Ta\n")
	chunks := r.Chunks()
	chunks[0].Text = "mutated"
	if r.Chunks()[0].Text != "a" {
		t.Error("mutating Chunks() result changed the log")
	}
}

func TestResponse_ChunksSince(t *testing.T) {
	r := New(false)
	feedAll(t, r, "1:Ta\n2:Tb\n")
	seen := r.Len()
	feedAll(t, r, "3:Tc\n")

	fresh := r.ChunksSince(seen)
	if len(fresh) != 1 || fresh[0].ID != "3" {
		t.Errorf("ChunksSince(%d) = %+v, want chunk 3 only", seen, fresh)
	}
	if got := r.ChunksSince(r.Len()); got != nil {
		t.Errorf("ChunksSince(Len()) = %+v, want nil", got)
	}
	if got := r.ChunksSince(-1); len(got) != 3 {
		t.Errorf("ChunksSince(-1) returned %d chunks, want 3", len(got))
	}
}

func TestResponse_DuplicateIDs(t *testing.T) {
	r := New(false)
	feedAll(t, r, "1:Ta\n1:Tb\n")
	chunks := r.Chunks()
	if len(chunks) != 2 || chunks[0].Text != "a" || chunks[1].Text != "b" {
		t.Errorf("duplicate ids not preserved in order: %+v", chunks)
	}
}

func TestFinish_IncompleteRow(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantID       string
		wantPhase    Phase
		wantBuffered int
	}{
		{"mid id", "1a", "1a", PhaseReadID, 0},
		{"after colon", "2:", "2", PhaseReadTag, 0},
		{"held tag", "3:T", "3", PhaseReadTag, 1},
		{"mid length header", "4:A1", "4", PhaseReadTag, 0},
		{"mid delimited body", "5:Thel", "5", PhaseReadBodyByDelimiter, 3},
		{"mid length body", "6:o4,ab", "6", PhaseReadBodyByLength, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(false)
			feedAll(t, r, tt.input)
			err := r.Finish()
			if !errors.Is(err, ErrIncompleteRow) {
				t.Fatalf("Finish() = %v, want ErrIncompleteRow", err)
			}
			var incomplete *IncompleteRowError
			if !errors.As(err, &incomplete) {
				t.Fatalf("Finish() error is %T, want *IncompleteRowError", err)
			}
			if incomplete.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", incomplete.ID, tt.wantID)
			}
			if incomplete.Phase != tt.wantPhase {
				t.Errorf("Phase = %s, want %s", incomplete.Phase, tt.wantPhase)
			}
			if incomplete.Buffered != tt.wantBuffered {
				t.Errorf("Buffered = %d, want %d", incomplete.Buffered, tt.wantBuffered)
			}
			if IsFatal(err) {
				t.Error("incomplete row reported as fatal framing error")
			}
			if r.Len() != 0 {
				t.Errorf("Len() = %d, want 0", r.Len())
			}
		})
	}
}

func TestFinish_CompleteStream(t *testing.T) {
	r := New(false)
	feedAll(t, r, "1:Ta\n2:o1,x")
	if err := r.Finish(); err != nil {
		t.Errorf("Finish() = %v, want nil", err)
	}
}

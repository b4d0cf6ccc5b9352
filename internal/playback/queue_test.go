package playback

import "testing"

func TestQueue_IndexInvariantAfterNavigation(t *testing.T) {
	engine, _, _ := setupEngine(t)

	queue := testQueue("a", "b", "c")
	if err := engine.Play(queue[1], queue, 1); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	ops := []func() error{
		engine.Next,
		engine.Previous,
		func() error { return engine.PlayAtIndex(2) },
		engine.SkipToPrevious,
		engine.Next,
	}

	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("Operation %d failed: %v", i, err)
		}
		index := engine.CurrentIndex()
		if index < 0 || index >= len(queue) {
			t.Fatalf("Index %d out of range after operation %d", index, i)
		}
	}
}

func TestQueue_NextAtLastIndexRepeatNoneStops(t *testing.T) {
	engine, _, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[1], queue, 1)

	if err := engine.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if engine.State() != StateStopped {
		t.Errorf("Expected stopped, got %s", engine.State())
	}
	if engine.CurrentIndex() != 1 {
		t.Errorf("Index must stay unchanged at the end, got %d", engine.CurrentIndex())
	}
}

func TestQueue_NextAtLastIndexRepeatAllWraps(t *testing.T) {
	engine, player, _ := setupEngine(t)
	engine.SetRepeatMode(RepeatAll)

	queue := testQueue("a", "b")
	engine.Play(queue[1], queue, 1)

	if err := engine.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if engine.CurrentIndex() != 0 {
		t.Errorf("Expected wrap to index 0, got %d", engine.CurrentIndex())
	}
	if player.lastSource().Track.ID != "a" {
		t.Errorf("Expected first track, got %s", player.lastSource().Track.ID)
	}
}

func TestQueue_PreviousRestartsWhenPastThreshold(t *testing.T) {
	engine, player, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[1], queue, 1)

	player.position = 5

	if err := engine.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}

	if engine.CurrentIndex() != 1 {
		t.Errorf("Expected same track, got index %d", engine.CurrentIndex())
	}
	if player.position != 0 {
		t.Errorf("Expected position reset, got %f", player.position)
	}
}

func TestQueue_PreviousMovesBackEarlyInTrack(t *testing.T) {
	engine, player, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[1], queue, 1)

	player.position = 1

	if err := engine.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}

	if engine.CurrentIndex() != 0 {
		t.Errorf("Expected prior track, got index %d", engine.CurrentIndex())
	}
	if player.lastSource().Track.ID != "a" {
		t.Errorf("Expected track a, got %s", player.lastSource().Track.ID)
	}
}

func TestQueue_PreviousAtFirstIndexRepeatAllWraps(t *testing.T) {
	engine, player, _ := setupEngine(t)
	engine.SetRepeatMode(RepeatAll)

	queue := testQueue("a", "b", "c")
	engine.Play(queue[0], queue, 0)
	player.position = 1

	if err := engine.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}

	if engine.CurrentIndex() != 2 {
		t.Errorf("Expected wrap to last index, got %d", engine.CurrentIndex())
	}
}

func TestQueue_PreviousAtFirstIndexRestartsWithoutRepeat(t *testing.T) {
	engine, player, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[0], queue, 0)
	player.position = 1

	if err := engine.Previous(); err != nil {
		t.Fatalf("Previous failed: %v", err)
	}

	if engine.CurrentIndex() != 0 {
		t.Errorf("Expected first track restarted, got index %d", engine.CurrentIndex())
	}
	if player.lastSource().Track.ID != "a" {
		t.Errorf("Expected track a, got %s", player.lastSource().Track.ID)
	}
}

func TestQueue_SkipToPreviousAtStartIsNoOp(t *testing.T) {
	engine, player, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[0], queue, 0)

	loads := len(player.loaded)
	if err := engine.SkipToPrevious(); err != nil {
		t.Fatalf("SkipToPrevious failed: %v", err)
	}

	if len(player.loaded) != loads {
		t.Errorf("Expected no new load at the start of the queue, got %d", len(player.loaded)-loads)
	}
	if engine.CurrentIndex() != 0 {
		t.Errorf("Index must stay at 0, got %d", engine.CurrentIndex())
	}
	if engine.State() != StatePlaying {
		t.Errorf("Playback must continue undisturbed, got %s", engine.State())
	}
}

func TestQueue_SkipToPreviousAtStartRepeatAllWraps(t *testing.T) {
	engine, player, _ := setupEngine(t)
	engine.SetRepeatMode(RepeatAll)

	queue := testQueue("a", "b", "c")
	engine.Play(queue[0], queue, 0)

	if err := engine.SkipToPrevious(); err != nil {
		t.Fatalf("SkipToPrevious failed: %v", err)
	}

	if engine.CurrentIndex() != 2 {
		t.Errorf("Expected wrap to last index, got %d", engine.CurrentIndex())
	}
	if player.lastSource().Track.ID != "c" {
		t.Errorf("Expected last track, got %s", player.lastSource().Track.ID)
	}
}

func TestQueue_SkipToPreviousMidQueue(t *testing.T) {
	engine, player, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[1], queue, 1)

	// Deep into the track SkipToPrevious still moves back, unlike Previous
	player.position = 30

	if err := engine.SkipToPrevious(); err != nil {
		t.Fatalf("SkipToPrevious failed: %v", err)
	}

	if engine.CurrentIndex() != 0 {
		t.Errorf("Expected prior track, got index %d", engine.CurrentIndex())
	}
	if player.lastSource().Track.ID != "a" {
		t.Errorf("Expected track a, got %s", player.lastSource().Track.ID)
	}
}

func TestQueue_ShuffleAvoidsCurrentIndex(t *testing.T) {
	engine, _, _ := setupEngine(t)
	engine.SetShuffle(true)

	queue := testQueue("a", "b", "c", "d")
	engine.Play(queue[1], queue, 1)

	for i := 0; i < 20; i++ {
		before := engine.CurrentIndex()
		if err := engine.Next(); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		after := engine.CurrentIndex()
		if after == before {
			t.Fatalf("Shuffle picked the current index %d", after)
		}
		if after < 0 || after >= len(queue) {
			t.Fatalf("Shuffle index %d out of range", after)
		}
	}
}

func TestQueue_PlayAtIndexOutOfRange(t *testing.T) {
	engine, _, _ := setupEngine(t)

	queue := testQueue("a", "b")
	engine.Play(queue[0], queue, 0)

	if err := engine.PlayAtIndex(5); err == nil {
		t.Error("Expected error for out-of-range index")
	}
	if engine.CurrentIndex() != 0 {
		t.Errorf("Index must be unchanged after rejected call, got %d", engine.CurrentIndex())
	}
}

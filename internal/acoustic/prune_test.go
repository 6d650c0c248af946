package acoustic

import "testing"

func TestPruneCacheKeepsTopKDescending(t *testing.T) {
	c := newPruneCache(3)
	for id, score := range map[int]float64{0: -5, 1: -1, 2: -3, 3: -0.5, 4: -9} {
		c.push(id, score)
	}
	scores, ids := c.results()
	if len(scores) != 3 {
		t.Fatalf("len(scores) = %d; want 3", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Fatalf("scores not descending: %v", scores)
		}
	}
	if scores[0] != -0.5 || ids[0] != 3 {
		t.Errorf("best entry = (%v,%v); want (-0.5,3)", scores[0], ids[0])
	}
	if scores[1] != -1 || ids[1] != 1 {
		t.Errorf("second entry = (%v,%v); want (-1,1)", scores[1], ids[1])
	}
}

func TestPruneCacheDropsBelowCapacity(t *testing.T) {
	c := newPruneCache(2)
	c.push(0, -1)
	c.push(1, -2)
	c.push(2, -100) // worse than both kept entries, and cache is full: dropped
	scores, ids := c.results()
	if len(scores) != 2 {
		t.Fatalf("len(scores) = %d; want 2", len(scores))
	}
	for _, id := range ids {
		if id == 2 {
			t.Fatal("id 2 should have been pruned, its score beat nothing kept")
		}
	}
}

func TestPruneCacheSingleEntry(t *testing.T) {
	c := newPruneCache(5)
	c.push(7, -3)
	scores, ids := c.results()
	if len(scores) != 1 || scores[0] != -3 || ids[0] != 7 {
		t.Fatalf("results = %v, %v; want [-3], [7]", scores, ids)
	}
}

func TestPruneCacheCapOne(t *testing.T) {
	c := newPruneCache(1)
	c.push(0, -5)
	c.push(1, -1) // better: replaces the only slot
	c.push(2, -9) // worse: dropped
	scores, ids := c.results()
	if len(scores) != 1 || scores[0] != -1 || ids[0] != 1 {
		t.Fatalf("results = %v, %v; want [-1], [1]", scores, ids)
	}
}

package acoustic

// pruneCache holds the top-K best Gaussian scores seen so far within one
// state's mixture, kept sorted descending by score so the lowest-scoring
// entry -- the one a new push might displace -- is always at the tail.
// The insertion logic (including the "never grow past cap, drop ties at
// the bottom" behavior) mirrors cache_push/find_insert_point.
type pruneCache struct {
	cap    int
	scores []float64
	ids    []int
}

func newPruneCache(cap int) *pruneCache {
	if cap <= 0 {
		cap = 1
	}
	return &pruneCache{cap: cap, scores: make([]float64, 0, cap), ids: make([]int, 0, cap)}
}

// push records (id, score) into the cache, dropping it if the cache is
// already full and score doesn't beat the current worst kept entry.
func (c *pruneCache) push(id int, score float64) {
	n := len(c.scores)
	if n == 0 {
		c.scores = append(c.scores, score)
		c.ids = append(c.ids, id)
		return
	}
	if c.scores[n-1] >= score {
		if n < c.cap {
			c.scores = append(c.scores, score)
			c.ids = append(c.ids, id)
		}
		return
	}
	var insertAt int
	if c.scores[0] < score {
		insertAt = 0
	} else {
		insertAt = findInsertPoint(c.scores, score)
	}
	if n < c.cap {
		c.scores = append(c.scores, 0)
		c.ids = append(c.ids, 0)
		copy(c.scores[insertAt+1:], c.scores[insertAt:n])
		copy(c.ids[insertAt+1:], c.ids[insertAt:n])
	} else if insertAt < n-1 {
		copy(c.scores[insertAt+1:n], c.scores[insertAt:n-1])
		copy(c.ids[insertAt+1:n], c.ids[insertAt:n-1])
	}
	c.scores[insertAt] = score
	c.ids[insertAt] = id
}

// findInsertPoint returns the index a new score with value score should
// be inserted at to keep scores (length len(scores), descending) sorted,
// via binary search exactly as find_insert_point does.
func findInsertPoint(scores []float64, score float64) int {
	left, right := 0, len(scores)-1
	for left < right {
		mid := (left + right) / 2
		if scores[mid] > score {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}

// results returns the cache's contents, best score first. scoreMixture
// and the tests both read the kept Gaussians through it.
func (c *pruneCache) results() ([]float64, []int) {
	return c.scores, c.ids
}

package crawl

// Frontier is the FIFO work list of a single run. It is not safe for
// concurrent use; a run is processed by one goroutine.
type Frontier struct {
	queue   []string
	pending map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier returns a frontier whose first entry is seed. The seed is
// counted as visited from the start so links back to it are never queued.
func NewFrontier(seed string) *Frontier {
	return &Frontier{
		queue:   []string{seed},
		pending: map[string]struct{}{seed: {}},
		visited: map[string]struct{}{seed: {}},
	}
}

// Enqueue appends url unless it was already visited or is still pending.
func (f *Frontier) Enqueue(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.pending[url]; ok {
		return false
	}
	f.pending[url] = struct{}{}
	f.queue = append(f.queue, url)
	return true
}

// Next pops the oldest pending URL.
func (f *Frontier) Next() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.pending, url)
	return url, true
}

// MarkVisited records url as processed.
func (f *Frontier) MarkVisited(url string) {
	f.visited[url] = struct{}{}
}

// Visited is the number of visited URLs, seed included.
func (f *Frontier) Visited() int { return len(f.visited) }

// Len is the number of URLs waiting to be processed.
func (f *Frontier) Len() int { return len(f.queue) }

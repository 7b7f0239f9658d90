package watch

import (
	"sort"
	"sync"
	"time"

	"tg-wordcount-bot/internal/domain"
)

type wordEntry struct {
	word         string
	state        domain.ScanState
	firstScanned *time.Time
	lastScanned  *time.Time
}

func (e *wordEntry) snapshot() domain.WatchWord {
	return domain.WatchWord{
		Word:         e.word,
		State:        e.state,
		FirstScanned: e.firstScanned,
		LastScanned:  e.lastScanned,
	}
}

// Claim содержит слова, захваченные одним проходом сканера.
type Claim struct {
	entries []*wordEntry
}

// Words возвращает слова пакета.
func (c *Claim) Words() []string {
	if c == nil {
		return nil
	}
	words := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		words = append(words, e.word)
	}
	return words
}

// Empty сообщает, что сканировать нечего.
func (c *Claim) Empty() bool {
	return c == nil || len(c.entries) == 0
}

// Registry хранит отслеживаемые слова сообщества и их состояние сканирования.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*wordEntry
	now     func() time.Time
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*wordEntry), now: time.Now}
}

// Add добавляет слово в состоянии ScanNeeded. Повторное добавление ничего не меняет.
func (r *Registry) Add(word string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[word]; ok {
		return false
	}
	r.entries[word] = &wordEntry{word: word, state: domain.ScanNeeded}
	return true
}

// Remove удаляет слово вместе с его состоянием сканирования.
func (r *Registry) Remove(word string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[word]; !ok {
		return false
	}
	delete(r.entries, word)
	return true
}

// Has сообщает, отслеживается ли слово.
func (r *Registry) Has(word string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[word]
	return ok
}

// Get возвращает снимок записи.
func (r *Registry) Get(word string) (domain.WatchWord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[word]
	if !ok {
		return domain.WatchWord{}, false
	}
	return e.snapshot(), true
}

// List возвращает снимки всех слов, отсортированные по слову.
func (r *Registry) List() []domain.WatchWord {
	r.mu.Lock()
	out := make([]domain.WatchWord, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.snapshot())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}

// Words возвращает текущий набор слов без учёта состояния.
func (r *Registry) Words() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	words := make([]string, 0, len(r.entries))
	for w := range r.entries {
		words = append(words, w)
	}
	return words
}

// ClaimPending атомарно переводит все слова ScanNeeded в ScanRunning.
func (r *Registry) ClaimPending() *Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	claim := &Claim{}
	for _, e := range r.entries {
		if e.state != domain.ScanNeeded {
			continue
		}
		e.state = domain.ScanRunning
		if e.firstScanned == nil {
			started := now
			e.firstScanned = &started
		}
		claim.entries = append(claim.entries, e)
	}
	sort.Slice(claim.entries, func(i, j int) bool { return claim.entries[i].word < claim.entries[j].word })
	return claim
}

// Complete помечает пакет как просканированный. Слова, удалённые и добавленные заново
// во время прохода, остаются в своём новом состоянии.
func (r *Registry) Complete(claim *Claim) {
	if claim.Empty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, e := range claim.entries {
		if current, ok := r.entries[e.word]; !ok || current != e {
			continue
		}
		e.state = domain.ScanComplete
		finished := now
		e.lastScanned = &finished
	}
}

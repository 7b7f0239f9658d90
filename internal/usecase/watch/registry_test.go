package watch

import (
	"testing"

	"tg-wordcount-bot/internal/domain"
)

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	if !r.Add("foo") {
		t.Fatal("ожидали, что первое добавление вернёт true")
	}
	claim := r.ClaimPending()
	if r.Add("foo") {
		t.Fatal("повторное добавление должно быть no-op")
	}
	if len(r.List()) != 1 {
		t.Fatalf("ожидали одно слово, получили %d", len(r.List()))
	}
	w, _ := r.Get("foo")
	if w.State != domain.ScanRunning {
		t.Fatalf("повторное добавление не должно менять состояние, получили %v", w.State)
	}
	r.Complete(claim)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	if r.Remove("foo") {
		t.Fatal("удаление отсутствующего слова должно вернуть false")
	}
	r.Add("foo")
	if !r.Remove("foo") {
		t.Fatal("ожидали удаление")
	}
	if r.Has("foo") {
		t.Fatal("слово должно быть удалено")
	}
}

func TestRegistryClaimLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Add("b")
	r.Add("a")

	claim := r.ClaimPending()
	if got := claim.Words(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("ожидали [a b], получили %v", got)
	}
	if second := r.ClaimPending(); !second.Empty() {
		t.Fatalf("слова не должны захватываться дважды, получили %v", second.Words())
	}

	r.Add("c")
	r.Complete(claim)

	for _, w := range r.List() {
		want := domain.ScanComplete
		if w.Word == "c" {
			want = domain.ScanNeeded
		}
		if w.State != want {
			t.Fatalf("%s: ожидали %v, получили %v", w.Word, want, w.State)
		}
	}
	a, _ := r.Get("a")
	if a.FirstScanned == nil || a.LastScanned == nil {
		t.Fatal("ожидали заполненные отметки сканирования")
	}
}

func TestRegistryCompleteSkipsReaddedWord(t *testing.T) {
	r := NewRegistry()
	r.Add("foo")
	claim := r.ClaimPending()

	r.Remove("foo")
	r.Add("foo")
	r.Complete(claim)

	w, ok := r.Get("foo")
	if !ok {
		t.Fatal("слово должно остаться в реестре")
	}
	if w.State != domain.ScanNeeded {
		t.Fatalf("заново добавленное слово должно ждать сканирования, получили %v", w.State)
	}
}

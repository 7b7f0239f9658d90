package repo

import (
	"context"
	"testing"
	"time"
)

func TestConnCtxWithParent(t *testing.T) {
	ctx, cancel := connCtxWithParent(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("ожидали дедлайн по умолчанию")
	}
	if time.Until(deadline) > 5*time.Second {
		t.Fatalf("дедлайн слишком далеко: %v", deadline)
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()
	got, cancel2 := connCtxWithParent(parent)
	defer cancel2()
	if got != parent {
		t.Fatal("контекст с дедлайном должен использоваться как есть")
	}
}

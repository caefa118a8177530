package workerpool_test

import (
	"bytes"
	"strconv"
	"sync"
	"testing"

	"github.com/efscore/efs/workerpool"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Shutdown()

	const n = 50
	var wg sync.WaitGroup
	results := make([]workerpool.Result, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := []byte(strconv.Itoa(i))
			f := pool.Submit(workerpool.OpEncrypt, func() ([]byte, bool) {
				return want, true
			}, nil)
			results[i] = f.Result()
		}()
	}
	wg.Wait()
	for i, r := range results {
		if !r.Ok || r.Err != nil {
			t.Fatalf("task %d: got %+v", i, r)
		}
		if !bytes.Equal(r.Value, []byte(strconv.Itoa(i))) {
			t.Fatalf("task %d: got %q", i, r.Value)
		}
	}
}

func TestPoolSize(t *testing.T) {
	pool := workerpool.New(3)
	defer pool.Shutdown()
	if got, want := pool.Size(), 3; got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	pool := workerpool.New(1)
	pool.Shutdown()
	f := pool.Submit(workerpool.OpDecrypt, func() ([]byte, bool) { return nil, true }, nil)
	res := f.Result()
	if res.Err == nil {
		t.Fatal("expected an error submitting after shutdown")
	}
}

func TestInlinePool(t *testing.T) {
	f := workerpool.Inline.Submit(workerpool.OpEncrypt, func() ([]byte, bool) {
		return []byte("x"), true
	}, nil)
	res := f.Result()
	if !res.Ok || !bytes.Equal(res.Value, []byte("x")) {
		t.Fatalf("got %+v", res)
	}
	if workerpool.Inline.Size() != 0 {
		t.Error("inline pool should report size 0")
	}
}

func TestPanicRecovered(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()
	f := pool.Submit(workerpool.OpEncrypt, func() ([]byte, bool) {
		panic("boom")
	}, nil)
	res := f.Result()
	if res.Err == nil {
		t.Fatal("expected panic to surface as an error")
	}
}

package server

import (
	"errors"
	"sync"
	"testing"
)

func TestWorkerSerializesAccess(t *testing.T) {
	w := NewWorker(NewWorkspace())
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := "file:///doc" + string(rune('a'+i))
			if _, err := w.Do(func(ws *Workspace) interface{} {
				return ws.Open(uri, "dcl x int;")
			}); err != nil {
				t.Errorf("Do failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	n, err := w.Do(func(ws *Workspace) interface{} { return len(ws.docs) })
	if err != nil || n.(int) != 20 {
		t.Errorf("documents = %v, %v; want 20", n, err)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker(NewWorkspace())
	defer w.Stop()

	if _, err := w.Do(func(ws *Workspace) interface{} { panic("boom") }); err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
	// The worker keeps serving after a panic.
	if v, err := w.Do(func(ws *Workspace) interface{} { return 7 }); err != nil || v.(int) != 7 {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker(NewWorkspace())
	w.Stop()
	w.Stop()
	if _, err := w.Do(func(ws *Workspace) interface{} { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

func TestWorkerConcurrentStop(t *testing.T) {
	w := NewWorker(NewWorkspace())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
	if _, err := w.Do(func(ws *Workspace) interface{} { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

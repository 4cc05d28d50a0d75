package observer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func runSetTests(t *testing.T, name string, factory func() Set[string]) {
	t.Run(name, func(t *testing.T) {
		t.Run("AddAndNotify", func(t *testing.T) {
			s := factory()

			var got []string
			var mu sync.Mutex
			s.Add(Func[string](func(_ time.Time, value string, err error) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, value)
			}))
			s.Add(Func[string](func(_ time.Time, value string, err error) {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, value)
			}))

			if s.Count() != 2 {
				t.Fatalf("expected 2 observers, got %d", s.Count())
			}

			s.Notify(time.Now(), "hello", nil)
			if len(got) != 2 {
				t.Errorf("expected 2 notifications, got %d", len(got))
			}

			// Notify does not clear
			s.Notify(time.Now(), "again", nil)
			if len(got) != 4 {
				t.Errorf("expected 4 notifications after second Notify, got %d", len(got))
			}
		})

		t.Run("Delete", func(t *testing.T) {
			s := factory()

			calls := 0
			reg := s.Add(Func[string](func(time.Time, string, error) { calls++ }))
			s.Add(Func[string](func(time.Time, string, error) { calls++ }))

			s.Delete(reg)
			if s.Count() != 1 {
				t.Fatalf("expected 1 observer after delete, got %d", s.Count())
			}

			s.Notify(time.Now(), "x", nil)
			if calls != 1 {
				t.Errorf("expected 1 call, got %d", calls)
			}

			// deleting an unknown token is a no-op
			s.Delete(reg)
			if s.Count() != 1 {
				t.Errorf("expected count unchanged, got %d", s.Count())
			}
		})

		t.Run("NotifyAndClear", func(t *testing.T) {
			s := factory()

			calls := 0
			wantErr := errors.New("boom")
			s.Add(Func[string](func(_ time.Time, value string, err error) {
				calls++
				if err != wantErr {
					t.Errorf("expected error %v, got %v", wantErr, err)
				}
			}))

			s.NotifyAndClear(time.Now(), "", wantErr)
			if calls != 1 {
				t.Fatalf("expected 1 call, got %d", calls)
			}
			if s.Count() != 0 {
				t.Errorf("expected empty set after NotifyAndClear, got %d", s.Count())
			}

			// a second notification reaches nobody
			s.NotifyAndClear(time.Now(), "", nil)
			if calls != 1 {
				t.Errorf("observers were notified twice")
			}
		})

		t.Run("ConcurrentAddNotify", func(t *testing.T) {
			s := factory()

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for n := 0; n < 100; n++ {
						reg := s.Add(Func[string](func(time.Time, string, error) {}))
						s.Notify(time.Now(), "v", nil)
						s.Delete(reg)
					}
				}()
			}
			wg.Wait()

			if s.Count() != 0 {
				t.Errorf("expected all observers removed, got %d", s.Count())
			}
		})
	})
}

func TestObserverSets(t *testing.T) {
	runSetTests(t, "CopyOnWrite", NewCopyOnWriteSet[string])
	runSetTests(t, "CopyOnNotify", NewCopyOnNotifySet[string])
}

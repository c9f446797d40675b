package tempid

import (
	"regexp"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	id := New()

	if !IsTemp(id) {
		t.Errorf("New() returned id without the placeholder prefix: %s", id)
	}

	token := id[len(Prefix):]
	if len(token) != 13 {
		t.Errorf("token length = %d, expected 13", len(token))
	}

	valid := regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]+$`)
	if !valid.MatchString(token) {
		t.Errorf("New() returned invalid Crockford Base32 token: %s", token)
	}
}

func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 10000

	for i := 0; i < count; i++ {
		id := New()
		if ids[id] {
			t.Errorf("New() produced duplicate id: %s", id)
		}
		ids[id] = true
	}
}

func TestNewConcurrent(t *testing.T) {
	const goroutines = 10
	const perGoroutine = 1000

	var mu sync.Mutex
	ids := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				local = append(local, New())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if ids[id] {
					t.Errorf("duplicate id across goroutines: %s", id)
				}
				ids[id] = true
			}
		}()
	}
	wg.Wait()
}

func TestIsTemp(t *testing.T) {
	if IsTemp("srv-42") {
		t.Error("server id misclassified as placeholder")
	}
	if !IsTemp(Prefix + "0123456789ABC") {
		t.Error("placeholder id not recognized")
	}
}

package handlers

import (
	"sync"
	"testing"

	"moorelink-bot/internal/models"
)

// Updates are handled on separate goroutines, so the per-chat state maps
// must tolerate concurrent access. Run with -race.
func TestChatStateConcurrentAccess(t *testing.T) {
	h := &Handler{
		chats:     make(map[int64]*chatState),
		lastBatch: make(map[int64][]models.Post),
		lastReq:   make(map[int64]lastFetch),
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		userID := int64(i % 4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.setState(userID, chatState{mode: awaitingAccount, platform: models.PlatformX})
				h.rememberRequest(userID, models.PlatformX, "nasa")
				h.appendBatch(userID, models.Post{ID: "p"})
				h.recentBatch(userID)
				h.lastRequest(userID)
				h.takeState(userID)
			}
		}()
	}
	wg.Wait()

	if st := h.takeState(99); st.mode != awaitingNothing {
		t.Errorf("unknown chat state = %+v", st)
	}
	if lf, ok := h.lastRequest(2); !ok || lf.platform != models.PlatformX {
		t.Errorf("last request lost: %+v, %v", lf, ok)
	}
}

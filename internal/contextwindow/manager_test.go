package contextwindow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory HistorySource with an optional injected failure.
type fakeStore struct {
	mu       sync.Mutex
	messages map[string][]Message
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string][]Message)}
}

func (f *fakeStore) History(_ context.Context, conversationID string, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeStore) append(conversationID string, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[conversationID] = append(f.messages[conversationID], msg)
}

// smallProfile yields available=200 tokens and a hard limit of 900.
func smallProfile() Profile {
	return Profile{Model: "test", MaxContextTokens: 1000, MaxOutputTokens: 100, CharsPerToken: 4}
}

func setupManager(t *testing.T, src HistorySource) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewSelectionCache(client, 300*time.Second, 100)
	mgr, err := NewManager(smallProfile(), src, cache)
	require.NoError(t, err)
	return mgr, mr
}

func seedConversation(store *fakeStore, conversationID string, n, recentCount int) {
	now := time.Now()
	for i := 0; i < n; i++ {
		age := 6 * time.Hour
		if i >= n-recentCount {
			age = time.Minute
		}
		content := fmt.Sprintf("padded conversation turn number %02d ", i)
		for len(content) < 100 {
			content += "x"
		}
		store.append(conversationID, Message{
			ID:        fmt.Sprintf("%s-m%02d", conversationID, i),
			Role:      RoleUser,
			Content:   content[:100],
			Timestamp: now.Add(-age).Unix() + int64(i),
		})
	}
}

func TestNewManager_RejectsBadBudget(t *testing.T) {
	_, err := NewManager(Profile{MaxContextTokens: 500, MaxOutputTokens: 450, CharsPerToken: 4}, newFakeStore(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token budget misconfigured")
}

func TestBuildContext_EmptyHistoryIsSystemPlusQuery(t *testing.T) {
	mgr, _ := setupManager(t, newFakeStore())

	final := mgr.BuildContext(context.Background(), "conv", "hello", "sys prompt")
	require.Len(t, final, 2)
	assert.Equal(t, PromptMessage{Role: RoleSystem, Content: "sys prompt"}, final[0])
	assert.Equal(t, PromptMessage{Role: RoleUser, Content: "hello"}, final[1])
}

func TestBuildContext_StoreDownDegrades(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("store unavailable")
	mgr, _ := setupManager(t, store)

	final := mgr.BuildContext(context.Background(), "conv", "hello", "sys")
	require.Len(t, final, 2)
	assert.Equal(t, RoleSystem, final[0].Role)
	assert.Equal(t, "hello", final[1].Content)
}

func TestBuildContext_BudgetSafety(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 40, 10)
	mgr, _ := setupManager(t, store)

	final := mgr.BuildContext(context.Background(), "conv", "what about fees", "sys")

	est := NewEstimator(smallProfile())
	total := 0
	for _, msg := range final {
		total += est.Estimate(msg.Content)
	}
	assert.LessOrEqual(t, total, mgr.Budget().HardLimit())
}

func TestBuildContext_RecencyExample(t *testing.T) {
	// 30 messages, budget for 8 at 25 tokens each: the 6 most recent plus
	// at most 2 older, chronological.
	store := newFakeStore()
	seedConversation(store, "conv", 30, 6)
	mgr, _ := setupManager(t, store)

	final := mgr.BuildContext(context.Background(), "conv", "unrelated query", "sys")
	context_ := final[1 : len(final)-1]
	require.Len(t, context_, 8)

	for i := 24; i < 30; i++ {
		found := false
		want := fmt.Sprintf("padded conversation turn number %02d", i)
		for _, msg := range context_ {
			if len(msg.Content) >= len(want) && msg.Content[:len(want)] == want {
				found = true
				break
			}
		}
		assert.True(t, found, "recent turn %02d missing from context", i)
	}
}

func TestBuildContext_Deterministic(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 30, 6)
	mgr, _ := setupManager(t, store)
	ctx := context.Background()

	a := mgr.BuildContext(ctx, "conv", "some query", "sys")
	mgr.InvalidateCache(ctx)
	b := mgr.BuildContext(ctx, "conv", "some query", "sys")

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestBuildContext_CacheHitMatchesMiss(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 20, 6)
	mgr, _ := setupManager(t, store)
	ctx := context.Background()

	miss := mgr.BuildContext(ctx, "conv", "query", "sys")
	hit := mgr.BuildContext(ctx, "conv", "query", "sys")
	assert.Equal(t, miss, hit)
}

func TestBuildContext_CacheExpiresWithTTL(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 10, 4)
	mgr, mr := setupManager(t, store)
	ctx := context.Background()

	before := mgr.BuildContext(ctx, "conv", "query", "sys")
	mr.FastForward(301 * time.Second)
	after := mgr.BuildContext(ctx, "conv", "query", "sys")

	// Same history and query: the rebuild must agree with the cached result.
	assert.Equal(t, before, after)
}

func TestSummary_Fields(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 30, 6)
	mgr, _ := setupManager(t, store)

	sum := mgr.Summary(context.Background(), "conv", "unrelated query")
	assert.Equal(t, 30, sum.MessagesAvailable)
	assert.Equal(t, 8, sum.MessagesSelected)
	assert.Equal(t, 200, sum.TokenBudget)
	assert.Equal(t, 200, sum.EstimatedTokens)
	assert.InDelta(t, 100.0, sum.UtilizationPercent, 0.01)
}

func TestSummary_EmptyConversation(t *testing.T) {
	mgr, _ := setupManager(t, newFakeStore())

	sum := mgr.Summary(context.Background(), "conv", "query")
	assert.Zero(t, sum.MessagesAvailable)
	assert.Zero(t, sum.MessagesSelected)
	assert.Zero(t, sum.EstimatedTokens)
}

func TestConfigure_LimitsHistoryFetch(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv", 30, 30)
	mgr, _ := setupManager(t, store)

	mgr.Configure(4, 0)
	sum := mgr.Summary(context.Background(), "conv", "query")
	assert.Equal(t, 4, sum.MessagesAvailable)
}

func TestWithConversationLock_SerializesTurns(t *testing.T) {
	store := newFakeStore()
	mgr, _ := setupManager(t, store)
	ctx := context.Background()

	// Two concurrent turns on one conversation: both appends must land,
	// and each turn's read-build-append cycle must not interleave.
	var wg sync.WaitGroup
	turn := func(id int) {
		defer wg.Done()
		_ = mgr.WithConversationLock("conv", func() error {
			before, _ := store.History(ctx, "conv", 50)
			store.append("conv", Message{
				ID:        fmt.Sprintf("turn-%d", id),
				Role:      RoleUser,
				Content:   fmt.Sprintf("turn %d saw %d messages", id, len(before)),
				Timestamp: time.Now().Unix(),
			})
			return nil
		})
	}

	wg.Add(2)
	go turn(1)
	go turn(2)
	wg.Wait()

	history, err := store.History(ctx, "conv", 50)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// The second turn must have observed the first one's append.
	assert.Contains(t, history[1].Content, "saw 1 messages")
}

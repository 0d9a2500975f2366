package store

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(subject string) EmailRecord {
	return EmailRecord{
		MessageID: "msg-" + subject,
		From:      "sender@example.com",
		Subject:   subject,
	}
}

// ---------------------------------------------------------------------------
// Append / List
// ---------------------------------------------------------------------------

func TestAppendNormalizesLists(t *testing.T) {
	s := New()
	rec := s.Append(record("a"))

	assert.Equal(t, []string{}, rec.ReplyTo)
	assert.Equal(t, []string{}, rec.Destination.To)
	assert.Equal(t, []string{}, rec.Destination.Cc)
	assert.Equal(t, []string{}, rec.Destination.Bcc)
	assert.Equal(t, []Attachment{}, rec.Attachments)

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
}

func TestAppendKeepsOrder(t *testing.T) {
	s := New()
	for _, subj := range []string{"one", "two", "three"} {
		s.Append(record(subj))
	}

	got := s.List()
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Subject)
	assert.Equal(t, "two", got[1].Subject)
	assert.Equal(t, "three", got[2].Subject)
}

func TestAppendTimestampsNeverDecrease(t *testing.T) {
	s := New()
	s.Clock.Advance(time.Hour)
	first := s.Append(record("future"))

	s.Clock.Reset()
	second := s.Append(record("now"))

	assert.GreaterOrEqual(t, second.At, first.At)
}

func TestListReturnsCopy(t *testing.T) {
	s := New()
	s.Append(record("a"))

	got := s.List()
	got[0].Subject = "mutated"

	assert.Equal(t, "a", s.List()[0].Subject)
}

// ---------------------------------------------------------------------------
// Since
// ---------------------------------------------------------------------------

func TestSinceFiltersAndKeepsOrder(t *testing.T) {
	s := New()
	s.Append(record("old"))
	cutoff := s.Clock.Now().Add(time.Hour).Unix()
	s.Clock.Advance(time.Hour)
	s.Append(record("new-1"))
	s.Append(record("new-2"))

	got := s.Since(cutoff)
	require.Len(t, got, 2)
	assert.Equal(t, "new-1", got[0].Subject)
	assert.Equal(t, "new-2", got[1].Subject)
}

func TestSinceNoMatchIsEmptyNotNil(t *testing.T) {
	s := New()
	s.Append(record("a"))

	got := s.Since(s.Clock.Now().Add(24 * time.Hour).Unix())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// ---------------------------------------------------------------------------
// Clear / Reset / State
// ---------------------------------------------------------------------------

func TestClear(t *testing.T) {
	s := New()
	s.Append(record("a"))
	s.Append(record("b"))

	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, []EmailRecord{}, s.List())
}

func TestResetClearsClock(t *testing.T) {
	s := New()
	s.Clock.Advance(time.Hour)
	s.Append(record("a"))

	s.Reset()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, time.Duration(0), s.Clock.Offset())
}

func TestLoadState(t *testing.T) {
	s := New()
	err := s.LoadState([]byte(`{"emails":[{"messageId":"m1","from":"a@example.com","subject":"hi","at":4102444800}]}`))
	require.NoError(t, err)

	got := s.List()
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.Equal(t, []string{}, got[0].Destination.To)

	// Appends are stamped no earlier than loaded records.
	rec := s.Append(record("b"))
	assert.GreaterOrEqual(t, rec.At, int64(4102444800))
}

func TestLoadStateRejectsMissingID(t *testing.T) {
	s := New()
	err := s.LoadState([]byte(`{"emails":[{"from":"a@example.com"}]}`))
	assert.Error(t, err)
}

func TestLoadStateInvalidJSON(t *testing.T) {
	s := New()
	assert.Error(t, s.LoadState([]byte(`{not json`)))
}

// ---------------------------------------------------------------------------
// Message ids / observers / concurrency
// ---------------------------------------------------------------------------

func TestNextMessageIDUnique(t *testing.T) {
	s := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.NextMessageID()
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestObserve(t *testing.T) {
	s := New()
	var got []string
	s.Observe(func(rec EmailRecord) {
		got = append(got, rec.Subject)
	})

	s.Append(record("a"))
	s.Append(record("b"))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestConcurrentAppend(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(record("x"))
			_ = s.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Count())
}

package replay

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/game"
)

func testState() *game.GameState {
	return &game.GameState{
		Players: []*game.PlayerState{
			{PlayerID: "alice", Health: 30, Mana: 1, MaxMana: 1, Deck: []game.CardRef{{Kind: game.CardKindMinion, CardID: 1}}},
			{PlayerID: "bob", Health: 30},
		},
		TurnNumber:          1,
		CurrentTurnPlayerID: "alice",
	}
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return at }
}

func TestRecordAppendsWithoutMutating(t *testing.T) {
	rec := NewRecorder(fixedClock())
	state := testState()

	first := rec.Record(nil, ActionInit, "", InitDescription, state)
	require.Len(t, first, 1)
	assert.Equal(t, 0, first[0].Index)
	assert.Equal(t, ActionInit, first[0].Action)
	assert.Empty(t, first[0].PlayerID)

	state.TurnNumber = 2
	state.Players[0].Health = 12
	second := rec.Record(first, ActionEndTurn, "alice", "End turn", state)

	require.Len(t, first, 1)
	require.Len(t, second, 2)
	assert.Equal(t, 1, second[1].Index)
	assert.Equal(t, 2, second[1].TurnNumber)
	assert.Equal(t, "alice", second[1].PlayerID)

	// snapshots are copies, not the live state
	assert.Equal(t, 30, second[0].State.Players[0].Health)
	state.Players[0].Health = 1
	assert.Equal(t, 12, second[1].State.Players[0].Health)
}

func TestRecordDoesNotAliasSiblings(t *testing.T) {
	rec := NewRecorder(fixedClock())
	base := rec.Record(nil, ActionInit, "", InitDescription, testState())
	base = rec.Record(base, ActionPlay, "alice", "Minion: Footman", testState())

	a := rec.Record(base, ActionAttack, "alice", "a", testState())
	b := rec.Record(base, ActionAttack, "alice", "b", testState())
	assert.Equal(t, "a", a[2].Description)
	assert.Equal(t, "b", b[2].Description)
}

func TestVerify(t *testing.T) {
	rec := NewRecorder(fixedClock())
	steps := rec.Record(nil, ActionInit, "", InitDescription, testState())
	steps = rec.Record(steps, ActionEndTurn, "alice", "End turn", testState())
	require.NoError(t, Verify(steps))

	steps[1].State.Players[1].Health = 1
	assert.Equal(t, errors.ErrInvalidState, errors.CodeOf(Verify(steps)))

	gap := []Step{steps[0], steps[0]}
	assert.Error(t, Verify(gap))
}

func TestArchiveEncodeDecode(t *testing.T) {
	rec := NewRecorder(fixedClock())
	steps := rec.Record(nil, ActionInit, "", InitDescription, testState())
	in := Archive{MatchID: "m1", Player1ID: "alice", Player2ID: "bob", WinnerID: "bob", FinishedAt: fixedClock()(), Steps: steps}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))
	out, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, archiveVersion, out.Version)
	assert.Equal(t, "m1", out.MatchID)
	assert.Equal(t, "bob", out.WinnerID)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, steps[0].Checksum, out.Steps[0].State.Checksum())
	assert.NoError(t, Verify(out.Steps))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not gzip")))
	assert.Error(t, err)
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Directory: dir}
	a := Archive{MatchID: "m9"}

	require.NoError(t, sink.Put(context.Background(), a.Key(), []byte("payload")))
	data, err := os.ReadFile(filepath.Join(dir, "replays", "m9.json.gz"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

type fakeSource struct {
	mu       sync.Mutex
	pending  []Archive
	archived map[string]time.Time
}

func (f *fakeSource) PendingArchives(_ context.Context, limit int) ([]Archive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Archive
	for _, a := range f.pending {
		if _, done := f.archived[a.MatchID]; done {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeSource) MarkArchived(_ context.Context, matchID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[matchID] = at
	return nil
}

type memorySink struct {
	objects map[string][]byte
	fail    map[string]bool
}

func (s *memorySink) Put(_ context.Context, key string, body []byte) error {
	if s.fail[key] {
		return fmt.Errorf("unavailable")
	}
	s.objects[key] = body
	return nil
}

func TestArchiverRunOnce(t *testing.T) {
	rec := NewRecorder(fixedClock())
	steps := rec.Record(nil, ActionInit, "", InitDescription, testState())
	source := &fakeSource{archived: map[string]time.Time{}}
	for _, id := range []string{"m1", "m2", "m3"} {
		source.pending = append(source.pending, Archive{MatchID: id, Steps: steps})
	}
	sink := &memorySink{objects: map[string][]byte{}, fail: map[string]bool{"replays/m2.json.gz": true}}
	archiver := NewArchiver(source, sink, 10, zaptest.NewLogger(t))

	n, err := archiver.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, source.archived, "m1")
	assert.NotContains(t, source.archived, "m2")
	assert.Contains(t, source.archived, "m3")

	stored, err := Decode(bytes.NewReader(sink.objects["replays/m1.json.gz"]))
	require.NoError(t, err)
	assert.Equal(t, "m1", stored.MatchID)

	delete(sink.fail, "replays/m2.json.gz")
	n, err = archiver.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

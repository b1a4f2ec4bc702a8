package replay

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

// ArchiveSource lists finished matches whose replay has not been exported yet.
type ArchiveSource interface {
	PendingArchives(ctx context.Context, limit int) ([]Archive, error)
	MarkArchived(ctx context.Context, matchID string, at time.Time) error
}

// Archiver exports finished replays from a source into a sink.
type Archiver struct {
	source    ArchiveSource
	sink      Sink
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewArchiver creates an archiver exporting at most batchSize replays per run.
func NewArchiver(source ArchiveSource, sink Sink, batchSize int, logger *zap.Logger) *Archiver {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Archiver{
		source:    source,
		sink:      sink,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// RunOnce exports one batch and returns how many replays were archived. A
// replay that fails to export is logged and retried on the next run.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	pending, err := a.source.PendingArchives(ctx, a.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "list pending archives", nil)
	}

	archived := 0
	for _, archive := range pending {
		if err := ctx.Err(); err != nil {
			return archived, err
		}
		if err := a.export(ctx, archive); err != nil {
			errors.Log(a.logger, errors.Wrap(err, "export replay", errors.Details{"match_id": archive.MatchID}))
			continue
		}
		archived++
	}
	if archived > 0 {
		a.logger.Info("archived replays", zap.Int("count", archived), zap.Int("pending", len(pending)))
	}
	return archived, nil
}

func (a *Archiver) export(ctx context.Context, archive Archive) error {
	if err := Verify(archive.Steps); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, archive); err != nil {
		return errors.NewInternalErrorFromErr(err, "encode archive", nil)
	}
	if err := a.sink.Put(ctx, archive.Key(), buf.Bytes()); err != nil {
		return errors.Error{Code: errors.ErrCommunication, Kind: errors.KindStorage, Err: err, Message: "put archive"}
	}
	return a.source.MarkArchived(ctx, archive.MatchID, a.now().UTC())
}

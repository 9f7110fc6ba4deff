package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"artha-ledger-go/internal/ledger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	keyPrefix = "txn_"

	segmentThreshold = 1000
	maxSegments      = 100
	dirPermissions   = 0o755
)

// Entry is one journaled transaction.
type Entry struct {
	ID          string             `json:"id"`
	PortfolioID string             `json:"portfolio_id"`
	Transaction ledger.Transaction `json:"transaction"`
	WrittenAt   time.Time          `json:"written_at"`
}

// Journal is an append-only write-ahead log of applied transactions. It
// covers the window between a trade and the next successful checkpoint.
type Journal struct {
	mu  sync.Mutex
	wal *gowal.Wal
}

// Open opens or creates the journal in dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	w, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error init journal")
	}
	return &Journal{wal: w}, nil
}

func key(portfolioID string, seq uint64) string {
	return fmt.Sprintf("%s%s_%d", keyPrefix, portfolioID, seq)
}

// Append journals tx for portfolioID.
func (j *Journal) Append(portfolioID string, tx ledger.Transaction) error {
	entry := Entry{
		ID:          uuid.New().String(),
		PortfolioID: portfolioID,
		Transaction: tx,
		WrittenAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal entry")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.wal.Write(j.wal.CurrentIndex()+1, key(portfolioID, tx.Seq), data); err != nil {
		return errors.Wrapf(err, "failed to journal transaction %d", tx.Seq)
	}
	return nil
}

// Replay returns the journaled transactions of portfolioID with a sequence id
// greater than afterSeq, in sequence order. When a sequence id was written more
// than once the last write wins: a seq abandoned by recovery is reused by the
// next trade.
func (j *Journal) Replay(portfolioID string, afterSeq uint64) ([]ledger.Transaction, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	prefix := keyPrefix + portfolioID + "_"
	latest := make(map[uint64]ledger.Transaction)
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, prefix) {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return nil, errors.Wrapf(err, "corrupt journal entry %s", msg.Key)
		}
		tx := entry.Transaction
		if entry.PortfolioID != portfolioID || tx.Seq <= afterSeq {
			continue
		}
		latest[tx.Seq] = tx
	}

	out := make([]ledger.Transaction, 0, len(latest))
	for _, tx := range latest {
		out = append(out, tx)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

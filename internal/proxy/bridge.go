package proxy

import (
	"errors"

	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/journal"
)

// JournalBridge records every settled embodiment in the journal, so the
// embodiment_history tool can report on sessions the proxy woke up.
type JournalBridge struct {
	store  *journal.Store
	logger *zap.Logger
}

// NewJournalBridge returns nil if store is nil. Assign the result to an
// Observer only when it is non-nil.
func NewJournalBridge(store *journal.Store, logger *zap.Logger) *JournalBridge {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalBridge{store: store, logger: logger}
}

// EmbodimentSettled writes s to the journal. Best effort: a failed write
// is logged and otherwise ignored.
func (b *JournalBridge) EmbodimentSettled(s Settlement) {
	entry := journal.Entry{
		SessionID:  string(s.SessionID),
		Sparkler:   s.Sparkler,
		Workspace:  s.Workspace,
		Outcome:    outcomeOf(s),
		StopReason: string(s.StopReason),
		Bytes:      s.Bytes,
		Duration:   s.Duration,
	}
	if s.Err != nil {
		entry.Error = s.Err.Error()
	}

	if _, err := b.store.Record(entry); err != nil {
		b.logger.Warn("journal write failed", zap.String("session", entry.SessionID), zap.Error(err))
	}
}

func outcomeOf(s Settlement) journal.Outcome {
	var injErr *InjectionError
	switch {
	case s.Err == nil:
		return journal.OutcomeEmbodied
	case errors.As(s.Err, &injErr):
		return journal.OutcomeInterrupted
	default:
		return journal.OutcomeFailed
	}
}

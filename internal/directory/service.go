// Package directory builds the ranked holder directory and mediates
// display-name updates.
// Flow: fetch accounts → aggregate balances → rank → attach names
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rentfree/internal/auth"
	"rentfree/internal/domain"
	"rentfree/internal/observability"
	"rentfree/internal/solana"
	"rentfree/internal/storage"
)

// Service coordinates the snapshot pipeline and name registry.
type Service struct {
	source  solana.AccountSource
	names   storage.DisplayNameStore
	history storage.HolderHistoryStore // optional

	mint         string
	maxRooms     int
	landlordTopN int

	cache  *SnapshotCache
	logger *log.Logger
}

// Options for creating Service.
type Options struct {
	// Required
	Source solana.AccountSource
	Names  storage.DisplayNameStore
	Mint   string

	// Optional; nil disables history recording
	History storage.HolderHistoryStore

	MaxRooms     int
	LandlordTopN int
	CacheTTL     time.Duration

	Logger *log.Logger
}

// New creates a new Service.
func New(opts Options) *Service {
	if opts.MaxRooms <= 0 {
		opts.MaxRooms = 100
	}
	if opts.LandlordTopN <= 0 {
		opts.LandlordTopN = 10
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Service{
		source:       opts.Source,
		names:        opts.Names,
		history:      opts.History,
		mint:         opts.Mint,
		maxRooms:     opts.MaxRooms,
		landlordTopN: opts.LandlordTopN,
		logger:       opts.Logger,
	}
	s.cache = NewSnapshotCache(opts.CacheTTL, s.buildSnapshot)
	return s
}

// Directory returns the current ranked snapshot, along with whether it was
// served from cache. An empty mint falls back to the configured one; a
// different mint evicts the cached snapshot, since the cache holds one mint
// at a time.
func (s *Service) Directory(ctx context.Context, mint string) (*domain.Snapshot, bool, error) {
	if mint == "" {
		mint = s.mint
	}
	snap, cached, err := s.cache.Get(ctx, mint)
	if err != nil {
		if errors.Is(err, solana.ErrRateLimited) {
			observability.RecordRateLimited()
		}
		return nil, false, err
	}

	observability.RecordDirectoryRequest(cached)
	return snap, cached, nil
}

// buildSnapshot runs the full pipeline: fetch, aggregate, rank, enrich.
// Failures leave the cache untouched; a stale-but-fresh snapshot is never
// replaced with a partial one.
func (s *Service) buildSnapshot(ctx context.Context, mint string) (*domain.Snapshot, error) {
	start := time.Now()

	records, err := s.source.GetTokenAccountsByMint(ctx, mint)
	observability.RecordUpstreamFetch(time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("fetch token accounts: %w", err)
	}

	balances, skipped := AggregateBalances(records)
	if skipped > 0 {
		s.logger.Printf("skipped %d malformed token accounts for mint %s", skipped, mint)
	}

	assignments := Rank(balances, s.maxRooms, s.landlordTopN)

	if err := s.attachNames(ctx, assignments); err != nil {
		// Names are decoration; the directory is still correct without them.
		s.logger.Printf("display name enrichment failed: %v", err)
	}

	snap := &domain.Snapshot{
		Mint:        mint,
		Assignments: assignments,
		CapturedAt:  time.Now().UnixMilli(),
	}

	observability.RecordSnapshotBuilt(len(assignments), skipped, time.Since(start).Seconds(), snap.CapturedAt)

	if s.history != nil {
		s.recordHistory(snap)
	}

	return snap, nil
}

func (s *Service) attachNames(ctx context.Context, assignments []domain.RoomAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	wallets := make([]string, len(assignments))
	for i, a := range assignments {
		wallets[i] = a.Wallet
	}

	names, err := s.names.GetMany(ctx, wallets)
	if err != nil {
		return err
	}

	for i := range assignments {
		if name, ok := names[assignments[i].Wallet]; ok {
			assignments[i].DisplayName = name
		}
	}
	return nil
}

// recordHistory appends the snapshot to the analytics store off the request
// path. The write uses its own deadline so a slow insert cannot stall or
// fail directory serving.
func (s *Service) recordHistory(snap *domain.Snapshot) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.history.InsertSnapshot(ctx, snap); err != nil {
			s.logger.Printf("holder history insert failed: %v", err)
			return
		}
		observability.RecordHistoryRows(len(snap.Assignments))
	}()
}

// UpdateDisplayName verifies a signed name-update request and persists the
// new name. Validation failures (shape, prefix, length) return ErrValidation;
// a well-formed request whose signature does not verify returns ErrAuth.
func (s *Service) UpdateDisplayName(ctx context.Context, wallet, displayName, message string, signature []byte) (*domain.DisplayNameRecord, error) {
	if wallet == "" || message == "" || len(signature) == 0 {
		observability.RecordNameUpdate("validation_failed")
		return nil, fmt.Errorf("%w: wallet, message and signature are required", ErrValidation)
	}

	if err := auth.VerifyNameUpdate(wallet, displayName, message, signature); err != nil {
		switch {
		case errors.Is(err, auth.ErrBadPrefix), errors.Is(err, auth.ErrNameLength):
			observability.RecordNameUpdate("validation_failed")
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		default:
			observability.RecordNameUpdate("auth_failed")
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
	}

	rec, err := s.names.Upsert(ctx, wallet, displayName, time.Now().UnixMilli())
	if err != nil {
		observability.RecordNameUpdate("store_failed")
		return nil, fmt.Errorf("persist display name: %w", err)
	}

	observability.RecordNameUpdate("ok")
	return rec, nil
}

// History returns a wallet's historical room assignments, most recent first.
// Fails with ErrValidation when history storage is not configured for this
// deployment.
func (s *Service) History(ctx context.Context, wallet string, limit int) ([]*domain.HolderHistoryEntry, error) {
	if s.history == nil {
		return nil, fmt.Errorf("%w: holder history is not configured", ErrValidation)
	}
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet is required", ErrValidation)
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.history.GetByWallet(ctx, wallet, limit)
}

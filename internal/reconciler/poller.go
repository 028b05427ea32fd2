// Package reconciler resolves payment transactions whose outcome is not yet
// known: orders the provider accepted but has not settled, and orders whose
// dispatch attempt crashed before a response was recorded. It
// polls the provider's query endpoint and drives terminal states through the
// same outcome handler the dispatcher uses.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rewardhub/settlement-engine/internal/config"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/domain/worklock"
	"github.com/rewardhub/settlement-engine/internal/provider"
	"github.com/rewardhub/settlement-engine/internal/settlement"
)

// Reconciler periodically sweeps unresolved payment transactions
type Reconciler struct {
	payments     payment.Repository
	client       provider.Client
	outcome      settlement.OutcomeHandler
	callLog      providerlog.Repository
	guard        *lockGuard
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

func New(
	cfg *config.ReconcilerConfig,
	payments payment.Repository,
	client provider.Client,
	outcome settlement.OutcomeHandler,
	callLog providerlog.Repository,
	locks worklock.Repository,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		payments:     payments,
		client:       client,
		outcome:      outcome,
		callLog:      callLog,
		guard:        newLockGuard(locks, cfg.LockName, cfg.LockStaleAfter, logger),
		logger:       logger,
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Start begins polling until context is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		"poll_interval", r.pollInterval.String(),
		"batch_size", r.batchSize,
		"holder", r.guard.holder,
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping due to context cancellation.")
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.guard.release(releaseCtx)
			cancel()
			return
		case <-ticker.C:
			if !r.guard.acquire(ctx) {
				continue
			}
			if err := r.processUnresolved(ctx); err != nil {
				r.logger.Error("Error during reconciliation cycle", "error", err)
			}
		}
	}
}

func (r *Reconciler) processUnresolved(ctx context.Context) error {
	transactions, err := r.payments.ListUnresolved(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list unresolved payment transactions: %w", err)
	}

	if len(transactions) == 0 {
		r.logger.Debug("No unresolved payment transactions found.")
		return nil
	}

	r.logger.Info("Fetched unresolved payment transactions", "count", len(transactions))

	for _, txn := range transactions {
		if err := r.reconcile(ctx, txn); err != nil {
			r.logger.Error("Failed to reconcile payment transaction",
				"reference", txn.Reference,
				"status", string(txn.Status),
				"error", err,
			)
			// Next transaction; this one stays unresolved and is retried
		}
	}
	return nil
}

// reconcile resolves one transaction. A transaction that is already terminal
// but still paired with a PROCESSING withdrawal means a crash between the
// provider response and the withdrawal update; its recorded state is
// authoritative and the provider is not asked again.
func (r *Reconciler) reconcile(ctx context.Context, txn *payment.Transaction) error {
	if txn.Terminal() {
		return r.replayRecordedOutcome(ctx, txn)
	}

	result, err := r.client.QueryStatus(ctx, txn.Reference)
	r.logCall(txn.Reference, result, err)
	if err != nil {
		return fmt.Errorf("provider status query for %s failed: %w", txn.Reference, err)
	}

	switch result.Status {
	case provider.StatusSuccess:
		return r.outcome.Succeed(ctx, txn.Reference, result.RawResponse)
	case provider.StatusFailed:
		reason := result.Message
		if reason == "" {
			reason = string(shared.FailureReasonProviderRejected)
		}
		return r.outcome.Fail(ctx, txn.Reference, reason, result.RawResponse)
	default:
		r.logger.Debug("Payment still pending at provider", "reference", txn.Reference)
		return nil
	}
}

func (r *Reconciler) replayRecordedOutcome(ctx context.Context, txn *payment.Transaction) error {
	r.logger.Warn("Transaction terminal but withdrawal still processing, replaying recorded outcome",
		"reference", txn.Reference,
		"status", string(txn.Status),
	)

	if txn.Status == shared.PaymentStatusSuccess {
		return r.outcome.Succeed(ctx, txn.Reference, txn.ResponsePayload)
	}

	reason := txn.ErrorMessage
	if reason == "" {
		reason = string(shared.FailureReasonUnknownError)
	}
	return r.outcome.Fail(ctx, txn.Reference, reason, txn.ResponsePayload)
}

func (r *Reconciler) logCall(reference string, result *provider.QueryResult, callErr error) {
	if r.callLog == nil {
		return
	}

	record := &providerlog.Record{
		Reference: reference,
		Kind:      providerlog.KindQuery,
		CreatedAt: time.Now(),
	}
	if result != nil {
		record.Response = result.RawResponse
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.callLog.Append(ctx, record); err != nil {
		r.logger.Warn("Failed to archive provider call", "reference", reference, "error", err)
	}
}

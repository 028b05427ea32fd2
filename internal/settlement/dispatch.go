package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/shared"
	"github.com/rewardhub/settlement-engine/internal/provider"
)

// DispatcherConfig sizes the dispatch worker pool and bounds one attempt
type DispatcherConfig struct {
	PoolSize int
	Timeout  time.Duration
}

type poolDispatcher struct {
	pool     *ants.Pool
	payments payment.Repository
	client   provider.Client
	outcome  OutcomeHandler
	callLog  providerlog.Repository
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates the asynchronous payment dispatcher backed by a
// worker pool
func NewDispatcher(
	cfg DispatcherConfig,
	payments payment.Repository,
	client provider.Client,
	outcome OutcomeHandler,
	callLog providerlog.Repository,
	logger *slog.Logger,
) (Dispatcher, error) {
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	return &poolDispatcher{
		pool:     pool,
		payments: payments,
		client:   client,
		outcome:  outcome,
		callLog:  callLog,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

// Dispatch submits one payment transaction to the pool. Runs after the
// approving transaction committed; a full pool falls back to a plain
// goroutine rather than dropping the job.
func (d *poolDispatcher) Dispatch(txn *payment.Transaction) {
	job := func() { d.run(txn) }

	if err := d.pool.Submit(job); err != nil {
		d.logger.Warn("Dispatch pool rejected job, running in goroutine",
			"reference", txn.Reference,
			"error", err,
		)
		go job()
	}
}

func (d *poolDispatcher) Close() {
	d.pool.Release()
}

// run performs one dispatch attempt. Both an explicit provider rejection and
// a call-level failure fail the withdrawal through the outcome handler right
// away; only an accepted order stays PENDING, awaiting settlement.
func (d *poolDispatcher) run(txn *payment.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req := &provider.DisburseRequest{
		OrderNo:     txn.Reference,
		BankCode:    txn.BankCode,
		AccountNo:   txn.AccountNo,
		AccountName: txn.AccountName,
		Amount:      txn.Amount,
	}

	snapshot, err := json.Marshal(req)
	if err != nil {
		d.logger.Error("Failed to marshal dispatch snapshot", "reference", txn.Reference, "error", err)
		return
	}

	// Persist the attempt before the call so a crash mid-call is visible
	if err := d.payments.SetRequestPayload(ctx, txn.Reference, string(snapshot), time.Now()); err != nil {
		d.logger.Error("Failed to snapshot dispatch request, aborting attempt",
			"reference", txn.Reference,
			"error", err,
		)
		return
	}

	result, err := d.client.Disburse(ctx, req)
	d.logCall(txn.Reference, providerlog.KindDisburse, result, err)

	switch {
	case err == nil:
		if recordErr := d.payments.RecordResponse(ctx, txn.Reference, result.RawResponse); recordErr != nil {
			d.logger.Error("Failed to record provider acknowledgement", "reference", txn.Reference, "error", recordErr)
		}
		d.logger.Info("Provider accepted disbursement order",
			"reference", txn.Reference,
			"provider_ref", result.ProviderRef,
		)

	case errors.Is(err, provider.ErrRejected):
		reason := string(shared.FailureReasonProviderRejected)
		if result != nil && result.Message != "" {
			reason = result.Message
		}
		raw := ""
		if result != nil {
			raw = result.RawResponse
		}
		if failErr := d.outcome.Fail(ctx, txn.Reference, reason, raw); failErr != nil {
			d.logger.Error("Failed to finalize rejected dispatch", "reference", txn.Reference, "error", failErr)
		}

	default:
		// Call-level failure (timeout, connection refused): fail the order
		// now so the member's balance is refunded without waiting for a
		// poll cycle. A crash before this point still leaves a pending row
		// for the reconciler.
		d.logger.Warn("Dispatch call failed, failing the order",
			"reference", txn.Reference,
			"error", err,
		)
		raw := ""
		if result != nil {
			raw = result.RawResponse
		}
		if failErr := d.outcome.Fail(ctx, txn.Reference, err.Error(), raw); failErr != nil {
			d.logger.Error("Failed to finalize dispatch after call failure", "reference", txn.Reference, "error", failErr)
		}
	}
}

func (d *poolDispatcher) logCall(reference, kind string, result *provider.DisburseResult, callErr error) {
	if d.callLog == nil {
		return
	}

	record := &providerlog.Record{
		Reference: reference,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if result != nil {
		record.Request = result.RawRequest
		record.Response = result.RawResponse
	}
	if callErr != nil {
		record.Error = callErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.callLog.Append(ctx, record); err != nil {
		d.logger.Warn("Failed to archive provider call", "reference", reference, "error", err)
	}
}

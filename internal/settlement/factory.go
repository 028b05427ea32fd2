package settlement

import (
	"log/slog"

	"github.com/rewardhub/settlement-engine/internal/config"
	"github.com/rewardhub/settlement-engine/internal/domain/bill"
	"github.com/rewardhub/settlement-engine/internal/domain/ledger"
	"github.com/rewardhub/settlement-engine/internal/domain/payment"
	"github.com/rewardhub/settlement-engine/internal/domain/payout"
	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
	"github.com/rewardhub/settlement-engine/internal/domain/withdrawal"
	"github.com/rewardhub/settlement-engine/internal/platform/messaging/producers"
	"github.com/rewardhub/settlement-engine/internal/provider"
)

// Repositories bundles the persistence dependencies of the engine
type Repositories struct {
	Ledger      ledger.Repository
	Withdrawals withdrawal.Repository
	Bills       bill.Repository
	Payments    payment.Repository
	Accounts    payout.Repository
	CallLog     providerlog.Repository
}

// Engine exposes the wired settlement services
type Engine struct {
	Intake     IntakeService
	Admin      AdminService
	Outcome    OutcomeHandler
	Dispatcher Dispatcher
	Refunder   Refunder
	Ledger     LedgerStore
}

// NewEngine wires the settlement services with all their dependencies.
// publisher may be nil when the event topic is unavailable; settlement then
// proceeds without events.
func NewEngine(
	txRunner TxRunner,
	repos Repositories,
	client provider.Client,
	publisher producers.MessagePublisher,
	cfg *config.Config,
	logger *slog.Logger,
) (*Engine, error) {
	ledgerStore := NewLedgerStore(repos.Ledger, logger)
	refunder := NewRefunder(ledgerStore, repos.Bills, logger)
	outcome := NewOutcomeHandler(txRunner, repos.Payments, repos.Withdrawals, repos.Bills, refunder, publisher, logger)

	dispatcher, err := NewDispatcher(
		DispatcherConfig{
			PoolSize: cfg.Dispatch.PoolSize,
			Timeout:  cfg.Dispatch.Timeout,
		},
		repos.Payments,
		client,
		outcome,
		repos.CallLog,
		logger.With("component", "dispatcher"),
	)
	if err != nil {
		return nil, err
	}

	intake := NewIntakeService(txRunner, ledgerStore, repos.Withdrawals, repos.Bills, repos.Accounts, logger)
	admin := NewAdminService(
		txRunner,
		repos.Withdrawals,
		repos.Bills,
		repos.Payments,
		repos.Accounts,
		refunder,
		dispatcher,
		publisher,
		cfg.Provider.Channel,
		logger,
	)

	return &Engine{
		Intake:     intake,
		Admin:      admin,
		Outcome:    outcome,
		Dispatcher: dispatcher,
		Refunder:   refunder,
		Ledger:     ledgerStore,
	}, nil
}

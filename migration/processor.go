package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxRecordedErrors caps the per-run error list persisted for reporting.
const maxRecordedErrors = 50

// Document identifies the accounting document one mutation produced.
type Document struct {
	Kind string
	ID   int
}

const (
	DocumentKindJournalEntry    = "journal_entry"
	DocumentKindSalesInvoice    = "sales_invoice"
	DocumentKindPurchaseInvoice = "purchase_invoice"
	DocumentKindPaymentEntry    = "payment_entry"
)

// Processor turns one mutation into a balanced accounting document.
// Process returning (nil, nil) is a deliberate skip: already imported,
// zero-amount notification, duplicate invoice number. An error is a hard
// failure recorded against the run.
type Processor interface {
	Name() string
	CanProcess(m *eboekhouden.Mutation) bool
	Process(ctx context.Context, store Store, m *eboekhouden.Mutation) (*Document, error)
}

// Stats accumulates coordinator counters for one run. Single-threaded by
// design; not safe for concurrent use.
type Stats struct {
	Processed int
	Created   int
	Skipped   int
	Failed    int
}

// Coordinator routes each mutation to the first processor that claims it and
// isolates per-mutation failures so one bad mutation never aborts a batch.
type Coordinator struct {
	processors []Processor
	store      Store
	logger     *logrus.Logger
	runId      uuid.UUID

	Stats  Stats
	Errors []*models.MigrationError
}

func NewCoordinator(store Store, logger *logrus.Logger, runId uuid.UUID, processors ...Processor) *Coordinator {
	return &Coordinator{
		processors: processors,
		store:      store,
		logger:     logger,
		runId:      runId,
	}
}

// ProcessMutation runs one mutation through the processor chain inside one
// database transaction. A processor error rolls the transaction back, is
// recorded with the mutation context, and counts as failed. A mutation no
// processor claims counts as skipped and is logged, never silently dropped.
func (c *Coordinator) ProcessMutation(ctx context.Context, m *eboekhouden.Mutation) *Document {
	c.Stats.Processed++

	for _, processor := range c.processors {
		if !processor.CanProcess(m) {
			continue
		}

		var doc *Document
		err := c.store.Transaction(ctx, func(tx Store) error {
			var perr error
			doc, perr = c.safeProcess(ctx, tx, processor, m)
			return perr
		})
		if err != nil {
			c.Stats.Failed++
			c.recordError(ctx, m, processor.Name(), err)
			return nil
		}
		if doc == nil {
			c.Stats.Skipped++
			return nil
		}
		c.Stats.Created++
		return doc
	}

	c.Stats.Skipped++
	c.logger.WithFields(logrus.Fields{
		"mutation_id":   m.ID,
		"mutation_type": int(m.Type),
	}).Warn("no processor claimed mutation")
	return nil
}

// safeProcess converts a processor panic into an error so a programming
// mistake in one processor cannot take down the whole run.
func (c *Coordinator) safeProcess(ctx context.Context, store Store, processor Processor, m *eboekhouden.Mutation) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("processor %s panicked on mutation %d: %v", processor.Name(), m.ID, r)
		}
	}()
	return processor.Process(ctx, store, m)
}

func (c *Coordinator) recordError(ctx context.Context, m *eboekhouden.Mutation, processorName string, cause error) {
	mutationType := int(m.Type)
	c.logger.WithFields(logrus.Fields{
		"mutation_id":   m.ID,
		"mutation_type": mutationType,
		"processor":     processorName,
	}).WithError(cause).Error("mutation processing failed")

	if len(c.Errors) >= maxRecordedErrors {
		return
	}
	debug, _ := json.Marshal(map[string]interface{}{
		"processor":   processorName,
		"description": m.Description,
		"amount":      m.EffectiveAmount(),
		"rows":        len(m.Rows),
	})
	c.Errors = append(c.Errors, &models.MigrationError{
		RunId:        c.runId,
		MutationId:   strconv.Itoa(m.ID),
		MutationType: &mutationType,
		ErrorCode:    "process_failed",
		Message:      cause.Error(),
		DebugJSON:    debug,
		Retryable:    true,
	})
}

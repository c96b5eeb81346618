package tasks

// DefineTasks registers all available tasks on r. A nil notifier leaves send_receipt
// registered but failing, so queued receipts are retried once one is configured.
func DefineTasks(r *Registry, notifier ReceiptNotifier) {
	r.Register(LedgerAuditTask.TaskID(), LedgerAuditTask.HandleExecution)

	receipts := &SendReceiptTaskDef{Notifier: notifier}
	r.Register(receipts.TaskID(), receipts.HandleExecution)
}

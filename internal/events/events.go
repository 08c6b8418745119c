package events

// Billing event types consumed by the document/notification dispatch
// service outside this core.
const (
	TypeInvoiceCreated   = "invoice.created"
	TypeInvoiceAmended   = "invoice.amended"
	TypeInvoiceDeleted   = "invoice.deleted"
	TypeInvoiceCancelled = "invoice.cancelled"
	TypePaymentRecorded  = "payment.recorded"
	TypePaymentDeleted   = "payment.deleted"
)

package dto

// EngineMode selects the OCR backend used for extraction.
type EngineMode string

const (
	ModeAPI   EngineMode = "api"   // Typhoon cloud OCR API
	ModeLocal EngineMode = "local" // local Ollama model server
)

// DocumentType identifies the detected template for a page of OCR text.
type DocumentType string

const (
	DocTypeInvoice          DocumentType = "invoice"
	DocTypeBillingNote      DocumentType = "billing_note"
	DocTypeCYInstruction    DocumentType = "cy_instruction"
	DocTypeSahatthaiInvoice DocumentType = "sahatthai_invoice"
)

// InvoiceFields holds the values extracted from one page of OCR text.
// Monetary values are kept as the OCR produced them (comma-grouped
// strings) so the output stays auditable against the source document.
type InvoiceFields struct {
	DocumentNo     string `json:"document_no"`
	BillDate       string `json:"bill_date"`
	Amount         string `json:"amount"`
	TaxID          string `json:"tax_id"`
	Branch         string `json:"branch"`
	Description    string `json:"description,omitempty"`
	SalesPromotion string `json:"sales_promotion,omitempty"`
	TotalAmount    string `json:"total_amount,omitempty"`
	WithholdingTax string `json:"withholding_tax,omitempty"`
}

// VendorInfo is the vendor-master mapping for a (tax ID, branch) pair.
type VendorInfo struct {
	Code string `json:"vendor_code,omitempty"`
	Name string `json:"vendor_name,omitempty"`
}

// PageResult is the full extraction result for a single page.
type PageResult struct {
	SourceFile   string            `json:"source_file"`
	Page         int               `json:"page"`
	DocumentType DocumentType      `json:"document_type"`
	Fields       InvoiceFields     `json:"fields"`
	ExtraFields  map[string]string `json:"extra_fields,omitempty"`
	Vendor       VendorInfo        `json:"vendor"`
	QRPayload    string            `json:"qr_payload,omitempty"`
	RawText      string            `json:"raw_text,omitempty"`
	Engine       string            `json:"engine"`
}

// JobStatus is the lifecycle state of a background batch job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobInfo describes a batch extraction job to API clients.
type JobInfo struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	SourceDir   string    `json:"source_dir"`
	OutputDir   string    `json:"output_dir"`
	Pages       string    `json:"pages"`
	FilesTotal  int       `json:"files_total"`
	FilesDone   int       `json:"files_done"`
	RowsWritten int       `json:"rows_written"`
	Error       string    `json:"error,omitempty"`
	StartedAt   string    `json:"started_at,omitempty"`
	FinishedAt  string    `json:"finished_at,omitempty"`
}

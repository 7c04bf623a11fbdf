package internal

// SourceKind tells where a line item was extracted from.
type SourceKind string

const (
	SourceChatOriginal   SourceKind = "chat_original"
	SourceChatReply      SourceKind = "chat_reply"
	SourceSpreadsheetRow SourceKind = "spreadsheet_row"
)

// MinConfidence is the closed-world cutoff: anything below is noise and
// treated the same as no match.
const MinConfidence = 50.0

type ExtractedCandidate struct {
	ProductName string
	Quantity    float64
	Unit        string
	RawText     string
}

type MatchResult struct {
	Brand         string  `json:"brand"`
	ProductCode   string  `json:"product_code"`
	CanonicalName string  `json:"canonical_name"`
	Confidence    float64 `json:"confidence"`
}

// LineItem is the unit flowing into aggregation. Never mutated after
// creation.
type LineItem struct {
	RawProductName string     `json:"raw_product_name"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	Brand          string     `json:"brand"`
	ProductCode    string     `json:"product_code"`
	CanonicalName  string     `json:"canonical_name"`
	Confidence     float64    `json:"confidence"`
	Source         SourceKind `json:"source"`
	SourceRef      string     `json:"source_ref"`
	Memo           string     `json:"memo,omitempty"`
}

type AggregatedProduct struct {
	Brand         string     `json:"brand"`
	ProductCode   string     `json:"product_code"`
	CanonicalName string     `json:"canonical_name"`
	TotalQuantity int        `json:"total_quantity"`
	Confidence    float64    `json:"confidence"`
	SourceCount   int        `json:"source_count"`
	Sources       []string   `json:"sources"`
	Memo          string     `json:"memo,omitempty"`
	Items         []LineItem `json:"items"`
}

type ThreadSummary struct {
	ThreadIndex int    `json:"thread_index"`
	Memo        string `json:"memo"`
	ItemCount   int    `json:"item_count"`
}

type AggregationResult struct {
	ByBrand         map[string][]AggregatedProduct `json:"aggregated_by_brand"`
	Products        []AggregatedProduct            `json:"aggregated_products"`
	ThreadSummaries []ThreadSummary                `json:"thread_summaries"`
	TotalItems      int                            `json:"total_items"`
	UniqueProducts  int                            `json:"unique_products"`
	Brands          []string                       `json:"brands"`
}

type ConfidenceBands struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type ValidationReport struct {
	TotalProducts     int             `json:"total_products"`
	TotalQuantity     int             `json:"total_quantity"`
	AverageConfidence float64         `json:"average_confidence"`
	Bands             ConfidenceBands `json:"confidence_distribution"`
	SourceCounts      map[string]int  `json:"source_distribution"`
	ThreadCount       int             `json:"thread_count"`
	Passed            bool            `json:"validation_passed"`
}

// Reply is one threaded response to an original chat message.
type Reply struct {
	TS   string `json:"ts"`
	User string `json:"user"`
	Text string `json:"text"`
}

type DownloadedFile struct {
	Name     string `json:"name"`
	Filepath string `json:"filepath"`
}

// ThreadRecord is one original message plus its reply chain and any
// downloaded spreadsheet attachments, treated as one unit of context.
type ThreadRecord struct {
	TS       string           `json:"ts"`
	User     string           `json:"user"`
	UserName string           `json:"user_name,omitempty"`
	Text     string           `json:"text"`
	Replies  []Reply          `json:"thread_replies"`
	Files    []DownloadedFile `json:"downloaded_files"`
}

type RunRow struct {
	ID        int
	TraceID   string
	Threads   int
	Items     int
	Products  int
	Passed    bool
	CreatedAt string
}

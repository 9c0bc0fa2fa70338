package mistral

// ExtractionRequest describes a single OCR call. Exactly one of Path or
// Data must be set: Path reads a local file, Data carries in-memory bytes
// already received over the wire.
type ExtractionRequest struct {
	// Path is the local file to read. Ignored when Data is non-nil.
	Path string

	// Data holds the raw document bytes when the caller already has them.
	Data []byte

	// MIME is the document's MIME type. When empty it is guessed from
	// Path's extension.
	MIME string

	// Model overrides the client's configured model when non-empty.
	Model string

	// Language is an optional BCP-47 language hint forwarded upstream.
	Language string

	// OutputFormat selects the result rendering: "markdown" (default),
	// "text", or "json".
	OutputFormat string
}

// ExtractionResult is the normalized outcome of a successful OCR call.
type ExtractionResult struct {
	// Text is the extracted content, rendered per the requested format.
	Text string

	// Tokens is the upstream token count, or the pages-processed count
	// when tokens are absent. Never negative.
	Tokens int

	// Cost is the upstream-reported cost. Never negative.
	Cost float64
}

// documentPayload is the attachment half of the upstream request. The
// upstream schema discriminates on Type: "image_url" attachments carry
// ImageURL, "document_url" attachments carry DocumentURL. Only the branch
// matching Type is populated.
type documentPayload struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// ocrRequest is the wire shape of POST /v1/ocr.
type ocrRequest struct {
	Model    string          `json:"model"`
	Document documentPayload `json:"document"`
	Language string          `json:"language,omitempty"`
}

type ocrPage struct {
	Markdown string `json:"markdown"`
}

type usageBlock struct {
	TotalTokens int `json:"total_tokens"`
}

type usageInfoBlock struct {
	PagesProcessed int `json:"pages_processed"`
}

// ocrResponse is the wire shape of a successful upstream reply. Pages take
// precedence over the flat Text field; Usage takes precedence over
// UsageInfo for the token count.
type ocrResponse struct {
	Pages     []ocrPage       `json:"pages"`
	Text      string          `json:"text"`
	Usage     *usageBlock     `json:"usage"`
	UsageInfo *usageInfoBlock `json:"usage_info"`
	Cost      float64         `json:"cost"`
}

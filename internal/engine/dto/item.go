package dto

// RawItem is one search result as returned by the scrape source.
type RawItem struct {
	ID          string                 `json:"id"`
	Price       float64                `json:"price"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	SellerID    string                 `json:"seller_id"`
	Raw         map[string]interface{} `json:"raw"`
}

// FetchRequest describes one page fetch against the scrape source.
type FetchRequest struct {
	Keyword string
	Page    int
	// Proxy is an optional proxy URL such as http://1.2.3.4:8080.
	Proxy string
	// Cookie overrides the configured cookie header when non-empty.
	Cookie string
}

package payment

// SyncSummary counts the outcomes of one sync pass. Skipped records were
// claimed by a concurrent pass; StoreFailures are attempts whose result could
// not be written and are kept apart from settlement failures.
type SyncSummary struct {
	Total         int `json:"total" bson:"total"`
	Successful    int `json:"successful" bson:"successful"`
	Failed        int `json:"failed" bson:"failed"`
	Skipped       int `json:"skipped" bson:"skipped"`
	StoreFailures int `json:"store_failures" bson:"store_failures"`
}

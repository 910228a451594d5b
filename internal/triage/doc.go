// Package triage provides the business boundary for severity triage of imaging
// studies. It defines the Service (fetch, classify, rank, persist), the
// classification Adapter, the Response Parser, the Upload Namer, the Severity
// Ranker, the persistence Gateway over a Store interface, and domain models.
package triage

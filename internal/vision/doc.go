// Package vision is the boundary to the external OCR/vision collaborator.
// It extracts line items from a receipt photo and re-verifies previously
// extracted items, flagging suspicious ones with verification issues. Calls
// go through a circuit breaker so a degraded model API fails fast.
package vision

// Package checkpoint provides the durable progress record for conversion
// runs. It tracks which work units are completed, failed, or claimed by an
// in-flight worker, arbitrates claims between concurrent workers, and
// flushes every state change to disk before acknowledging it, so an
// interrupted run resumes without reprocessing finished units.
//
// The backing document is created or validated inside Open, before any
// worker can touch the store. A document that exists but cannot be decoded
// makes Open fail with a checkpoint corruption error instead of resetting
// it, since a silent reset would re-run (and re-bill) the entire dataset.
package checkpoint

// Package extractor names the supervisory contract to the out-of-process
// metadata extractor. The extractor process itself — and
// any sandboxing, ontology, or content-parsing it performs — is out of
// scope for this core; only the shape of the contract it participates in
// is specified here.
package extractor

// Hasher reports the opaque module/version tag the extractor would use to
// process a file of the given mimetype. The FileNotifier compares this
// against the hash recorded in the store to detect ExtractorUpdate:
// a file whose mtime hasn't changed but whose extractor module has.
type Hasher interface {
	Hash(mimetype string) string
}

// NopHasher always reports no extractor module, which disables
// ExtractorUpdate detection. Useful for tests and for deployments that
// don't run a metadata extractor at all.
type NopHasher struct{}

// Hash implements Hasher.
func (NopHasher) Hash(string) string { return "" }

// Package opc parses Open Packaging Conventions containers (the XML-in-Zip
// format behind .docx, .xlsx, .pptx and their macro-enabled variants) into
// a structural model built for security analysis of untrusted files.
//
// A package is read into three layers:
//   - Parts: every non-directory archive entry, with a normalised name
//     and a lazily decompressed, cached byte stream
//   - Content-Types: the [Content_Types].xml Default and Override rules,
//     resolving a media type for every Part name
//   - Relationships: every _rels/*.rels manifest, resolved into a directed
//     multigraph with outgoing, incoming and by-type indexes
//
// Higher-level questions (which Part is the main document, does the
// package carry macros or embedded OLE objects, what do the core
// properties say) are answered by queries over those layers.
//
// # Basic Usage
//
//	doc, err := opc.OpenFile("invoice.docm")
//	if err != nil {
//		return err // the container itself is unreadable
//	}
//	for _, w := range doc.Warnings() {
//		log.Println(w)
//	}
//	if doc.HasFeature("macros") {
//		vba := doc.PartsByRelationshipType(opc.RelTypeVBAProject)
//		...
//	}
//
// # Security Considerations
//
// Inputs are assumed hostile. Entry counts and decompressed sizes are
// bounded by [Limits] before anything is inflated, entry names and
// relationship targets can never resolve outside the package root, and
// cyclic relationship graphs are walked with visited sets. Only an
// unparseable container is fatal; every other anomaly (malformed
// manifests, dangling references, duplicate entries, oversized entries,
// prepended data) is recorded as a [Warning] and the model is built from
// what remains.
//
// A Document is immutable once returned and safe for concurrent use.
package opc

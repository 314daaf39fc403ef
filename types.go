package opc

// Version is the version of this library's report schema.
const Version uint16 = 1

const (
	// ContentTypesPartName is the package-wide Content-Types manifest.
	ContentTypesPartName = "/[Content_Types].xml"

	// PackageRoot is the source name used for relationships declared in
	// /_rels/.rels, which describe the package itself rather than a Part.
	PackageRoot = "/"

	relsDir    = "_rels"
	relsSuffix = ".rels"
)

// TargetMode says whether a Relationship points inside the package.
type TargetMode uint8

const (
	TargetInternal TargetMode = iota
	TargetExternal
)

func (m TargetMode) String() string {
	if m == TargetExternal {
		return "External"
	}
	return "Internal"
}

// XML namespaces of the package-level manifests.
const (
	NamespaceContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	NamespaceRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	NamespaceCoreProps     = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	NamespaceDC            = "http://purl.org/dc/elements/1.1/"
	NamespaceDCTerms       = "http://purl.org/dc/terms/"
	NamespaceExtendedProps = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
)

// Well-known relationship types. Transitional and Strict OOXML use
// different URIs for the same concept; both are listed where it matters.
const (
	RelTypeOfficeDocument       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelTypeOfficeDocumentStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships/officeDocument"
	RelTypeCoreProperties       = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	RelTypeCorePropertiesStrict = "http://schemas.openxmlformats.org/officedocument/2006/relationships/metadata/core-properties"
	RelTypeExtendedProperties   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	RelTypeExtendedPropsStrict  = "http://purl.oclc.org/ooxml/officeDocument/relationships/extendedProperties"
	RelTypeThumbnail            = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/thumbnail"
	RelTypeDigitalSignature     = "http://schemas.openxmlformats.org/package/2006/relationships/digital-signature/origin"

	RelTypeVBAProject       = "http://schemas.microsoft.com/office/2006/relationships/vbaProject"
	RelTypeXLMacrosheet     = "http://schemas.microsoft.com/office/2006/relationships/xlMacrosheet"
	RelTypeXLIntlMacrosheet = "http://schemas.microsoft.com/office/2006/relationships/xlIntlMacrosheet"
	RelTypeOLEObject        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/oleObject"
	RelTypePackage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/package"
	RelTypeControl          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/control"
	RelTypeActiveXBinary    = "http://schemas.microsoft.com/office/2006/relationships/activeXControlBinary"
	RelTypeVideo            = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/video"
	RelTypeAudio            = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/audio"
	RelTypeMedia            = "http://schemas.microsoft.com/office/2007/relationships/media"
	RelTypeAttachedTemplate = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/attachedTemplate"
	RelTypeFrame            = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/frame"
	RelTypeHyperlink        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Content types referenced by the built-in features.
const (
	ContentTypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	ContentTypeVBAProject    = "application/vnd.ms-office.vbaProject"
	ContentTypeOLEObject     = "application/vnd.openxmlformats-officedocument.oleObject"
	ContentTypeActiveX       = "application/vnd.ms-office.activeX+xml"
	ContentTypeMacrosheet    = "application/vnd.ms-excel.macrosheet+xml"
)

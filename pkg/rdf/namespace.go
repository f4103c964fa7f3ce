package rdf

// Namespace is an IRI prefix that terms can be created under.
type Namespace string

// Term creates an IRI inside the namespace.
func (n Namespace) Term(local string) IRI {
	return IRI(string(n) + local)
}

// Vocabulary namespaces used by the conversion output.
const (
	NSGeo  Namespace = "http://www.opengis.net/ont/geosparql#"
	NSProv Namespace = "http://www.w3.org/ns/prov#"
	NSRDF  Namespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS Namespace = "http://www.w3.org/2000/01/rdf-schema#"
	NSXSD  Namespace = "http://www.w3.org/2001/XMLSchema#"
	NSDC   Namespace = "http://purl.org/dc/terms/"
	NSExif Namespace = "http://www.w3.org/2003/12/exif/ns#"
	NSHal  Namespace = "https://halcyon.is/ns/"
	NSSO   Namespace = "https://schema.org/"
	NSSno  Namespace = "http://snomed.info/id/"
)

// Frequently used terms.
var (
	RDFType = NSRDF.Term("type")

	RDFSMember = NSRDFS.Term("member")

	GeoFeature           = NSGeo.Term("Feature")
	GeoFeatureCollection = NSGeo.Term("FeatureCollection")
	GeoHasGeometry       = NSGeo.Term("hasGeometry")
	GeoAsWKT             = NSGeo.Term("asWKT")
	GeoWKTLiteral        = NSGeo.Term("wktLiteral")

	ProvActivity       = NSProv.Term("Activity")
	ProvWasGeneratedBy = NSProv.Term("wasGeneratedBy")
	ProvUsed           = NSProv.Term("used")

	DCTitle       = NSDC.Term("title")
	DCCreator     = NSDC.Term("creator")
	DCDate        = NSDC.Term("date")
	DCDescription = NSDC.Term("description")
	DCIdentifier  = NSDC.Term("identifier")

	ExifWidth  = NSExif.Term("width")
	ExifHeight = NSExif.Term("height")

	HalExecutionID    = NSHal.Term("executionId")
	HalClassification = NSHal.Term("classification")
	HalMeasurement    = NSHal.Term("measurement")
	HalHasProbability = NSHal.Term("hasProbability")

	SOImageObject = NSSO.Term("ImageObject")

	XSDInteger  = NSXSD.Term("integer")
	XSDFloat    = NSXSD.Term("float")
	XSDDateTime = NSXSD.Term("dateTime")
)

type prefixBinding struct {
	prefix string
	ns     Namespace
}

// defaultPrefixes is the prefix table bound into every graph, in the order
// the @prefix block is emitted. Order is fixed so serialization stays
// byte-stable across runs.
var defaultPrefixes = []prefixBinding{
	{"dc", NSDC},
	{"exif", NSExif},
	{"geo", NSGeo},
	{"hal", NSHal},
	{"prov", NSProv},
	{"rdf", NSRDF},
	{"rdfs", NSRDFS},
	{"sno", NSSno},
	{"so", NSSO},
	{"xsd", NSXSD},
}

package rdf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"geoetl/pkg/models"
)

// Creator stamped into every feature collection header.
const Creator = "http://orcid.org/0000-0003-4165-4062"

// DefaultClassification is the SNOMED concept for nuclear material, used
// when a mark carries no classification of its own.
const DefaultClassification = "68841002"

// BatchBuilder assembles the RDF graph for one output batch: a shared
// header (image container plus provenance activity) and one feature per
// converted mark. Node labels derive only from the batch sequence and the
// per-unit mark counter, so rebuilding the same batch yields an identical
// graph.
type BatchBuilder struct {
	g  *Graph
	fc IRI
}

// NewBatchBuilder creates the graph for batch seq of the given analysis and
// writes the shared header. The header's dc:date comes from the analysis
// document's creation time rather than the wall clock, keeping re-runs
// byte-identical.
func NewBatchBuilder(analysis models.Analysis, seq int) *BatchBuilder {
	g := NewGraph()

	imageHash := sha256.Sum256([]byte(analysis.Key.ImageID))
	imageURI := IRI("urn:sha256:" + hex.EncodeToString(imageHash[:]))
	caseID := analysis.CaseID
	if caseID == "" {
		caseID = analysis.Key.ImageID
	}

	g.Add(imageURI, RDFType, SOImageObject)
	g.Add(imageURI, DCIdentifier, Text(caseID))
	g.Add(imageURI, ExifWidth, Integer(analysis.ImageWidth))
	g.Add(imageURI, ExifHeight, Integer(analysis.ImageHeight))

	// the document base <> is the feature collection
	fc := IRI("")
	g.Add(fc, RDFType, GeoFeatureCollection)
	g.Add(fc, DCCreator, Text(Creator))
	g.Add(fc, DCDate, DateTime(analysis.CreatedAt))
	g.Add(fc, DCDescription, Text(fmt.Sprintf("Nuclear segmentation for %s batch %d", caseID, seq)))
	g.Add(fc, DCTitle, Text("nuclear-segmentation-predictions"))
	g.Add(fc, HalExecutionID, Text(analysis.Key.ExecutionID))

	prov := Blank(fmt.Sprintf("prov_%d", seq))
	g.Add(fc, ProvWasGeneratedBy, prov)
	g.Add(prov, RDFType, ProvActivity)
	g.Add(prov, ProvUsed, imageURI)

	return &BatchBuilder{g: g, fc: fc}
}

// AddFeature appends one converted mark. wkt is the image-space geometry;
// counter is the mark's ordinal within its unit, carried across batches so
// node labels never collide between a unit's artifacts.
func (b *BatchBuilder) AddFeature(wkt string, mark models.Mark, counter int) {
	feature := Blank(fmt.Sprintf("f%d", counter))
	b.g.Add(b.fc, RDFSMember, feature)
	b.g.Add(feature, RDFType, GeoFeature)

	geom := Blank(fmt.Sprintf("g%d", counter))
	b.g.Add(feature, GeoHasGeometry, geom)
	b.g.Add(geom, GeoAsWKT, WKT(wkt))

	classification := mark.Classification
	if classification == "" {
		classification = DefaultClassification
	}
	snomed := NSSno.Term(classification)
	b.g.Add(feature, HalClassification, snomed)

	meas := Blank(fmt.Sprintf("m%d", counter))
	b.g.Add(feature, HalMeasurement, meas)
	b.g.Add(meas, HalClassification, snomed)
	b.g.Add(meas, HalHasProbability, Float(mark.Probability))
}

// Graph returns the assembled batch graph.
func (b *BatchBuilder) Graph() *Graph {
	return b.g
}

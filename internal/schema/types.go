package schema

// Bucket names one of the three Phase 1 overlap collections. The value is the
// JSON key the model is asked to emit.
type Bucket string

const (
	BucketCore        Bucket = "items"
	BucketOuter       Bucket = "outerField"
	BucketCompression Bucket = "compression"
)

// Buckets lists every bucket in payload order.
var Buckets = []Bucket{BucketCore, BucketOuter, BucketCompression}

// Alias returns the alternate JSON key accepted for the bucket, or "".
func (b Bucket) Alias() string {
	switch b {
	case BucketCore:
		return "core"
	case BucketOuter:
		return "outer"
	}
	return ""
}

// Label is the human-readable bucket name used in prompts and errors.
func (b Bucket) Label() string {
	switch b {
	case BucketCore:
		return "core"
	case BucketOuter:
		return "outer field"
	case BucketCompression:
		return "compression"
	}
	return string(b)
}

// UnspecifiedWorld is the world label used when the model omits one.
const UnspecifiedWorld = "unspecified"

// Item is a single validated overlap statement.
type Item struct {
	World   string   `json:"world"`
	Anchors []string `json:"anchors"`
	Seed    string   `json:"seed,omitempty"`
	Text    string   `json:"overlap"`
}

// Phase1Payload is the validated discovery result. It is built per request
// and handed to report authoring; nothing else holds a reference to it.
type Phase1Payload struct {
	Items       []Item `json:"items"`
	OuterField  []Item `json:"outerField"`
	Compression []Item `json:"compression"`
}

// Bucket returns the items held in bucket b.
func (p *Phase1Payload) Bucket(b Bucket) []Item {
	switch b {
	case BucketCore:
		return p.Items
	case BucketOuter:
		return p.OuterField
	case BucketCompression:
		return p.Compression
	}
	return nil
}

// Sizes returns the item count of each bucket in payload order.
func (p *Phase1Payload) Sizes() [3]int {
	return [3]int{len(p.Items), len(p.OuterField), len(p.Compression)}
}

// Range is an inclusive [Min, Max] cardinality bound.
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether n lies within the range.
func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// Bounds holds the cardinality bound of each bucket.
type Bounds struct {
	Core        Range `json:"core" yaml:"core"`
	Outer       Range `json:"outer" yaml:"outer"`
	Compression Range `json:"compression" yaml:"compression"`
}

// DefaultBounds returns the bucket bounds the discovery prompt asks for.
func DefaultBounds() Bounds {
	return Bounds{
		Core:        Range{Min: 12, Max: 18},
		Outer:       Range{Min: 12, Max: 25},
		Compression: Range{Min: 5, Max: 10},
	}
}

// For returns the bound that applies to bucket b.
func (bs Bounds) For(b Bucket) Range {
	switch b {
	case BucketCore:
		return bs.Core
	case BucketOuter:
		return bs.Outer
	default:
		return bs.Compression
	}
}

// Envelope is the machine-readable output of a generation run.
type Envelope struct {
	Tool    string         `json:"tool"`
	Version string         `json:"version"`
	Input   Input          `json:"input"`
	Report  string         `json:"report"`
	Phase1  *Phase1Payload `json:"phase1,omitempty"`
	Meta    Meta           `json:"meta"`
}

// Input captures the parameters of a run.
type Input struct {
	PremiseHash string `json:"premise_hash"` // SHA-256 of the normalized premise
	StyleID     string `json:"style_id"`
	Style       string `json:"resolved_style"`
	Anchor      string `json:"anchor"`
}

// Meta holds runtime metadata about the generation calls.
type Meta struct {
	Phase1Model    string `json:"phase1_model"`
	Phase2Model    string `json:"phase2_model"`
	Phase1Attempts int    `json:"phase1_attempts"`
	Phase2Attempts int    `json:"phase2_attempts"`
	Revision       string `json:"revision,omitempty"`
}

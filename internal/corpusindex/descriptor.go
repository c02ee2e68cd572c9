// Package corpusindex resolves the on-disk index described by a
// descriptor JSON file into the byte readers and lookup tables the
// query engine evaluates over (spec §3, §4.4, §6).
package corpusindex

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/latintext/corpusquery/internal/corpuserr"
)

// RowEntry is one labelled sub-range of tokens within a work.
type RowEntry struct {
	Section    string `json:"section"`
	FirstToken uint32 `json:"firstToken"`
	TokenCount uint32 `json:"tokenCount"`
}

// WorkEntry is one work's metadata and row table, as recorded in the
// descriptor's workLookup array.
type WorkEntry struct {
	ID         uint32     `json:"id"`
	Name       string     `json:"name"`
	Author     string     `json:"author"`
	FirstToken uint32     `json:"firstToken"`
	TokenCount uint32     `json:"tokenCount"`
	Rows       []RowEntry `json:"rows"`
}

// Stats mirrors the descriptor's corpus-wide counters.
type Stats struct {
	TotalWords     uint64 `json:"totalWords"`
	TotalWorks     uint64 `json:"totalWorks"`
	UniqueWords    uint64 `json:"uniqueWords"`
	UniqueLemmata  uint64 `json:"uniqueLemmata"`
}

// IndexEntry points at one (category, value) posting's payload within
// the buffer file. Exactly one of Len (list) or NumSet (bitmap) is
// meaningful, distinguished by the caller checking which is nonzero is
// NOT reliable (an empty list still has Len==0); instead resolution
// reads the payload shape from the entry's declared Kind.
type IndexEntry struct {
	Offset uint64 `json:"offset"`
	Len    uint64 `json:"len,omitempty"`    // element count, list shape
	NumSet uint64 `json:"numSet,omitempty"` // popcount, bitmap shape
	Kind   string `json:"kind"`             // "list" or "bitmap"
}

// Descriptor is the decoded form of the index descriptor JSON (spec §6).
type Descriptor struct {
	WorkLookup   []WorkEntry                      `json:"workLookup"`
	AuthorLookup map[string][]uint32              `json:"authorLookup"` // author code -> work ids
	Stats        Stats                            `json:"stats"`
	RawTextPath              string                          `json:"rawTextPath"`
	RawBufferPath            string                          `json:"rawBufferPath"`
	TokenStartsPath          string                          `json:"tokenStartsPath"`
	InflectionsRawBufferPath string                          `json:"inflectionsRawBufferPath"`
	InflectionsOffsetsPath   string                          `json:"inflectionsOffsetsPath"`
	Indices      map[string]map[string]IndexEntry `json:"indices"` // category -> value -> entry
	IDTable      map[string]map[string]uint32     `json:"idTable"` // category -> value -> id
	NumTokens    uint64                           `json:"numTokens"`
}

// descriptorSchema describes the required top-level descriptor fields.
// Validation failure is reported as an IndexOpenError (spec SPEC_FULL §6).
var descriptorSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"workLookup":               {Type: "array"},
		"authorLookup":             {Type: "object"},
		"stats":                    {Type: "object"},
		"rawTextPath":              {Type: "string"},
		"rawBufferPath":            {Type: "string"},
		"tokenStartsPath":          {Type: "string"},
		"inflectionsRawBufferPath": {Type: "string"},
		"inflectionsOffsetsPath":   {Type: "string"},
		"indices":                  {Type: "object"},
		"idTable":                  {Type: "object"},
		"numTokens":                {Type: "integer"},
	},
	Required: []string{
		"workLookup", "authorLookup", "stats", "rawTextPath", "rawBufferPath",
		"tokenStartsPath", "inflectionsRawBufferPath", "inflectionsOffsetsPath",
		"indices", "idTable", "numTokens",
	},
}

// LoadDescriptor reads, schema-validates, and decodes the descriptor at path.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, corpuserr.NewIndexOpenError(path, "cannot read descriptor file", err)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, corpuserr.NewIndexOpenError(path, "descriptor is not valid JSON", err)
	}

	resolved, err := descriptorSchema.Resolve(nil)
	if err != nil {
		return nil, corpuserr.NewIndexOpenError(path, "internal descriptor schema failed to resolve", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, corpuserr.NewIndexOpenError(path, "descriptor failed schema validation", err)
	}

	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, corpuserr.NewIndexOpenError(path, "descriptor did not decode into the expected shape", err)
	}
	return &d, nil
}

// LookupID returns the numeric id assigned to value within category
// (feature code or lemma id table), or false if unknown. Unknown atoms
// are not errors (spec §7) — callers turn a false return into an empty
// posting.
func (d *Descriptor) LookupID(category, value string) (uint32, bool) {
	table, ok := d.IDTable[category]
	if !ok {
		return 0, false
	}
	id, ok := table[value]
	return id, ok
}

// LookupEntry returns the posting location for (category, value).
func (d *Descriptor) LookupEntry(category, value string) (IndexEntry, bool) {
	table, ok := d.Indices[category]
	if !ok {
		return IndexEntry{}, false
	}
	e, ok := table[value]
	return e, ok
}

// KnownValues returns every value known for category, for suggestion
// lookups (SPEC_FULL §4.5).
func (d *Descriptor) KnownValues(category string) []string {
	table, ok := d.Indices[category]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(table))
	for v := range table {
		out = append(out, v)
	}
	return out
}

// KnownAuthors returns every author code recorded in authorLookup.
func (d *Descriptor) KnownAuthors() []string {
	out := make([]string, 0, len(d.AuthorLookup))
	for a := range d.AuthorLookup {
		out = append(out, a)
	}
	return out
}

func (e IndexEntry) String() string {
	if e.Kind == "bitmap" {
		return fmt.Sprintf("bitmap@%d (popcount=%d)", e.Offset, e.NumSet)
	}
	return fmt.Sprintf("list@%d (len=%d)", e.Offset, e.Len)
}

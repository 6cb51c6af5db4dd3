// Package imports implements the bundle import pipeline: parsing raw
// bundle/CSV inputs into draft entities, validating them against current
// inventory state, and applying them as create/update/skip upserts.
package imports

// Source records where a draft entity came from in the raw input, e.g.
// "data.ip_assets[3]" or "hosts.csv:line 2".
type Source struct {
	Location string
}

// Field returns a copy of the source narrowed to a single field, e.g.
// "data.hosts[2].vendor_name".
func (s Source) Field(name string) Source {
	if s.Location == "" {
		return s
	}
	return Source{Location: s.Location + "." + name}
}

func (s Source) location() string {
	if s.Location == "" {
		return "import"
	}
	return s.Location
}

// Vendor is a draft vendor parsed from an import input.
type Vendor struct {
	Name   string
	Source Source
}

// Project is a draft project. Nil optional fields mean the input did not
// mention them, so an update keeps the existing value.
type Project struct {
	Name        string
	Description *string
	Color       *string
	Source      Source
}

// Host is a draft host. ProjectName, OSIP and BMCIP are CSV conveniences
// consumed during parsing; they never reach the validator or applier.
type Host struct {
	Name       string
	Notes      *string
	VendorName *string
	Source     Source

	ProjectName *string
	OSIP        *string
	BMCIP       *string
}

// IPAsset is a draft IP asset.
//
// Tags is three-valued: nil means the input did not mention tags, an empty
// slice means "clear all tags". NotesProvided marks a draft that explicitly
// mentions notes even when Notes is nil, so an update can clear them.
type IPAsset struct {
	IPAddress   string
	AssetType   string
	ProjectName *string
	HostName    *string
	Notes       *string
	Archived    *bool
	Tags        []string
	Source      Source

	NotesProvided         bool
	PreserveExistingNotes bool
	MergeTags             bool
}

// Bundle is the parsed form of one import input, ready for validation.
type Bundle struct {
	Vendors  []Vendor
	Projects []Project
	Hosts    []Host
	IPAssets []IPAsset
}

// Issue levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Issue is a single validation or apply finding tied to an input location.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
	Level    string `json:"level"`
}

func errorIssue(src Source, message string) Issue {
	return Issue{Location: src.location(), Message: message, Level: LevelError}
}

func warningIssue(location, message string) Issue {
	return Issue{Location: location, Message: message, Level: LevelWarning}
}

// ValidationResult collects every issue found in one validation pass.
type ValidationResult struct {
	Errors   []Issue
	Warnings []Issue
}

func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

// EntitySummary counts the upsert decisions for one entity kind.
type EntitySummary struct {
	WouldCreate int `json:"would_create"`
	WouldUpdate int `json:"would_update"`
	WouldSkip   int `json:"would_skip"`
}

// Summary breaks down upsert decisions per entity kind.
type Summary struct {
	Vendors  EntitySummary `json:"vendors"`
	Projects EntitySummary `json:"projects"`
	Hosts    EntitySummary `json:"hosts"`
	IPAssets EntitySummary `json:"ip_assets"`
}

// Total sums the per-kind counters.
func (s Summary) Total() EntitySummary {
	return EntitySummary{
		WouldCreate: s.Vendors.WouldCreate + s.Projects.WouldCreate + s.Hosts.WouldCreate + s.IPAssets.WouldCreate,
		WouldUpdate: s.Vendors.WouldUpdate + s.Projects.WouldUpdate + s.Hosts.WouldUpdate + s.IPAssets.WouldUpdate,
		WouldSkip:   s.Vendors.WouldSkip + s.Projects.WouldSkip + s.Hosts.WouldSkip + s.IPAssets.WouldSkip,
	}
}

// ApplyResult is the uniform outcome of a pipeline run: either a parse or
// validation failure (Errors set, Summary zero) or an apply/dry-run summary
// with advisory warnings.
type ApplyResult struct {
	Summary  Summary `json:"summary"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// ParseError is a fatal input failure raised before validation. Location
// points at the offending part of the input.
type ParseError struct {
	Location string
	Message  string
}

func (e *ParseError) Error() string { return e.Message }

func parseError(message string) *ParseError {
	return &ParseError{Location: "import", Message: message}
}

func parseErrorAt(location, message string) *ParseError {
	return &ParseError{Location: location, Message: message}
}

// Options carry caller-supplied importer knobs.
type Options struct {
	// DefaultAssetType is applied to drafts whose input has no type column
	// of its own (Nmap scan results).
	DefaultAssetType string
}

// Importer turns raw named inputs into a draft bundle.
type Importer interface {
	Parse(inputs map[string][]byte, opts Options) (*Bundle, error)
}

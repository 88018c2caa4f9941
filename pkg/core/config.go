package core

import "time"

// Direction says which way records move relative to the configuration's
// home project.
type Direction string

// Transfer directions.
const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
)

// TriggerKind says what starts a transfer run.
type TriggerKind string

// Trigger kinds.
const (
	// TriggerManual runs on explicit user request.
	TriggerManual TriggerKind = "manual"
	// TriggerSave runs when a record is saved in the source project,
	// scoped to that single record.
	TriggerSave TriggerKind = "save"
	// TriggerSchedule runs inside configured day/hour windows.
	TriggerSchedule TriggerKind = "schedule"
)

// LocationKind distinguishes a project hosted in the local platform
// database from one reached over a remote API.
type LocationKind string

// Project location kinds.
const (
	LocationLocal LocationKind = "local"
	LocationAPI   LocationKind = "api"
)

// ProjectLocation identifies one side of a transfer.
type ProjectLocation struct {
	Kind      LocationKind `json:"kind"`
	ProjectID string       `json:"projectId,omitempty"`
	APIURL    string       `json:"apiUrl,omitempty"`
	APIToken  string       `json:"apiToken,omitempty"`
}

// Valid reports whether the location carries what its kind needs.
func (l ProjectLocation) Valid() bool {
	switch l.Kind {
	case LocationLocal:
		return l.ProjectID != ""
	case LocationAPI:
		return l.APIURL != "" && l.APIToken != ""
	default:
		return false
	}
}

// MatchStrategy pairs a source record with at most one destination record.
type MatchStrategy struct {
	// Secondary, when set, matches on a configured unique field pair
	// instead of the primary record identifier.
	SourceField      string `json:"sourceField,omitempty"`
	DestinationField string `json:"destinationField,omitempty"`
}

// ByPrimary reports whether matching uses the primary record identifier.
func (m MatchStrategy) ByPrimary() bool {
	return m.SourceField == "" && m.DestinationField == ""
}

// CreatePolicy says whether unmatched source records create new
// destination records.
type CreatePolicy string

// Create policies.
const (
	// CreateNever skips unmatched records.
	CreateNever CreatePolicy = "never"
	// CreateAlways creates a destination record for every unmatched
	// source record. At risk of duplication if a run is retried after a
	// partial failure, since creates are not id-matched.
	CreateAlways CreatePolicy = "always"
	// CreateMapped creates only records listed in an explicit ID mapping.
	CreateMapped CreatePolicy = "mapped"
)

// OverwritePolicy says what blank source values do to existing destination
// values.
type OverwritePolicy string

// Overwrite policies.
const (
	// OverwriteSkipBlanks leaves destination values alone when the source
	// value is blank.
	OverwriteSkipBlanks OverwritePolicy = "skip-blanks"
	// OverwriteWithBlanks lets blank source values clear destination
	// values.
	OverwriteWithBlanks OverwritePolicy = "overwrite-with-blanks"
)

// ScheduleWindow is one allowed (day-of-week, hour) slot for scheduled
// runs.
type ScheduleWindow struct {
	Day  int `json:"day"`  // 0 (Sunday) through 6
	Hour int `json:"hour"` // 0 through 23
}

// Schedule holds scheduling metadata for schedule-triggered
// configurations.
type Schedule struct {
	Windows       []ScheduleWindow `json:"windows"`
	MaxRunsPerDay int              `json:"maxRunsPerDay"` // 0 means unlimited
}

// Allows reports whether the schedule permits a run at the given time.
func (s Schedule) Allows(day, hour int) bool {
	for _, w := range s.Windows {
		if w.Day == day && w.Hour == hour {
			return true
		}
	}
	return false
}

// TransferConfig is one persisted transfer configuration. It is created by
// a user and mutated only by its owner or a superuser.
type TransferConfig struct {
	ID        string
	ProjectID string
	Name      string
	Owner     string
	Enabled   bool

	Direction   Direction
	Source      ProjectLocation
	Destination ProjectLocation
	Trigger     TriggerKind

	Match     MatchStrategy
	Create    CreatePolicy
	CreateIDs map[string]string // source ID -> destination ID, for CreateMapped
	Overwrite OverwritePolicy

	// FilterLogic optionally narrows the candidate record set, in the
	// source platform's logic syntax. Passed through to the source.
	FilterLogic string

	BatchSize int

	// RetryFailedBatches re-queues the record IDs of failed batches on the
	// next scheduled run instead of requiring a manual re-trigger.
	RetryFailedBatches bool

	FieldMap FieldMap
	DagMap   DagMap
	Schedule Schedule

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate performs the pre-run configuration checks. A disabled
// configuration and a structurally invalid one fail with distinct errors
// so callers can report them separately.
func (c *TransferConfig) Validate() error {
	if !c.Enabled {
		return &ConfigDisabledError{Name: c.Name}
	}
	var reasons []string
	if c.Direction != DirectionImport && c.Direction != DirectionExport {
		reasons = append(reasons, "direction must be import or export")
	}
	if !c.Source.Valid() {
		reasons = append(reasons, "source location is incomplete")
	}
	if !c.Destination.Valid() {
		reasons = append(reasons, "destination location is incomplete")
	}
	if len(c.FieldMap) == 0 {
		reasons = append(reasons, "field map is empty")
	}
	if c.BatchSize < 1 {
		reasons = append(reasons, "batch size must be at least 1")
	}
	if err := c.DagMap.Validate(); err != nil {
		reasons = append(reasons, err.Error())
	}
	if len(reasons) > 0 {
		return &ConfigInvalidError{Name: c.Name, Reasons: reasons}
	}
	return nil
}

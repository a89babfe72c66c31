package couchboot

// SortField describes one ordering criterion. Field may be the Go struct
// field name or the document (json) field name; both resolve to the same
// document field.
type SortField struct {
	Field      string `json:"field"`
	Direction  int    `json:"direction"` // >= 0 ascending, < 0 descending
	IgnoreCase bool   `json:"ignoreCase"`
}

func (s SortField) ascending() bool {
	return s.Direction >= 0
}

// PageRequest is zero-based: Page 0 with Size 10 covers rows 0-9.
type PageRequest struct {
	Page int         `json:"page"`
	Size int         `json:"size"`
	Sort []SortField `json:"sort"`
}

func (p PageRequest) offset() int {
	return p.Page * p.Size
}

type PageResponse[T any] struct {
	Contents         []T         `json:"content"`
	NumberOfElements int         `json:"numberOfElements"`
	Pageable         PageRequest `json:"pageable"`
	TotalPages       int         `json:"totalPages"`
	TotalElements    int         `json:"totalElements"`
}

// ScanConsistency controls whether queries observe the effects of recent
// writes. The repository default is strong consistency; methods may override.
type ScanConsistency int

const (
	ConsistencyStrong ScanConsistency = iota
	ConsistencyEventual
)

// N1QLToken returns the scan_consistency token sent with declarative queries.
func (c ScanConsistency) N1QLToken() string {
	if c == ConsistencyEventual {
		return "not_bounded"
	}
	return "request_plus"
}

// ViewStale returns the stale parameter for view queries: false means the
// index is updated before the query runs.
func (c ScanConsistency) ViewStale() bool {
	return c == ConsistencyEventual
}

func (c ScanConsistency) String() string {
	return c.N1QLToken()
}

type Document interface {
	GetCollectionName() string
}

package media

type AssetType string

const (
	AssetTypeUpload   AssetType = "upload"   // registration reference photos
	AssetTypeSighting AssetType = "sighting" // camera captures logged with a sighting
)

// ProbeOptions controls how a camera probe is normalised before extraction
type ProbeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// Metadata holds the image facts the registry cares about
type Metadata struct {
	Width     *int     `json:"width,omitempty"`
	Height    *int     `json:"height,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	TakenAt   *int64   `json:"taken_at,omitempty"`
}

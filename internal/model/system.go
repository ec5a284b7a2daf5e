package model

// SystemMode describes the controller redundancy of the system
type SystemMode string

const (
	SystemModeDuplex  SystemMode = "duplex"
	SystemModeSimplex SystemMode = "simplex"
)

// SystemRecord is the subset of the system record needed to reach peer services
type SystemRecord struct {
	Name       string     `json:"name"`
	RegionName string     `json:"region_name"`
	SystemType string     `json:"system_type"`
	SystemMode SystemMode `json:"system_mode"`
}

// IsSimplex reports whether the system runs a single controller
func (s *SystemRecord) IsSimplex() bool {
	return s.SystemMode == SystemModeSimplex
}

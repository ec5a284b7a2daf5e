package model

// CephHealth is the overall health string reported by ceph
type CephHealth string

const (
	CephHealthOK   CephHealth = "HEALTH_OK"
	CephHealthWarn CephHealth = "HEALTH_WARN"
	CephHealthErr  CephHealth = "HEALTH_ERR"
)

// MinStorMonitors is the smallest monitor quorum the storage cluster tolerates
const MinStorMonitors = 2

// CephQuorumStatus summarises ceph health and monitor quorum membership
type CephQuorumStatus struct {
	OverallHealth CephHealth `json:"overall_health"`
	QuorumNames   []string   `json:"quorum_names"`
}

// MonitorStatus is the result of comparing inventory monitors with the ceph quorum
type MonitorStatus struct {
	Active      int      `json:"active"`
	Required    int      `json:"required"`
	ActiveNames []string `json:"active_names"`
}

// HasQuorum reports whether enough monitors are active
func (m MonitorStatus) HasQuorum() bool {
	return m.Active >= m.Required
}

package model

// ServiceNodeRequest is the body sent to the service manager for a host action
type ServiceNodeRequest struct {
	Origin string `json:"origin"`
	Action string `json:"action"`
	Admin  string `json:"admin"`
	Oper   string `json:"oper"`
	Avail  string `json:"avail"`
}

// ServiceNode is the service manager view of a host
type ServiceNode struct {
	Hostname string `json:"name"`
	State    string `json:"state"`
	Admin    string `json:"administrative_state"`
	Oper     string `json:"operational_state"`
	Avail    string `json:"availability_status"`
}

// HostMaintenance is the payload exchanged with the maintenance service
type HostMaintenance struct {
	UUID           string `json:"uuid"`
	Hostname       string `json:"hostname"`
	Personality    string `json:"personality"`
	Administrative string `json:"administrative,omitempty"`
	Operational    string `json:"operational,omitempty"`
	Availability   string `json:"availability,omitempty"`
	Action         string `json:"action,omitempty"`
	MgmtIP         string `json:"mgmt_ip,omitempty"`
	MgmtMAC        string `json:"mgmt_mac,omitempty"`
	BMIP           string `json:"bm_ip,omitempty"`
	BMType         string `json:"bm_type,omitempty"`
}

// VIMHostInstances is the instance count reported by the VIM for a host
type VIMHostInstances struct {
	Instances int `json:"instances"`
}

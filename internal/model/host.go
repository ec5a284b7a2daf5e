package model

import "strings"

// Personality is the role a host plays in the cluster
type Personality string

const (
	PersonalityController Personality = "controller"
	PersonalityStorage    Personality = "storage"
	PersonalityWorker     Personality = "worker"
	// PersonalityCompute is the legacy name of PersonalityWorker
	PersonalityCompute Personality = "compute"
)

// IsWorker reports whether the personality runs guest workloads
func (p Personality) IsWorker() bool {
	return p == PersonalityWorker || p == PersonalityCompute
}

// AdminState is the administrative state of a host
type AdminState string

const (
	AdminLocked   AdminState = "locked"
	AdminUnlocked AdminState = "unlocked"
)

// OperState is the operational state of a host
type OperState string

const (
	OperEnabled  OperState = "enabled"
	OperDisabled OperState = "disabled"
)

// ProvisionState tracks how far inventory has populated a host's records
type ProvisionState string

const (
	Unprovisioned ProvisionState = "unprovisioned"
	Provisioning  ProvisionState = "provisioning"
	Provisioned   ProvisionState = "provisioned"
)

// Capability keys and values understood by the health checks
const (
	CapabilityStorFunction = "stor_function"
	StorFunctionMonitor    = "monitor"
	StorFunctionOSD        = "osd"
)

// Host actions that indicate a lock is in flight
const (
	HostActionLock      = "lock"
	HostActionForceLock = "force-lock"
)

// Host is a read-only snapshot of an inventory host record
type Host struct {
	UUID           string            `json:"uuid"`
	Hostname       *string           `json:"hostname"`
	Personality    Personality       `json:"personality"`
	Administrative AdminState        `json:"administrative"`
	Operational    OperState         `json:"operational"`
	Availability   string            `json:"availability"`
	InvProvision   ProvisionState    `json:"invprovision"`
	ConfigApplied  string            `json:"config_applied"`
	ConfigTarget   string            `json:"config_target"`
	Capabilities   map[string]string `json:"capabilities"`
	HostAction     string            `json:"ihost_action"`
}

// Name returns the hostname or an empty string when the host is unnamed
func (h *Host) Name() string {
	if h.Hostname == nil {
		return ""
	}
	return *h.Hostname
}

// IsProvisioned reports whether the host has finished provisioning and has a name
func (h *Host) IsProvisioned() bool {
	return h.InvProvision == Provisioned && h.Hostname != nil
}

// IsUnlockedEnabled reports whether the host is in service
func (h *Host) IsUnlockedEnabled() bool {
	return h.Administrative == AdminUnlocked && h.Operational == OperEnabled
}

// IsConfigCurrent reports whether the applied configuration matches the target.
// A host without a target is considered current.
func (h *Host) IsConfigCurrent() bool {
	return h.ConfigTarget == "" || h.ConfigApplied == h.ConfigTarget
}

// IsLocking reports whether a lock or force-lock is in progress
func (h *Host) IsLocking() bool {
	return strings.HasPrefix(h.HostAction, HostActionLock) ||
		strings.HasPrefix(h.HostAction, HostActionForceLock)
}

// StorFunction returns the ceph storage function advertised in capabilities
func (h *Host) StorFunction() (string, bool) {
	if h.Capabilities == nil {
		return "", false
	}
	fn, ok := h.Capabilities[CapabilityStorFunction]
	return fn, ok
}

// StringPtr is a helper for building hosts with a name
func StringPtr(s string) *string {
	return &s
}

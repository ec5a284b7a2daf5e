package model

// PatchState is the lifecycle state reported by the patching service
type PatchState string

const (
	PatchStateAvailable     PatchState = "Available"
	PatchStatePartialApply  PatchState = "Partial-Apply"
	PatchStateApplied       PatchState = "Applied"
	PatchStatePartialRemove PatchState = "Partial-Remove"
	PatchStateCommitted     PatchState = "Committed"
	PatchStateUnavailable   PatchState = "n/a"
)

// IsInstalled reports whether the patch is applied or committed
func (s PatchState) IsInstalled() bool {
	return s == PatchStateApplied || s == PatchStateCommitted
}

// PatchHostRecord is a host row from the patching service
type PatchHostRecord struct {
	Hostname       string `json:"hostname"`
	PatchCurrent   bool   `json:"patch_current"`
	State          string `json:"state,omitempty"`
	RequiresReboot bool   `json:"requires_reboot,omitempty"`
}

// PatchRecord is a patch entry from the patching service
type PatchRecord struct {
	ID         string     `json:"-"`
	PatchState PatchState `json:"patchstate"`
	RepoState  PatchState `json:"repostate,omitempty"`
	SwVersion  string     `json:"sw_version,omitempty"`
}

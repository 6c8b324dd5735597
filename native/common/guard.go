package common

// ErrModulePaused is returned by Guard when governance has halted a module.
var ErrModulePaused = &Error{Code: CodeModulePaused, Detail: "module paused"}

// PauseView reports whether a module has been halted by governance.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations against a paused module. A nil view or empty module
// name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

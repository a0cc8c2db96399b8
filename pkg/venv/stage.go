package venv

// Stage is a step of a build. Stages only move forward; a failed step
// leaves the Builder at the last one that completed.
type Stage int

const (
	StageNone Stage = iota
	StagePathsComputed
	StageCleared
	StageBaseModulesCopied
	StageSitePackagesWritten
	StageIncludeCopied
	StageExecPrefixReconciled
	StagePlatformFixedUp
	StageBinariesPlaced
	StageExecutableVerified
	StageSecondaryAliasPlaced
	StageBootstrapped
	StageActivated
)

var stageNames = [...]string{
	StageNone:                 "none",
	StagePathsComputed:        "paths-computed",
	StageCleared:              "cleared",
	StageBaseModulesCopied:    "base-modules-copied",
	StageSitePackagesWritten:  "site-packages-written",
	StageIncludeCopied:        "include-copied",
	StageExecPrefixReconciled: "exec-prefix-reconciled",
	StagePlatformFixedUp:      "platform-fixed-up",
	StageBinariesPlaced:       "binaries-placed",
	StageExecutableVerified:   "executable-verified",
	StageSecondaryAliasPlaced: "secondary-alias-placed",
	StageBootstrapped:         "bootstrapped",
	StageActivated:            "activated",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

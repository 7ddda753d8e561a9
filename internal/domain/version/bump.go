package version

// DefaultPatchRollover is the patch value that carries into the minor component.
const DefaultPatchRollover uint64 = 10

// BumpMinor returns a new version with the minor component incremented and
// the patch reset.
func (v SemanticVersion) BumpMinor() SemanticVersion {
	return NewSemanticVersion(v.major, v.minor+1, 0)
}

// BumpPatch returns a new version with the patch component incremented.
// Prerelease and build metadata are dropped.
func (v SemanticVersion) BumpPatch() SemanticVersion {
	return NewSemanticVersion(v.major, v.minor, v.patch+1)
}

// PatchBump increments the patch component of a release version, carrying
// into the minor component once the patch reaches Rollover. A patch already
// at or past Rollover carries too: that minor line is full.
type PatchBump struct {
	// Rollover of 0 disables the carry.
	Rollover uint64
}

// NewPatchBump creates a PatchBump with the given rollover.
func NewPatchBump(rollover uint64) PatchBump {
	return PatchBump{Rollover: rollover}
}

// Apply returns the next release version after v. A prerelease is followed
// by its own release, so 1.5.0-rc.1 becomes 1.5.0. Build metadata is dropped.
func (b PatchBump) Apply(v SemanticVersion) SemanticVersion {
	if v.IsPrerelease() {
		return v.Core()
	}
	next := v.Core().BumpPatch()
	if b.Rollover > 0 && next.patch >= b.Rollover {
		return v.Core().BumpMinor()
	}
	return next
}
